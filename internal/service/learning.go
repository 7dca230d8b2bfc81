package service

import (
	"context"
	"sync"
	"time"

	sh "smart_heating"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

// PredictorConfig bounds the smart-night-boost estimator.
type PredictorConfig struct {
	MinSamples          int     // below this, fall back to FallbackLeadMinutes
	FallbackLeadMinutes float64 // conservative lead used with too few samples
	MaxLeadMinutes      float64 // never pre-heat earlier than this
	MinCycleMinutes     float64 // cycles shorter than this are discarded
	MinTempGain         float64 // cycles gaining less than this are discarded
	SampleWindow        int     // newest samples considered per prediction
	AccuracyToleranceC  float64 // |reached - target| counting as a hit
}

func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		MinSamples:          3,
		FallbackLeadMinutes: 45,
		MaxLeadMinutes:      180,
		MinCycleMinutes:     5,
		MinTempGain:         0.1,
		SampleWindow:        100,
		AccuracyToleranceC:  0.5,
	}
}

type pendingPrediction struct {
	readyBy time.Time
	target  float64
}

// Predictor turns observed heating cycles into a per-area heating-rate model
// and answers "how early must heating start to be warm by the ready-by time".
// It is a closed-form estimator over a bounded sample window, nothing more.
type Predictor struct {
	samples repository.SampleRepo
	cfg     PredictorConfig
	log     *logger.Logger

	mu      sync.Mutex
	pending map[string]pendingPrediction
	total   map[string]int
	within  map[string]int
}

func NewPredictor(samples repository.SampleRepo, cfg PredictorConfig, log *logger.Logger) *Predictor {
	return &Predictor{
		samples: samples,
		cfg:     cfg,
		log:     log,
		pending: make(map[string]pendingPrediction),
		total:   make(map[string]int),
		within:  make(map[string]int),
	}
}

// RecordCycle stores one completed heating cycle as a sample. Degenerate
// cycles (too short, or barely any temperature gain) are discarded so they
// cannot poison the rate estimate.
func (p *Predictor) RecordCycle(ctx context.Context, areaID string, startedAt, endedAt time.Time, startTemp, endTemp, target float64, outdoor *float64) error {
	minutes := endedAt.Sub(startedAt).Minutes()
	gain := endTemp - startTemp
	if minutes < p.cfg.MinCycleMinutes || gain < p.cfg.MinTempGain {
		p.log.Debugw("sample_discarded", "area", areaID, "minutes", minutes, "gain", gain)
		return nil
	}
	s := sh.HeatingSample{
		AreaID:        areaID,
		StartedAt:     startedAt,
		EndedAt:       endedAt,
		StartTemp:     startTemp,
		EndTemp:       endTemp,
		TargetTemp:    target,
		OutdoorTemp:   outdoor,
		RatePerMinute: gain / minutes,
	}
	return p.samples.Append(ctx, s)
}

// PredictLeadMinutes estimates how many minutes of heating a temperature
// deficit needs. With fewer than MinSamples valid samples the configured
// fallback lead is returned; the result is clamped to [0, MaxLeadMinutes].
func (p *Predictor) PredictLeadMinutes(ctx context.Context, areaID string, deficit float64, outdoor *float64) float64 {
	if deficit <= 0 {
		return 0
	}
	samples, err := p.samples.ListByArea(ctx, areaID, p.cfg.SampleWindow)
	if err != nil {
		p.log.Errorw("samples_load_failed", "area", areaID, "err", err)
		return p.clampLead(p.cfg.FallbackLeadMinutes)
	}
	if len(samples) < p.cfg.MinSamples {
		return p.clampLead(p.cfg.FallbackLeadMinutes)
	}

	rate := meanRate(samples)
	if intercept, slope, ok := outdoorFit(samples); ok && outdoor != nil {
		if fitted := intercept + slope*(*outdoor); fitted > 0 {
			rate = fitted
		}
	}
	if rate <= 0 {
		return p.clampLead(p.cfg.FallbackLeadMinutes)
	}
	return p.clampLead(deficit / rate)
}

func (p *Predictor) clampLead(lead float64) float64 {
	if lead < 0 {
		return 0
	}
	if lead > p.cfg.MaxLeadMinutes {
		return p.cfg.MaxLeadMinutes
	}
	return lead
}

// PreheatActive reports whether now sits inside the predicted pre-heat window
// for the area's ready-by time. It also settles the previous prediction once
// its ready-by instant has passed, feeding the accuracy diagnostic.
func (p *Predictor) PreheatActive(ctx context.Context, a *sh.Area, gs sh.GlobalSettings, now time.Time, outdoor *float64) bool {
	if !a.SmartNightBoost.Enabled || a.SmartNightBoost.ReadyBy == "" {
		return false
	}
	p.settle(a, now)

	readyMin, err := parseClock(a.SmartNightBoost.ReadyBy)
	if err != nil {
		return false
	}
	readyBy := time.Date(now.Year(), now.Month(), now.Day(), readyMin/60, readyMin%60, 0, 0, now.Location())
	if !readyBy.After(now) {
		readyBy = readyBy.Add(24 * time.Hour)
	}

	if a.CurrentTemperature == nil {
		return false
	}
	target := daytimeTarget(a, gs)
	deficit := target - *a.CurrentTemperature
	if deficit <= 0 {
		return false
	}

	lead := p.PredictLeadMinutes(ctx, a.ID, deficit, outdoor)
	start := readyBy.Add(-time.Duration(lead * float64(time.Minute)))
	if now.Before(start) {
		return false
	}

	p.mu.Lock()
	if _, exists := p.pending[a.ID]; !exists {
		p.pending[a.ID] = pendingPrediction{readyBy: readyBy, target: target}
	}
	p.mu.Unlock()
	return true
}

// settle scores a pending prediction whose ready-by time has passed.
func (p *Predictor) settle(a *sh.Area, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pp, ok := p.pending[a.ID]
	if !ok || now.Before(pp.readyBy) {
		return
	}
	delete(p.pending, a.ID)
	p.total[a.ID]++
	if a.CurrentTemperature != nil && *a.CurrentTemperature >= pp.target-p.cfg.AccuracyToleranceC {
		p.within[a.ID]++
	}
}

// Stats summarizes the area's learned model for diagnostics.
func (p *Predictor) Stats(ctx context.Context, areaID string) (*sh.LearningStats, error) {
	samples, err := p.samples.ListByArea(ctx, areaID, p.cfg.SampleWindow)
	if err != nil {
		return nil, err
	}
	st := &sh.LearningStats{
		AreaID:             areaID,
		SampleCount:        len(samples),
		ReadyForPrediction: len(samples) >= p.cfg.MinSamples,
	}
	if len(samples) > 0 {
		st.MinRatePerMinute = samples[0].RatePerMinute
		st.MaxRatePerMinute = samples[0].RatePerMinute
		sum := 0.0
		for _, s := range samples {
			sum += s.RatePerMinute
			if s.RatePerMinute < st.MinRatePerMinute {
				st.MinRatePerMinute = s.RatePerMinute
			}
			if s.RatePerMinute > st.MaxRatePerMinute {
				st.MaxRatePerMinute = s.RatePerMinute
			}
		}
		st.AvgRatePerMinute = sum / float64(len(samples))
	}
	if _, slope, ok := outdoorFit(samples); ok {
		st.OutdoorSlope = slope
	}

	p.mu.Lock()
	st.PredictionsTotal = p.total[areaID]
	st.PredictionsWithin = p.within[areaID]
	p.mu.Unlock()
	if st.PredictionsTotal > 0 {
		st.AccuracyRatio = float64(st.PredictionsWithin) / float64(st.PredictionsTotal)
	}
	return st, nil
}

func meanRate(samples []sh.HeatingSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.RatePerMinute
	}
	return sum / float64(len(samples))
}

// outdoorFit least-squares fits rate against outdoor temperature over the
// samples that carry an outdoor reading. Needs at least two distinct outdoor
// values; colder outside is expected to yield a slower rate, i.e. a positive
// slope.
func outdoorFit(samples []sh.HeatingSample) (intercept, slope float64, ok bool) {
	var n float64
	var sumX, sumY, sumXX, sumXY float64
	for _, s := range samples {
		if s.OutdoorTemp == nil {
			continue
		}
		x, y := *s.OutdoorTemp, s.RatePerMinute
		n++
		sumX += x
		sumY += y
		sumXX += x * x
		sumXY += x * y
	}
	if n < 2 {
		return 0, 0, false
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, 0, false
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return intercept, slope, true
}
