package service

import (
	"context"
	"math"
	"testing"
	"time"

	sh "smart_heating"
)

func newTestPredictor(repo *fakeSampleRepo) *Predictor {
	return NewPredictor(repo, DefaultPredictorConfig(), logNop())
}

// seedConstantRate appends n valid samples with the given °C/min rate.
func seedConstantRate(repo *fakeSampleRepo, areaID string, n int, rate float64) {
	start := monday
	for i := 0; i < n; i++ {
		minutes := 30.0
		repo.samples = append(repo.samples, sh.HeatingSample{
			AreaID:        areaID,
			StartedAt:     start,
			EndedAt:       start.Add(30 * time.Minute),
			StartTemp:     18,
			EndTemp:       18 + rate*minutes,
			TargetTemp:    21,
			RatePerMinute: rate,
		})
		start = start.Add(time.Hour)
	}
}

func TestPredictLead_ConstantRate(t *testing.T) {
	repo := &fakeSampleRepo{}
	seedConstantRate(repo, "living", 5, 0.1)
	p := newTestPredictor(repo)

	// 3°C deficit at 0.1°C/min needs 30 minutes.
	lead := p.PredictLeadMinutes(context.Background(), "living", 3.0, nil)
	if math.Abs(lead-30) > 0.01 {
		t.Fatalf("expected 30 minute lead, got %.2f", lead)
	}
}

func TestPredictLead_FallbackWithTooFewSamples(t *testing.T) {
	repo := &fakeSampleRepo{}
	p := newTestPredictor(repo)

	lead := p.PredictLeadMinutes(context.Background(), "living", 3.0, nil)
	if lead != DefaultPredictorConfig().FallbackLeadMinutes {
		t.Fatalf("zero samples must use the fallback lead, got %.2f", lead)
	}

	seedConstantRate(repo, "living", 2, 0.1) // still below MinSamples
	lead = p.PredictLeadMinutes(context.Background(), "living", 3.0, nil)
	if lead != DefaultPredictorConfig().FallbackLeadMinutes {
		t.Fatalf("below-minimum samples must use the fallback lead, got %.2f", lead)
	}
}

func TestPredictLead_CapAndFloor(t *testing.T) {
	repo := &fakeSampleRepo{}
	seedConstantRate(repo, "living", 5, 0.01) // very slow heater
	p := newTestPredictor(repo)

	lead := p.PredictLeadMinutes(context.Background(), "living", 10, nil)
	if lead != DefaultPredictorConfig().MaxLeadMinutes {
		t.Fatalf("lead must be capped at the maximum, got %.2f", lead)
	}
	if got := p.PredictLeadMinutes(context.Background(), "living", 0, nil); got != 0 {
		t.Fatalf("no deficit needs no lead, got %.2f", got)
	}
}

func TestPredictLead_OutdoorCorrelation(t *testing.T) {
	repo := &fakeSampleRepo{}
	// Colder outside, slower heating: rate = 0.06 + 0.005 * outdoor.
	for i, outdoor := range []float64{-10, -5, 0, 5, 10} {
		rate := 0.06 + 0.005*outdoor
		o := outdoor
		repo.samples = append(repo.samples, sh.HeatingSample{
			AreaID:        "living",
			StartedAt:     monday.Add(time.Duration(i) * time.Hour),
			EndedAt:       monday.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			StartTemp:     18,
			EndTemp:       18 + rate*30,
			OutdoorTemp:   &o,
			RatePerMinute: rate,
		})
	}
	p := newTestPredictor(repo)

	cold := p.PredictLeadMinutes(context.Background(), "living", 3, floatPtr(-10))
	mild := p.PredictLeadMinutes(context.Background(), "living", 3, floatPtr(10))
	if cold <= mild {
		t.Fatalf("colder outdoors must predict a longer lead: cold=%.1f mild=%.1f", cold, mild)
	}
}

func TestRecordCycle_DiscardsDegenerateSamples(t *testing.T) {
	repo := &fakeSampleRepo{}
	p := newTestPredictor(repo)
	ctx := context.Background()

	// Too short.
	if err := p.RecordCycle(ctx, "living", monday, monday.Add(2*time.Minute), 18, 19, 21, nil); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	// Barely any gain.
	if err := p.RecordCycle(ctx, "living", monday, monday.Add(30*time.Minute), 18, 18.05, 21, nil); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(repo.samples) != 0 {
		t.Fatalf("degenerate cycles must be discarded, stored %d", len(repo.samples))
	}

	if err := p.RecordCycle(ctx, "living", monday, monday.Add(30*time.Minute), 18, 21, 21, nil); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if len(repo.samples) != 1 {
		t.Fatalf("valid cycle must be stored, got %d", len(repo.samples))
	}
	if got := repo.samples[0].RatePerMinute; math.Abs(got-0.1) > 1e-9 {
		t.Fatalf("expected derived rate 0.1, got %v", got)
	}
}

func TestPreheatActive_WindowFromFallbackLead(t *testing.T) {
	repo := &fakeSampleRepo{}
	p := newTestPredictor(repo) // zero samples: 45 minute fallback

	a := sh.NewArea("living", "Living Room")
	a.SmartNightBoost = sh.SmartNightBoostConfig{Enabled: true, ReadyBy: "06:00"}
	a.CurrentTemperature = floatPtr(17) // 3°C deficit
	gs := sh.DefaultGlobalSettings()

	if p.PreheatActive(context.Background(), a, gs, at(monday, 4, 0), nil) {
		t.Fatal("04:00 is before the 05:15 pre-heat start")
	}
	if !p.PreheatActive(context.Background(), a, gs, at(monday, 5, 30), nil) {
		t.Fatal("05:30 should be inside the 45 minute fallback window")
	}
}

func TestPreheatActive_RequiresConfigAndDeficit(t *testing.T) {
	p := newTestPredictor(&fakeSampleRepo{})
	gs := sh.DefaultGlobalSettings()

	a := sh.NewArea("living", "Living Room")
	a.CurrentTemperature = floatPtr(17)
	if p.PreheatActive(context.Background(), a, gs, at(monday, 5, 30), nil) {
		t.Fatal("disabled smart night boost must never pre-heat")
	}

	a.SmartNightBoost = sh.SmartNightBoostConfig{Enabled: true, ReadyBy: "06:00"}
	a.CurrentTemperature = floatPtr(21) // already warm
	if p.PreheatActive(context.Background(), a, gs, at(monday, 5, 30), nil) {
		t.Fatal("no deficit means no pre-heat")
	}
}

func TestPredictorStats_AccuracySettlement(t *testing.T) {
	repo := &fakeSampleRepo{}
	p := newTestPredictor(repo)
	ctx := context.Background()
	gs := sh.DefaultGlobalSettings()

	a := sh.NewArea("living", "Living Room")
	a.SmartNightBoost = sh.SmartNightBoostConfig{Enabled: true, ReadyBy: "06:00"}
	a.CurrentTemperature = floatPtr(17)

	if !p.PreheatActive(ctx, a, gs, at(monday, 5, 30), nil) {
		t.Fatal("expected pre-heat window to start")
	}

	// Ready-by passes with the room warm enough: counts as a hit.
	a.CurrentTemperature = floatPtr(19.8)
	p.PreheatActive(ctx, a, gs, at(monday, 6, 5), nil)

	st, err := p.Stats(ctx, "living")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.PredictionsTotal != 1 || st.PredictionsWithin != 1 {
		t.Fatalf("expected 1/1 predictions, got %d/%d", st.PredictionsWithin, st.PredictionsTotal)
	}
	if st.AccuracyRatio != 1 {
		t.Fatalf("expected accuracy 1.0, got %v", st.AccuracyRatio)
	}
	if st.ReadyForPrediction {
		t.Fatal("no samples stored; predictor must report not ready")
	}
}
