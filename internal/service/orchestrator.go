package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	sh "smart_heating"
	"smart_heating/internal/gateway"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

// OrchestratorConfig carries the cadences and retention windows of the
// evaluation loop.
type OrchestratorConfig struct {
	Interval         time.Duration // full evaluation cadence
	HistoryEvery     int           // record history once per N cycles
	HistoryRetention time.Duration
	SampleRetention  time.Duration
	PruneEvery       time.Duration
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Interval:         30 * time.Second,
		HistoryEvery:     10,
		HistoryRetention: 7 * 24 * time.Hour,
		SampleRetention:  30 * 24 * time.Hour,
		PruneEvery:       time.Hour,
	}
}

// heatingRun tracks an in-progress heating cycle for sample collection.
type heatingRun struct {
	startedAt time.Time
	startTemp float64
	target    float64
	outdoor   *float64
}

// Orchestrator evaluates every area on a fixed cadence: refresh sensor
// readings, resolve the effective target, run the hysteresis decision, issue
// device commands and feed the learning loop. Individual areas never fail
// each other; a refresh request evaluates a single area out of cadence.
type Orchestrator struct {
	store     *Store
	gw        gateway.Gateway
	predictor *Predictor
	detector  *OverrideDetector
	events    repository.EventRepo
	history   repository.HistoryRepo
	samples   repository.SampleRepo
	cfg       OrchestratorConfig
	log       *logger.Logger

	refreshCh  chan string
	runs       map[string]heatingRun
	lastTarget map[string]float64
	cycles     int
	notify     func(snapshots []sh.AreaSnapshot)
}

func NewOrchestrator(store *Store, gw gateway.Gateway, predictor *Predictor, detector *OverrideDetector, repo *repository.Repository, cfg OrchestratorConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:      store,
		gw:         gw,
		predictor:  predictor,
		detector:   detector,
		events:     repo.Events,
		history:    repo.History,
		samples:    repo.Samples,
		cfg:        cfg,
		log:        log,
		refreshCh:  make(chan string, 16),
		runs:       make(map[string]heatingRun),
		lastTarget: make(map[string]float64),
	}
}

// OnSnapshots registers the callback receiving the resolved area snapshots
// after every cycle and every out-of-cadence refresh. Must be set before Run.
func (o *Orchestrator) OnSnapshots(fn func(snapshots []sh.AreaSnapshot)) {
	o.notify = fn
}

// Refresh asks for an immediate re-evaluation of one area, bypassing the
// cadence. Never blocks; a full queue is fine because a cycle is imminent
// anyway.
func (o *Orchestrator) Refresh(areaID string) {
	select {
	case o.refreshCh <- areaID:
	default:
	}
}

// Run drives the loop until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()
	prune := time.NewTicker(o.cfg.PruneEvery)
	defer prune.Stop()

	o.cycle(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.cycle(ctx, now)
		case areaID := <-o.refreshCh:
			o.evaluateArea(ctx, areaID, time.Now())
			o.publish()
		case <-prune.C:
			o.pruneStorage(ctx, time.Now())
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context, now time.Time) {
	o.cycles++
	for _, id := range o.store.IDs() {
		o.evaluateArea(ctx, id, now)
	}
	if o.cfg.HistoryEvery > 0 && o.cycles%o.cfg.HistoryEvery == 0 {
		o.recordHistory(ctx, now)
	}
	o.publish()
}

// evaluateArea runs one full decision pass for one area. Failures are logged
// and contained; the next cycle retries.
func (o *Orchestrator) evaluateArea(ctx context.Context, areaID string, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorw("area_evaluation_panic", "area", areaID, "panic", r)
		}
	}()

	var snap sh.Area
	if !o.store.With(areaID, func(a *sh.Area) { snap = a.Clone() }) {
		// Area deleted; drop its cached command and learning state.
		delete(o.runs, areaID)
		delete(o.lastTarget, areaID)
		return
	}
	gs := o.store.Settings()

	current := o.readCurrentTemperature(ctx, &snap)
	windowOpen := o.readAnyBinary(ctx, windowEntityIDs(&snap))
	presence := o.readAnyBinary(ctx, presenceEntityIDs(&snap))
	outdoor := o.readOutdoor(ctx, &snap)

	boostExpired := snap.Boost.Active && snap.Boost.EndTime != nil && !now.Before(*snap.Boost.EndTime)

	eval := snap
	eval.CurrentTemperature = current
	eval.WindowOpen = windowOpen
	eval.PresenceDetected = presence
	if boostExpired {
		eval.CancelBoost()
	}

	preheat := o.predictor.PreheatActive(ctx, &eval, gs, now, outdoor)
	entry := ActiveEntry(eval.Schedules, now)
	res := Resolve(&eval, gs, entry, now, preheat)
	state := Decide(snap.State, eval.Enabled, res.ForceOff, current, res.Target, gs.Hysteresis)

	prevState := snap.State
	err := o.store.Update(ctx, areaID, func(a *sh.Area) error {
		a.CurrentTemperature = current
		a.WindowOpen = windowOpen
		a.PresenceDetected = presence
		if boostExpired && a.CheckBoostExpiry(now) {
			o.appendEvent(ctx, areaID, sh.EventBoost, "boost expired", nil)
		}
		if a.State != state {
			a.State = state
			a.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		o.log.Errorw("area_update_failed", "area", areaID, "err", err)
		return
	}

	if prevState != state {
		o.log.Infow("state_change", "area", areaID, "from", prevState, "to", state,
			"target", res.Target, "source", res.Source)
		o.appendEvent(ctx, areaID, sh.EventStateChange,
			fmt.Sprintf("%s -> %s (target %.1f from %s)", prevState, state, res.Target, res.Source),
			map[string]any{"target": res.Target, "source": res.Source})
		o.trackLearning(ctx, &eval, prevState, state, now, current, res.Target, outdoor)
	}

	o.command(ctx, &eval, state, res.Target)
}

// readCurrentTemperature averages the area's temperature sensors, falling
// back to thermostat readings when no dedicated sensor reports.
func (o *Orchestrator) readCurrentTemperature(ctx context.Context, a *sh.Area) *float64 {
	for _, ids := range [][]string{a.TemperatureSensors(), a.Thermostats()} {
		var sum float64
		var n int
		for _, id := range ids {
			t, err := o.gw.ReadTemperature(ctx, id)
			if err != nil {
				if !errors.Is(err, gateway.ErrDeviceUnavailable) {
					o.log.Warnw("temperature_read_failed", "device", id, "err", err)
				}
				continue
			}
			sum += t
			n++
		}
		if n > 0 {
			avg := sum / float64(n)
			return &avg
		}
	}
	return a.CurrentTemperature
}

func windowEntityIDs(a *sh.Area) []string {
	ids := make([]string, 0, len(a.WindowSensors))
	for _, ws := range a.WindowSensors {
		ids = append(ids, ws.EntityID)
	}
	return ids
}

func presenceEntityIDs(a *sh.Area) []string {
	ids := make([]string, 0, len(a.PresenceSensors))
	for _, ps := range a.PresenceSensors {
		ids = append(ids, ps.EntityID)
	}
	return ids
}

// readAnyBinary is true when any of the listed entities reports active.
// Unreachable sensors count as inactive.
func (o *Orchestrator) readAnyBinary(ctx context.Context, ids []string) bool {
	for _, id := range ids {
		v, err := o.gw.ReadBinary(ctx, id)
		if err == nil && v {
			return true
		}
	}
	return false
}

func (o *Orchestrator) readOutdoor(ctx context.Context, a *sh.Area) *float64 {
	id := a.SmartNightBoost.WeatherEntityID
	if id == "" {
		return nil
	}
	t, err := o.gw.ReadTemperature(ctx, id)
	if err != nil {
		return nil
	}
	return &t
}

// command pushes the decision to the area's devices. The setpoint is only
// re-sent when it changed, with the override detector armed first so the
// device echo is not mistaken for a human adjustment.
func (o *Orchestrator) command(ctx context.Context, a *sh.Area, state string, target float64) {
	if state == sh.StateHeating {
		if thermostats := a.Thermostats(); len(thermostats) > 0 && o.lastTarget[a.ID] != target {
			o.detector.ArmIgnore(a.ID)
			sent := false
			for _, id := range thermostats {
				if err := o.gw.SetTemperature(ctx, id, target); err != nil {
					o.log.Warnw("set_temperature_failed", "device", id, "err", err)
					continue
				}
				sent = true
			}
			// A setpoint that reached no device is re-sent next cycle.
			if sent {
				o.lastTarget[a.ID] = target
			}
		}
		for _, id := range a.Thermostats() {
			if err := o.gw.TurnOn(ctx, id); err != nil {
				o.log.Warnw("turn_on_failed", "device", id, "err", err)
			}
		}
		for _, id := range a.Switches() {
			if err := o.gw.TurnOn(ctx, id); err != nil {
				o.log.Warnw("turn_on_failed", "device", id, "err", err)
			}
		}
		for _, id := range a.Valves() {
			if err := o.gw.SetValvePosition(ctx, id, 100); err != nil {
				o.log.Warnw("valve_command_failed", "device", id, "err", err)
			}
		}
		return
	}

	for _, id := range a.Thermostats() {
		if err := o.gw.TurnOff(ctx, id); err != nil {
			o.log.Warnw("turn_off_failed", "device", id, "err", err)
		}
	}
	if a.ShutdownSwitchesWhenIdle || state == sh.StateOff {
		for _, id := range a.Switches() {
			if err := o.gw.TurnOff(ctx, id); err != nil {
				o.log.Warnw("turn_off_failed", "device", id, "err", err)
			}
		}
	}
	for _, id := range a.Valves() {
		if err := o.gw.SetValvePosition(ctx, id, 0); err != nil {
			o.log.Warnw("valve_command_failed", "device", id, "err", err)
		}
	}
}

// trackLearning opens a heating run when heating starts and closes it into a
// sample when heating ends, for areas with smart night boost enabled.
func (o *Orchestrator) trackLearning(ctx context.Context, a *sh.Area, prev, next string, now time.Time, current *float64, target float64, outdoor *float64) {
	if !a.SmartNightBoost.Enabled {
		delete(o.runs, a.ID)
		return
	}
	if next == sh.StateHeating && current != nil {
		o.runs[a.ID] = heatingRun{startedAt: now, startTemp: *current, target: target, outdoor: outdoor}
		return
	}
	if prev == sh.StateHeating {
		run, ok := o.runs[a.ID]
		if !ok {
			return
		}
		delete(o.runs, a.ID)
		if current == nil {
			return
		}
		if err := o.predictor.RecordCycle(ctx, a.ID, run.startedAt, now, run.startTemp, *current, run.target, run.outdoor); err != nil {
			o.log.Errorw("sample_record_failed", "area", a.ID, "err", err)
		}
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, now time.Time) {
	o.store.WithAll(func(a *sh.Area) {
		if a.CurrentTemperature == nil {
			return
		}
		entry := sh.HistoryEntry{
			AreaID:      a.ID,
			RecordedAt:  now,
			CurrentTemp: *a.CurrentTemperature,
			TargetTemp:  a.TargetTemperature,
			State:       a.State,
		}
		if err := o.history.Record(ctx, entry); err != nil {
			o.log.Errorw("history_record_failed", "area", a.ID, "err", err)
		}
	})
}

func (o *Orchestrator) pruneStorage(ctx context.Context, now time.Time) {
	if n, err := o.history.Prune(ctx, now.Add(-o.cfg.HistoryRetention)); err != nil {
		o.log.Errorw("history_prune_failed", "err", err)
	} else if n > 0 {
		o.log.Debugw("history_pruned", "rows", n)
	}
	if n, err := o.samples.Prune(ctx, now.Add(-o.cfg.SampleRetention)); err != nil {
		o.log.Errorw("sample_prune_failed", "err", err)
	} else if n > 0 {
		o.log.Debugw("samples_pruned", "rows", n)
	}
}

func (o *Orchestrator) appendEvent(ctx context.Context, areaID, typ, desc string, meta map[string]any) {
	if err := o.events.Append(ctx, sh.AreaEvent{
		AreaID:      areaID,
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}); err != nil {
		o.log.Errorw("event_append_failed", "area", areaID, "err", err)
	}
}

// Snapshots resolves the published view of every area.
func (o *Orchestrator) Snapshots() []sh.AreaSnapshot {
	gs := o.store.Settings()
	now := time.Now()
	var out []sh.AreaSnapshot
	o.store.WithAll(func(a *sh.Area) {
		out = append(out, buildSnapshot(a, gs, now))
	})
	return out
}

func (o *Orchestrator) publish() {
	if o.notify == nil {
		return
	}
	o.notify(o.Snapshots())
}

func buildSnapshot(a *sh.Area, gs sh.GlobalSettings, now time.Time) sh.AreaSnapshot {
	entry := ActiveEntry(a.Schedules, now)
	res := Resolve(a, gs, entry, now, false)
	return sh.AreaSnapshot{
		ID:                 a.ID,
		Name:               a.Name,
		Enabled:            a.Enabled,
		Hidden:             a.Hidden,
		State:              a.State,
		TargetTemperature:  a.TargetTemperature,
		EffectiveTarget:    res.Target,
		TargetSource:       res.Source,
		CurrentTemperature: a.CurrentTemperature,
		ManualOverride:     a.ManualOverride,
		PresetMode:         a.PresetMode,
		BoostActive:        a.Boost.Active,
		BoostEndTime:       a.Boost.EndTime,
		WindowOpen:         a.WindowOpen,
		PresenceDetected:   a.PresenceDetected,
		DeviceCount:        len(a.Devices),
		UpdatedAt:          a.UpdatedAt,
	}
}
