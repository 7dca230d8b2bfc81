package service

import (
	"context"
	"sync"
	"time"

	sh "smart_heating"
	"smart_heating/internal/gateway"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

// OverrideDetector watches device-originated setpoint changes and flips an
// area into manual override after a short debounce, so a user nudging a
// physical dial three times in a second produces one override, not three.
type OverrideDetector struct {
	store   *Store
	events  repository.EventRepo
	delay   time.Duration
	refresh func(areaID string)
	log     *logger.Logger

	mu         sync.Mutex
	timers     map[string]*time.Timer
	ignoreNext map[string]bool
}

func NewOverrideDetector(store *Store, events repository.EventRepo, delay time.Duration, refresh func(areaID string), log *logger.Logger) *OverrideDetector {
	return &OverrideDetector{
		store:      store,
		events:     events,
		delay:      delay,
		refresh:    refresh,
		log:        log,
		timers:     make(map[string]*time.Timer),
		ignoreNext: make(map[string]bool),
	}
}

// HandleDeviceChange is the gateway subscription callback. Only setpoint
// reports on devices belonging to a known area are considered.
func (d *OverrideDetector) HandleDeviceChange(change gateway.StateChange) {
	if change.TargetTemperature == nil {
		return
	}
	areaID, ok := d.store.AreaForDevice(change.DeviceID)
	if !ok {
		return
	}
	observed := *change.TargetTemperature

	d.mu.Lock()
	if d.ignoreNext[areaID] {
		// The app itself just commanded this change; the device is echoing it.
		delete(d.ignoreNext, areaID)
		d.mu.Unlock()
		d.log.Debugw("override_echo_ignored", "area", areaID, "temp", observed)
		return
	}
	if t, exists := d.timers[areaID]; exists {
		t.Stop()
	}
	d.timers[areaID] = time.AfterFunc(d.delay, func() {
		d.fire(areaID, observed)
	})
	d.mu.Unlock()
}

// ArmIgnore marks the area so the next device-originated change is treated as
// an echo of an app command. Call it before issuing the device command.
func (d *OverrideDetector) ArmIgnore(areaID string) {
	d.mu.Lock()
	d.ignoreNext[areaID] = true
	if t, exists := d.timers[areaID]; exists {
		t.Stop()
		delete(d.timers, areaID)
	}
	d.mu.Unlock()
}

// CancelPending drops any debounce in flight for the area, e.g. when the area
// is deleted.
func (d *OverrideDetector) CancelPending(areaID string) {
	d.mu.Lock()
	if t, exists := d.timers[areaID]; exists {
		t.Stop()
		delete(d.timers, areaID)
	}
	delete(d.ignoreNext, areaID)
	d.mu.Unlock()
}

// Stop cancels every pending debounce.
func (d *OverrideDetector) Stop() {
	d.mu.Lock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()
}

func (d *OverrideDetector) fire(areaID string, observed float64) {
	d.mu.Lock()
	delete(d.timers, areaID)
	d.mu.Unlock()

	ctx := context.Background()
	err := d.store.Update(ctx, areaID, func(a *sh.Area) error {
		a.ManualOverride = true
		a.TargetTemperature = sh.ClampTarget(observed)
		a.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		d.log.Errorw("override_apply_failed", "area", areaID, "err", err)
		return
	}
	d.log.Infow("manual_override", "area", areaID, "target", observed)
	if err := d.events.Append(ctx, sh.AreaEvent{
		AreaID:      areaID,
		Type:        sh.EventOverride,
		Description: "manual override from external setpoint change",
		Metadata:    map[string]any{"target": observed},
	}); err != nil {
		d.log.Errorw("event_append_failed", "area", areaID, "err", err)
	}
	d.refresh(areaID)
}
