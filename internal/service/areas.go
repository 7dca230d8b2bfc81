package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	sh "smart_heating"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

// AreaCommandService implements every user-initiated mutation. All commands
// validate at the boundary, run through the store's read-modify-write, and
// nudge the orchestrator so the decision reflects the change within one
// refresh instead of one cadence.
type AreaCommandService struct {
	store    *Store
	events   repository.EventRepo
	detector *OverrideDetector
	refresh  func(areaID string)
	log      *logger.Logger
}

func NewAreaCommandService(store *Store, events repository.EventRepo, detector *OverrideDetector, refresh func(areaID string), log *logger.Logger) *AreaCommandService {
	return &AreaCommandService{
		store:    store,
		events:   events,
		detector: detector,
		refresh:  refresh,
		log:      log,
	}
}

func validateTemp(t float64) error {
	if t < sh.MinTargetTemp || t > sh.MaxTargetTemp {
		return fmt.Errorf("temperature %.1f out of range [%v, %v]", t, sh.MinTargetTemp, sh.MaxTargetTemp)
	}
	return nil
}

func validateDay(day string) error {
	d := strings.ToLower(strings.TrimSpace(day))
	if d == "all" {
		return nil
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if d == full || d == full[:3] {
			return nil
		}
	}
	return fmt.Errorf("invalid day %q", day)
}

func validPreset(mode string) bool {
	for _, m := range sh.PresetModes {
		if m == mode {
			return true
		}
	}
	return false
}

// CreateArea registers a new heating area.
func (s *AreaCommandService) CreateArea(ctx context.Context, id, name string) (*sh.Area, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("area name required")
	}
	area := sh.NewArea(id, name)
	if err := s.store.Create(ctx, area); err != nil {
		return nil, err
	}
	s.log.Infow("area_created", "area", id, "name", name)
	return area, nil
}

// DeleteArea removes an area and any debounce pending for it.
func (s *AreaCommandService) DeleteArea(ctx context.Context, areaID string) error {
	if err := s.store.Delete(ctx, areaID); err != nil {
		return err
	}
	s.detector.CancelPending(areaID)
	// Lets the orchestrator notice the deletion and drop its cached state.
	s.refresh(areaID)
	s.log.Infow("area_deleted", "area", areaID)
	return nil
}

// UpdateArea changes display and behavior flags.
func (s *AreaCommandService) UpdateArea(ctx context.Context, areaID string, name *string, hidden, shutdownSwitches *bool) error {
	return s.update(ctx, areaID, func(a *sh.Area) error {
		if name != nil {
			if strings.TrimSpace(*name) == "" {
				return fmt.Errorf("area name required")
			}
			a.Name = *name
		}
		if hidden != nil {
			a.Hidden = *hidden
		}
		if shutdownSwitches != nil {
			a.ShutdownSwitchesWhenIdle = *shutdownSwitches
		}
		return nil
	})
}

// SetDevices replaces the area's device set.
func (s *AreaCommandService) SetDevices(ctx context.Context, areaID string, devices []sh.Device) error {
	for _, d := range devices {
		switch d.Type {
		case sh.DeviceThermostat, sh.DeviceTempSensor, sh.DeviceSwitch, sh.DeviceValve:
		default:
			return fmt.Errorf("invalid device type %q", d.Type)
		}
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("device id required")
		}
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		a.Devices = devices
		return nil
	})
}

// SetTemperature stores a new base target. It clears manual override (the app
// is back in control) and arms the ignore-next flag before the orchestrator
// pushes the setpoint, so the device echo is not re-flagged as external.
func (s *AreaCommandService) SetTemperature(ctx context.Context, areaID string, temp float64) error {
	if err := validateTemp(temp); err != nil {
		return err
	}
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		a.TargetTemperature = temp
		a.ManualOverride = false
		a.PresetMode = sh.PresetNone
		return nil
	})
	if err != nil {
		return err
	}
	s.detector.ArmIgnore(areaID)
	s.appendEvent(ctx, areaID, sh.EventTargetChange, fmt.Sprintf("target set to %.1f", temp), map[string]any{"target": temp})
	return nil
}

// SetEnabled turns an area's heating logic on or off.
func (s *AreaCommandService) SetEnabled(ctx context.Context, areaID string, enabled bool) error {
	return s.update(ctx, areaID, func(a *sh.Area) error {
		a.Enabled = enabled
		return nil
	})
}

// SetPreset selects a preset mode ("none" returns to the base target).
// Clears manual override like any app-originated target command.
func (s *AreaCommandService) SetPreset(ctx context.Context, areaID, mode string) error {
	if !validPreset(mode) {
		return fmt.Errorf("invalid preset mode %q", mode)
	}
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		a.PresetMode = mode
		a.ManualOverride = false
		return nil
	})
	if err != nil {
		return err
	}
	s.detector.ArmIgnore(areaID)
	return nil
}

// SetPresetOverride stores (or with temp == nil removes) an area-specific
// preset temperature.
func (s *AreaCommandService) SetPresetOverride(ctx context.Context, areaID, mode string, temp *float64) error {
	if !validPreset(mode) || mode == sh.PresetNone {
		return fmt.Errorf("invalid preset mode %q", mode)
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		if temp == nil {
			delete(a.PresetOverrides, mode)
			return nil
		}
		if err := validateTemp(*temp); err != nil {
			return err
		}
		if a.PresetOverrides == nil {
			a.PresetOverrides = make(map[string]float64)
		}
		a.PresetOverrides[mode] = *temp
		return nil
	})
}

// StartBoost activates a temporary boost for the area.
func (s *AreaCommandService) StartBoost(ctx context.Context, areaID string, temp float64, durationMinutes int) error {
	if err := validateTemp(temp); err != nil {
		return err
	}
	if durationMinutes <= 0 || durationMinutes > 24*60 {
		return fmt.Errorf("boost duration %d out of range (1..1440 minutes)", durationMinutes)
	}
	now := time.Now()
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		a.StartBoost(now, durationMinutes, temp)
		a.ManualOverride = false
		return nil
	})
	if err != nil {
		return err
	}
	s.detector.ArmIgnore(areaID)
	s.appendEvent(ctx, areaID, sh.EventBoost,
		fmt.Sprintf("boost to %.1f for %d minutes", temp, durationMinutes),
		map[string]any{"temperature": temp, "duration_minutes": durationMinutes})
	return nil
}

// CancelBoost ends an active boost immediately.
func (s *AreaCommandService) CancelBoost(ctx context.Context, areaID string) error {
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		a.CancelBoost()
		return nil
	})
	if err != nil {
		return err
	}
	s.appendEvent(ctx, areaID, sh.EventBoost, "boost cancelled", nil)
	return nil
}

// AddSchedule validates and appends a schedule entry, returning its id.
func (s *AreaCommandService) AddSchedule(ctx context.Context, areaID string, entry sh.ScheduleEntry) (string, error) {
	if err := validateDay(entry.Day); err != nil {
		return "", err
	}
	if _, err := parseClock(entry.StartTime); err != nil {
		return "", err
	}
	if _, err := parseClock(entry.EndTime); err != nil {
		return "", err
	}
	if entry.Temperature == nil && (entry.PresetMode == "" || entry.PresetMode == sh.PresetNone) {
		return "", fmt.Errorf("schedule entry needs a temperature or a preset mode")
	}
	if entry.Temperature != nil {
		if err := validateTemp(*entry.Temperature); err != nil {
			return "", err
		}
	}
	if entry.PresetMode != "" && !validPreset(entry.PresetMode) {
		return "", fmt.Errorf("invalid preset mode %q", entry.PresetMode)
	}
	entry.ID = uuid.NewString()
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		a.Schedules = append(a.Schedules, entry)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.appendEvent(ctx, areaID, sh.EventSchedule,
		fmt.Sprintf("schedule added: %s %s-%s", entry.Day, entry.StartTime, entry.EndTime), nil)
	return entry.ID, nil
}

// DeleteSchedule removes one entry by id.
func (s *AreaCommandService) DeleteSchedule(ctx context.Context, areaID, entryID string) error {
	var found bool
	err := s.update(ctx, areaID, func(a *sh.Area) error {
		kept := a.Schedules[:0]
		for _, e := range a.Schedules {
			if e.ID == entryID {
				found = true
				continue
			}
			kept = append(kept, e)
		}
		a.Schedules = kept
		if !found {
			return fmt.Errorf("schedule entry %q not found", entryID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.appendEvent(ctx, areaID, sh.EventSchedule, "schedule removed", map[string]any{"entry_id": entryID})
	return nil
}

// SetScheduleEnabled toggles one entry without removing it.
func (s *AreaCommandService) SetScheduleEnabled(ctx context.Context, areaID, entryID string, enabled bool) error {
	return s.update(ctx, areaID, func(a *sh.Area) error {
		for i := range a.Schedules {
			if a.Schedules[i].ID == entryID {
				a.Schedules[i].Enabled = enabled
				return nil
			}
		}
		return fmt.Errorf("schedule entry %q not found", entryID)
	})
}

// SetNightBoost replaces the fixed night-boost configuration.
func (s *AreaCommandService) SetNightBoost(ctx context.Context, areaID string, cfg sh.NightBoostConfig) error {
	if cfg.Offset < 0 || cfg.Offset > 3 {
		return fmt.Errorf("night boost offset %.1f out of range [0, 3]", cfg.Offset)
	}
	if _, err := parseClock(cfg.StartTime); err != nil {
		return err
	}
	if _, err := parseClock(cfg.EndTime); err != nil {
		return err
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		a.NightBoost = cfg
		return nil
	})
}

// SetSmartNightBoost replaces the predictive pre-heat configuration.
func (s *AreaCommandService) SetSmartNightBoost(ctx context.Context, areaID string, cfg sh.SmartNightBoostConfig) error {
	if cfg.Enabled {
		if _, err := parseClock(cfg.ReadyBy); err != nil {
			return err
		}
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		a.SmartNightBoost = cfg
		return nil
	})
}

// AddWindowSensor attaches a window sensor to the area.
func (s *AreaCommandService) AddWindowSensor(ctx context.Context, areaID string, ws sh.WindowSensor) error {
	if strings.TrimSpace(ws.EntityID) == "" {
		return fmt.Errorf("sensor entity id required")
	}
	switch ws.ActionWhenOpen {
	case sh.WindowActionTurnOff, sh.WindowActionReduceTemp, sh.WindowActionNone:
	default:
		return fmt.Errorf("invalid window action %q", ws.ActionWhenOpen)
	}
	if ws.ActionWhenOpen == sh.WindowActionReduceTemp && ws.TempDrop <= 0 {
		return fmt.Errorf("reduce_temperature needs a positive temp drop")
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		for _, existing := range a.WindowSensors {
			if existing.EntityID == ws.EntityID {
				return fmt.Errorf("sensor %q already attached", ws.EntityID)
			}
		}
		a.WindowSensors = append(a.WindowSensors, ws)
		return nil
	})
}

// RemoveWindowSensor detaches a window sensor.
func (s *AreaCommandService) RemoveWindowSensor(ctx context.Context, areaID, entityID string) error {
	return s.update(ctx, areaID, func(a *sh.Area) error {
		for i, ws := range a.WindowSensors {
			if ws.EntityID == entityID {
				a.WindowSensors = append(a.WindowSensors[:i], a.WindowSensors[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("sensor %q not found", entityID)
	})
}

// AddPresenceSensor attaches a presence sensor to the area.
func (s *AreaCommandService) AddPresenceSensor(ctx context.Context, areaID string, ps sh.PresenceSensor) error {
	if strings.TrimSpace(ps.EntityID) == "" {
		return fmt.Errorf("sensor entity id required")
	}
	if ps.BoostWhenHome < 0 || ps.DropWhenAway < 0 {
		return fmt.Errorf("presence deltas must be non-negative")
	}
	return s.update(ctx, areaID, func(a *sh.Area) error {
		for _, existing := range a.PresenceSensors {
			if existing.EntityID == ps.EntityID {
				return fmt.Errorf("sensor %q already attached", ps.EntityID)
			}
		}
		a.PresenceSensors = append(a.PresenceSensors, ps)
		return nil
	})
}

// RemovePresenceSensor detaches a presence sensor.
func (s *AreaCommandService) RemovePresenceSensor(ctx context.Context, areaID, entityID string) error {
	return s.update(ctx, areaID, func(a *sh.Area) error {
		for i, ps := range a.PresenceSensors {
			if ps.EntityID == entityID {
				a.PresenceSensors = append(a.PresenceSensors[:i], a.PresenceSensors[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("sensor %q not found", entityID)
	})
}

// SetHysteresis updates the global dead band.
func (s *AreaCommandService) SetHysteresis(ctx context.Context, h float64) error {
	if h < 0.1 || h > 5 {
		return fmt.Errorf("hysteresis %.1f out of range [0.1, 5]", h)
	}
	return s.store.UpdateSettings(ctx, func(gs *sh.GlobalSettings) error {
		gs.Hysteresis = h
		gs.UpdatedAt = time.Now()
		return nil
	})
}

// SetFrostProtection updates the global frost-protection floor.
func (s *AreaCommandService) SetFrostProtection(ctx context.Context, enabled bool, temp float64) error {
	if temp < sh.MinTargetTemp || temp > 15 {
		return fmt.Errorf("frost protection temperature %.1f out of range [%v, 15]", temp, sh.MinTargetTemp)
	}
	return s.store.UpdateSettings(ctx, func(gs *sh.GlobalSettings) error {
		gs.FrostProtectionEnabled = enabled
		gs.FrostProtectionTemp = temp
		gs.UpdatedAt = time.Now()
		return nil
	})
}

// SetGlobalPresetTemp changes one preset's default temperature.
func (s *AreaCommandService) SetGlobalPresetTemp(ctx context.Context, mode string, temp float64) error {
	if !validPreset(mode) || mode == sh.PresetNone {
		return fmt.Errorf("invalid preset mode %q", mode)
	}
	if err := validateTemp(temp); err != nil {
		return err
	}
	return s.store.UpdateSettings(ctx, func(gs *sh.GlobalSettings) error {
		if gs.PresetTemps == nil {
			gs.PresetTemps = make(map[string]float64)
		}
		gs.PresetTemps[mode] = temp
		gs.UpdatedAt = time.Now()
		return nil
	})
}

// update wraps the store mutation with the common stamp-and-refresh tail.
func (s *AreaCommandService) update(ctx context.Context, areaID string, fn func(a *sh.Area) error) error {
	err := s.store.Update(ctx, areaID, func(a *sh.Area) error {
		if err := fn(a); err != nil {
			return err
		}
		a.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.refresh(areaID)
	return nil
}

func (s *AreaCommandService) appendEvent(ctx context.Context, areaID, typ, desc string, meta map[string]any) {
	if err := s.events.Append(ctx, sh.AreaEvent{
		AreaID:      areaID,
		Type:        typ,
		Description: desc,
		Metadata:    meta,
	}); err != nil {
		s.log.Errorw("event_append_failed", "area", areaID, "err", err)
	}
}
