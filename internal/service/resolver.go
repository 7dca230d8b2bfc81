package service

import (
	"time"

	sh "smart_heating"
)

// Sources identify which layer produced the resolved numeric target.
const (
	SourceBoost    = "boost"
	SourceOverride = "manual_override"
	SourcePreset   = "preset"
	SourceSchedule = "schedule"
	SourceWindow   = "window"
	SourcePresence = "presence"
	SourcePreheat  = "preheat"
	SourceBase     = "base"
)

// Resolution is the outcome of one resolver pass for an area. ForceOff is
// decided independently of the numeric target: an open window configured to
// turn heating off wins the on/off decision even when a higher layer (boost,
// override) still owns the number.
type Resolution struct {
	Target   float64
	ForceOff bool
	Source   string
}

// Resolve computes the effective target for an area at a given instant.
// active is the schedule entry currently governing the area (nil for none)
// and preheat reports whether the smart-night-boost predictor has placed now
// inside the pre-heat lead window. Pure: no I/O, no mutation.
func Resolve(a *sh.Area, gs sh.GlobalSettings, active *sh.ScheduleEntry, now time.Time, preheat bool) Resolution {
	r := Resolution{
		Target:   a.TargetTemperature,
		ForceOff: windowForcesOff(a),
		Source:   SourceBase,
	}

	switch {
	case a.Boost.Active && a.Boost.EndTime != nil && now.Before(*a.Boost.EndTime):
		r.Target = a.Boost.Temperature
		r.Source = SourceBoost
	case a.ManualOverride:
		r.Target = a.TargetTemperature
		r.Source = SourceOverride
	case a.PresetMode != "" && a.PresetMode != sh.PresetNone:
		r.Target = a.PresetTemperature(gs)
		r.Source = SourcePreset
	case active != nil:
		r.Target = scheduleTarget(a, gs, active)
		r.Source = SourceSchedule
	case a.WindowOpen && windowTempDrop(a) > 0:
		r.Target = a.TargetTemperature - windowTempDrop(a)
		r.Source = SourceWindow
	}

	// The presence delta modifies whatever preset, schedule or window layer
	// produced, like night boost below. Boost and manual override pin the
	// number exactly as the user set it, and a force-off window makes the
	// adjustment moot.
	if !r.ForceOff && r.Source != SourceBoost && r.Source != SourceOverride {
		if d := presenceDelta(a); d != 0 {
			r.Target += d
			if r.Source == SourceBase {
				r.Source = SourcePresence
			}
		}
	}

	// Night boost is additive on top of whichever layer won, except while a
	// schedule entry is active: the schedule already encodes the user's
	// nightly intent.
	if a.NightBoost.Enabled && active == nil && inClockWindow(a.NightBoost.StartTime, a.NightBoost.EndTime, now) {
		r.Target += a.NightBoost.Offset
	}

	// Pre-heating moves the heating start earlier rather than adding an
	// offset: raise a lowered nightly target back to the daytime one.
	if preheat {
		if daytime := daytimeTarget(a, gs); daytime > r.Target {
			r.Target = daytime
			r.Source = SourcePreheat
		}
	}

	if gs.FrostProtectionEnabled && r.Target < gs.FrostProtectionTemp {
		r.Target = gs.FrostProtectionTemp
	}
	r.Target = sh.ClampTarget(r.Target)
	return r
}

// scheduleTarget yields the temperature a schedule entry asks for, either a
// literal temperature or a preset reference.
func scheduleTarget(a *sh.Area, gs sh.GlobalSettings, e *sh.ScheduleEntry) float64 {
	if e.Temperature != nil {
		return *e.Temperature
	}
	if e.PresetMode != "" && e.PresetMode != sh.PresetNone {
		return presetTemperature(a, gs, e.PresetMode)
	}
	return a.TargetTemperature
}

// daytimeTarget is what the area will want once the night is over: the preset
// temperature if one is selected, the base target otherwise.
func daytimeTarget(a *sh.Area, gs sh.GlobalSettings) float64 {
	if a.PresetMode != "" && a.PresetMode != sh.PresetNone {
		return a.PresetTemperature(gs)
	}
	return a.TargetTemperature
}

func presetTemperature(a *sh.Area, gs sh.GlobalSettings, mode string) float64 {
	if t, ok := a.PresetOverrides[mode]; ok {
		return t
	}
	if t, ok := gs.PresetTemps[mode]; ok {
		return t
	}
	return a.TargetTemperature
}

// windowForcesOff reports whether an open window demands the heating state be
// forced off regardless of the numeric target.
func windowForcesOff(a *sh.Area) bool {
	if !a.WindowOpen {
		return false
	}
	for _, ws := range a.WindowSensors {
		if ws.ActionWhenOpen == sh.WindowActionTurnOff {
			return true
		}
	}
	return false
}

// windowTempDrop returns the largest configured reduce-temperature drop among
// the area's window sensors, or 0 when none applies.
func windowTempDrop(a *sh.Area) float64 {
	drop := 0.0
	for _, ws := range a.WindowSensors {
		if ws.ActionWhenOpen == sh.WindowActionReduceTemp && ws.TempDrop > drop {
			drop = ws.TempDrop
		}
	}
	return drop
}

// presenceDelta is the adjustment the area's presence sensors contribute:
// a boost while someone is home, a drop while everyone is away. The largest
// configured delta wins when several sensors are attached.
func presenceDelta(a *sh.Area) float64 {
	if len(a.PresenceSensors) == 0 {
		return 0
	}
	var boost, drop float64
	for _, ps := range a.PresenceSensors {
		if ps.BoostWhenHome > boost {
			boost = ps.BoostWhenHome
		}
		if ps.DropWhenAway > drop {
			drop = ps.DropWhenAway
		}
	}
	if a.PresenceDetected {
		return boost
	}
	return -drop
}

// inClockWindow tests now against a wall-clock [start, end) window that may
// cross midnight.
func inClockWindow(start, end string, now time.Time) bool {
	s, err := parseClock(start)
	if err != nil {
		return false
	}
	e, err := parseClock(end)
	if err != nil {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	if s < e {
		return nowMin >= s && nowMin < e
	}
	if s == e {
		return false
	}
	return nowMin >= s || nowMin < e
}
