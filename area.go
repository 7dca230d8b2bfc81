package smart_heating

import "time"

// Area states as reported to the API and used by the state machine.
const (
	StateHeating = "heating"
	StateIdle    = "idle"
	StateOff     = "off"
)

// Preset modes
const (
	PresetNone     = "none"
	PresetAway     = "away"
	PresetEco      = "eco"
	PresetComfort  = "comfort"
	PresetHome     = "home"
	PresetSleep    = "sleep"
	PresetActivity = "activity"
	PresetBoost    = "boost"
)

// PresetModes lists every accepted preset, in display order.
var PresetModes = []string{
	PresetNone, PresetAway, PresetEco, PresetComfort,
	PresetHome, PresetSleep, PresetActivity, PresetBoost,
}

// Device types
const (
	DeviceThermostat = "thermostat"
	DeviceTempSensor = "temperature_sensor"
	DeviceSwitch     = "switch"
	DeviceValve      = "valve"
)

// Window sensor actions
const (
	WindowActionTurnOff    = "turn_off"
	WindowActionReduceTemp = "reduce_temperature"
	WindowActionNone       = "none"
)

// Target temperature bounds in °C. Every resolved target is clamped to this range.
const (
	MinTargetTemp = 5.0
	MaxTargetTemp = 30.0
)

// Default configuration values, matching the shipped frontend defaults.
const (
	DefaultTargetTemp          = 20.0
	DefaultHysteresis          = 0.5
	DefaultNightBoostOffset    = 0.5
	DefaultNightBoostStart     = "22:00"
	DefaultNightBoostEnd       = "06:00"
	DefaultBoostTemp           = 25.0
	DefaultBoostDurationMin    = 60
	DefaultWindowTempDrop      = 5.0
	DefaultPresenceBoost       = 2.0
	DefaultPresenceDrop        = 3.0
	DefaultFrostProtectionTemp = 7.0
)

// Device is one physical device assigned to an area.
type Device struct {
	ID    string `json:"id"`
	Type  string `json:"type"`            // thermostat | temperature_sensor | switch | valve
	Topic string `json:"topic,omitempty"` // MQTT topic override; empty means derive from ID
}

// ScheduleEntry is a recurring temperature window. Day accepts a full weekday
// name ("Monday"), a three-letter abbreviation ("mon"), or "all"; matching is
// case-insensitive. EndTime may be earlier than StartTime, in which case the
// window wraps past midnight.
type ScheduleEntry struct {
	ID          string   `json:"id"`
	Day         string   `json:"day"`
	StartTime   string   `json:"start_time"` // HH:MM
	EndTime     string   `json:"end_time"`   // HH:MM
	Temperature *float64 `json:"temperature,omitempty"`
	PresetMode  string   `json:"preset_mode,omitempty"` // alternative to Temperature
	Enabled     bool     `json:"enabled"`
}

// NightBoostConfig adds a fixed offset during a nightly window.
type NightBoostConfig struct {
	Enabled   bool    `json:"enabled"`
	Offset    float64 `json:"offset"`     // 0–3 °C
	StartTime string  `json:"start_time"` // HH:MM, window may cross midnight
	EndTime   string  `json:"end_time"`
}

// SmartNightBoostConfig pre-heats toward a ready-by time using the learned
// heating rate instead of a fixed offset.
type SmartNightBoostConfig struct {
	Enabled         bool   `json:"enabled"`
	ReadyBy         string `json:"ready_by"` // HH:MM local time
	WeatherEntityID string `json:"weather_entity_id,omitempty"`
}

// WindowSensor reacts to an open window/door.
type WindowSensor struct {
	EntityID       string  `json:"entity_id"`
	ActionWhenOpen string  `json:"action_when_open"` // turn_off | reduce_temperature | none
	TempDrop       float64 `json:"temp_drop,omitempty"`
}

// PresenceSensor nudges the target up when someone is home and down when away.
type PresenceSensor struct {
	EntityID      string  `json:"entity_id"`
	BoostWhenHome float64 `json:"boost_when_home"`
	DropWhenAway  float64 `json:"drop_when_away"`
}

// BoostState is a temporary, user-requested temperature elevation. EndTime is
// computed once at activation and checked each cycle.
type BoostState struct {
	Active          bool       `json:"active"`
	Temperature     float64    `json:"temperature"`
	DurationMinutes int        `json:"duration_minutes"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

// Area is one heating zone, the unit of control.
type Area struct {
	ID                       string                `json:"id"`
	Name                     string                `json:"name"`
	Enabled                  bool                  `json:"enabled"`
	Hidden                   bool                  `json:"hidden"`
	TargetTemperature        float64               `json:"target_temperature"`
	CurrentTemperature       *float64              `json:"current_temperature,omitempty"`
	State                    string                `json:"state"`
	ManualOverride           bool                  `json:"manual_override"`
	ShutdownSwitchesWhenIdle bool                  `json:"shutdown_switches_when_idle"`
	Devices                  []Device              `json:"devices,omitempty"`
	Schedules                []ScheduleEntry       `json:"schedules,omitempty"`
	NightBoost               NightBoostConfig      `json:"night_boost"`
	SmartNightBoost          SmartNightBoostConfig `json:"smart_night_boost"`
	PresetMode               string                `json:"preset_mode"`
	PresetOverrides          map[string]float64    `json:"preset_overrides,omitempty"` // preset name -> area temp; absent means use global
	Boost                    BoostState            `json:"boost"`
	WindowSensors            []WindowSensor        `json:"window_sensors,omitempty"`
	PresenceSensors          []PresenceSensor      `json:"presence_sensors,omitempty"`
	WindowOpen               bool                  `json:"window_open"`
	PresenceDetected         bool                  `json:"presence_detected"`
	UpdatedAt                time.Time             `json:"updated_at"`
}

// NewArea returns an area with the shipped defaults applied.
func NewArea(id, name string) *Area {
	return &Area{
		ID:                       id,
		Name:                     name,
		Enabled:                  true,
		TargetTemperature:        DefaultTargetTemp,
		State:                    StateIdle,
		ShutdownSwitchesWhenIdle: true,
		NightBoost: NightBoostConfig{
			Enabled:   true,
			Offset:    DefaultNightBoostOffset,
			StartTime: DefaultNightBoostStart,
			EndTime:   DefaultNightBoostEnd,
		},
		SmartNightBoost: SmartNightBoostConfig{ReadyBy: "06:00"},
		PresetMode:      PresetNone,
		Boost: BoostState{
			Temperature:     DefaultBoostTemp,
			DurationMinutes: DefaultBoostDurationMin,
		},
	}
}

// DevicesOfType returns the IDs of the area's devices with the given type.
func (a *Area) DevicesOfType(deviceType string) []string {
	var ids []string
	for _, d := range a.Devices {
		if d.Type == deviceType {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

func (a *Area) Thermostats() []string        { return a.DevicesOfType(DeviceThermostat) }
func (a *Area) TemperatureSensors() []string { return a.DevicesOfType(DeviceTempSensor) }
func (a *Area) Switches() []string           { return a.DevicesOfType(DeviceSwitch) }
func (a *Area) Valves() []string             { return a.DevicesOfType(DeviceValve) }

// HasDevice reports whether the device belongs to this area.
func (a *Area) HasDevice(deviceID string) bool {
	for _, d := range a.Devices {
		if d.ID == deviceID {
			return true
		}
	}
	return false
}

// StartBoost activates boost mode; the expiry is fixed at now + duration.
func (a *Area) StartBoost(now time.Time, durationMinutes int, temp float64) {
	end := now.Add(time.Duration(durationMinutes) * time.Minute)
	a.Boost = BoostState{
		Active:          true,
		Temperature:     temp,
		DurationMinutes: durationMinutes,
		EndTime:         &end,
	}
	a.PresetMode = PresetBoost
}

// CancelBoost deactivates boost mode, keeping the configured temperature for
// the next activation.
func (a *Area) CancelBoost() {
	a.Boost.Active = false
	a.Boost.EndTime = nil
	if a.PresetMode == PresetBoost {
		a.PresetMode = PresetNone
	}
}

// CheckBoostExpiry cancels an expired boost. Returns true if it was cancelled.
func (a *Area) CheckBoostExpiry(now time.Time) bool {
	if a.Boost.Active && a.Boost.EndTime != nil && !now.Before(*a.Boost.EndTime) {
		a.CancelBoost()
		return true
	}
	return false
}

// Clone returns a deep copy of the area. Copies crossing the store's lock
// boundary must not share slice or map backing storage with the live area.
func (a *Area) Clone() Area {
	cp := *a
	if a.CurrentTemperature != nil {
		v := *a.CurrentTemperature
		cp.CurrentTemperature = &v
	}
	if a.Devices != nil {
		cp.Devices = append([]Device(nil), a.Devices...)
	}
	if a.Schedules != nil {
		cp.Schedules = append([]ScheduleEntry(nil), a.Schedules...)
		for i, e := range cp.Schedules {
			if e.Temperature != nil {
				v := *e.Temperature
				cp.Schedules[i].Temperature = &v
			}
		}
	}
	if a.WindowSensors != nil {
		cp.WindowSensors = append([]WindowSensor(nil), a.WindowSensors...)
	}
	if a.PresenceSensors != nil {
		cp.PresenceSensors = append([]PresenceSensor(nil), a.PresenceSensors...)
	}
	if a.PresetOverrides != nil {
		cp.PresetOverrides = make(map[string]float64, len(a.PresetOverrides))
		for k, v := range a.PresetOverrides {
			cp.PresetOverrides[k] = v
		}
	}
	if a.Boost.EndTime != nil {
		v := *a.Boost.EndTime
		cp.Boost.EndTime = &v
	}
	return cp
}

// PresetTemperature resolves the temperature for the area's current preset
// mode, preferring an area-specific override over the global setting.
func (a *Area) PresetTemperature(gs GlobalSettings) float64 {
	if a.PresetMode == PresetBoost {
		return a.Boost.Temperature
	}
	if t, ok := a.PresetOverrides[a.PresetMode]; ok {
		return t
	}
	if t, ok := gs.PresetTemps[a.PresetMode]; ok {
		return t
	}
	return a.TargetTemperature
}

// GlobalSettings holds configuration shared by every area.
type GlobalSettings struct {
	Hysteresis             float64            `json:"hysteresis"`
	FrostProtectionEnabled bool               `json:"frost_protection_enabled"`
	FrostProtectionTemp    float64            `json:"frost_protection_temp"`
	PresetTemps            map[string]float64 `json:"preset_temps"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// Clone returns a copy that does not share the preset map.
func (gs GlobalSettings) Clone() GlobalSettings {
	cp := gs
	if gs.PresetTemps != nil {
		cp.PresetTemps = make(map[string]float64, len(gs.PresetTemps))
		for k, v := range gs.PresetTemps {
			cp.PresetTemps[k] = v
		}
	}
	return cp
}

// DefaultGlobalSettings returns the settings used before the first save.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		Hysteresis:          DefaultHysteresis,
		FrostProtectionTemp: DefaultFrostProtectionTemp,
		PresetTemps: map[string]float64{
			PresetAway:     16.0,
			PresetEco:      18.0,
			PresetComfort:  22.0,
			PresetHome:     20.0,
			PresetSleep:    18.5,
			PresetActivity: 21.0,
		},
	}
}

// ClampTarget bounds a resolved target to the supported range.
func ClampTarget(t float64) float64 {
	if t < MinTargetTemp {
		return MinTargetTemp
	}
	if t > MaxTargetTemp {
		return MaxTargetTemp
	}
	return t
}

// User is an API account.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don’t expose hash
}
