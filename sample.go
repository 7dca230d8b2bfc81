package smart_heating

import "time"

// HeatingSample is one observed heating cycle, recorded when an area with
// smart night boost enabled transitions out of heating. Never mutated after
// creation.
type HeatingSample struct {
	ID            int64     `json:"id,omitempty"`
	AreaID        string    `json:"area_id"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	StartTemp     float64   `json:"start_temp"`
	EndTemp       float64   `json:"end_temp"`
	TargetTemp    float64   `json:"target_temp"`
	OutdoorTemp   *float64  `json:"outdoor_temp,omitempty"`
	RatePerMinute float64   `json:"rate_per_minute"` // derived, °C/min
}

// DurationMinutes is the elapsed heating time.
func (s HeatingSample) DurationMinutes() float64 {
	return s.EndedAt.Sub(s.StartedAt).Minutes()
}

// HistoryEntry is a periodic temperature snapshot kept for charting.
type HistoryEntry struct {
	AreaID      string    `json:"area_id"`
	RecordedAt  time.Time `json:"recorded_at"`
	CurrentTemp float64   `json:"current_temperature"`
	TargetTemp  float64   `json:"target_temperature"`
	State       string    `json:"state"`
}

// AreaEvent is a single entry in the per-area service log.
type AreaEvent struct {
	EventID     string    `json:"event_id"`
	AreaID      string    `json:"area_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // STATE_CHANGE | TARGET_CHANGE | OVERRIDE | BOOST | SCHEDULE | ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}

// Event types appended to the area log.
const (
	EventStateChange  = "STATE_CHANGE"
	EventTargetChange = "TARGET_CHANGE"
	EventOverride     = "OVERRIDE"
	EventBoost        = "BOOST"
	EventSchedule     = "SCHEDULE"
	EventError        = "ERROR"
)

// LearningStats summarizes the predictor's view of one area, for diagnostics.
type LearningStats struct {
	AreaID             string  `json:"area_id"`
	SampleCount        int     `json:"sample_count"`
	AvgRatePerMinute   float64 `json:"avg_rate_per_minute"`
	MinRatePerMinute   float64 `json:"min_rate_per_minute"`
	MaxRatePerMinute   float64 `json:"max_rate_per_minute"`
	OutdoorSlope       float64 `json:"outdoor_slope"`
	ReadyForPrediction bool    `json:"ready_for_prediction"`
	PredictionsTotal   int     `json:"predictions_total"`
	PredictionsWithin  int     `json:"predictions_within_tolerance"`
	AccuracyRatio      float64 `json:"accuracy_ratio"`
}

// AreaSnapshot is the resolved view of an area published on every
// orchestration cycle and pushed over the WebSocket.
type AreaSnapshot struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Enabled            bool       `json:"enabled"`
	Hidden             bool       `json:"hidden"`
	State              string     `json:"state"`
	TargetTemperature  float64    `json:"target_temperature"`
	EffectiveTarget    float64    `json:"effective_target"`
	TargetSource       string     `json:"target_source"`
	CurrentTemperature *float64   `json:"current_temperature,omitempty"`
	ManualOverride     bool       `json:"manual_override"`
	PresetMode         string     `json:"preset_mode"`
	BoostActive        bool       `json:"boost_active"`
	BoostEndTime       *time.Time `json:"boost_end_time,omitempty"`
	WindowOpen         bool       `json:"window_open"`
	PresenceDetected   bool       `json:"presence_detected"`
	DeviceCount        int        `json:"device_count"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
