package service

import (
	"context"
	"time"

	sh "smart_heating"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// AreaCommands exposes every user-initiated mutation of area and global
// configuration.
type AreaCommands interface {
	CreateArea(ctx context.Context, id, name string) (*sh.Area, error)
	DeleteArea(ctx context.Context, areaID string) error
	UpdateArea(ctx context.Context, areaID string, name *string, hidden, shutdownSwitches *bool) error
	SetDevices(ctx context.Context, areaID string, devices []sh.Device) error

	SetTemperature(ctx context.Context, areaID string, temp float64) error
	SetEnabled(ctx context.Context, areaID string, enabled bool) error
	SetPreset(ctx context.Context, areaID, mode string) error
	SetPresetOverride(ctx context.Context, areaID, mode string, temp *float64) error
	StartBoost(ctx context.Context, areaID string, temp float64, durationMinutes int) error
	CancelBoost(ctx context.Context, areaID string) error

	AddSchedule(ctx context.Context, areaID string, entry sh.ScheduleEntry) (string, error)
	DeleteSchedule(ctx context.Context, areaID, entryID string) error
	SetScheduleEnabled(ctx context.Context, areaID, entryID string, enabled bool) error

	SetNightBoost(ctx context.Context, areaID string, cfg sh.NightBoostConfig) error
	SetSmartNightBoost(ctx context.Context, areaID string, cfg sh.SmartNightBoostConfig) error
	AddWindowSensor(ctx context.Context, areaID string, ws sh.WindowSensor) error
	RemoveWindowSensor(ctx context.Context, areaID, entityID string) error
	AddPresenceSensor(ctx context.Context, areaID string, ps sh.PresenceSensor) error
	RemovePresenceSensor(ctx context.Context, areaID, entityID string) error

	SetHysteresis(ctx context.Context, h float64) error
	SetFrostProtection(ctx context.Context, enabled bool, temp float64) error
	SetGlobalPresetTemp(ctx context.Context, mode string, temp float64) error
}

// Monitoring exposes the resolved read-only view.
type Monitoring interface {
	ListAreas(ctx context.Context) ([]sh.AreaSnapshot, error)
	GetArea(ctx context.Context, areaID string) (*sh.AreaSnapshot, error)
	GetAreaConfig(ctx context.Context, areaID string) (*sh.Area, error)
	History(ctx context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error)
	Learning(ctx context.Context, areaID string) (*sh.LearningStats, error)
	Settings(ctx context.Context) (sh.GlobalSettings, error)
}

// EventLog exposes the append-only area event log with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]sh.AreaEvent, error)
}

// Service aggregates all request-facing sub-services. The background loops
// (orchestrator, scheduler) are wired separately in main and share the same
// store and detector.
type Service struct {
	AreaCommands
	Monitoring
	EventLog
	Authorization
}

func NewService(repos *repository.Repository, store *Store, predictor *Predictor, detector *OverrideDetector, refresh func(areaID string), signingKey string, log *logger.Logger) *Service {
	return &Service{
		AreaCommands:  NewAreaCommandService(store, repos.Events, detector, refresh, log),
		Monitoring:    NewMonitoringService(store, repos.History, predictor),
		EventLog:      NewEventLogService(repos.Events),
		Authorization: NewAuthService(repos.Auth, signingKey),
	}
}

var (
	_ AreaCommands  = (*AreaCommandService)(nil)
	_ Monitoring    = (*MonitoringService)(nil)
	_ EventLog      = (*EventLogService)(nil)
	_ Authorization = (*AuthService)(nil)
)
