package repository

import (
	"context"
	"database/sql"
	"time"

	sh "smart_heating"
	dbinit "smart_heating/internal/repository/db"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*sh.User, error)
}

// AreaRepo persists the area collection as a keyed map.
type AreaRepo interface {
	Save(ctx context.Context, area *sh.Area) error
	LoadAll(ctx context.Context) (map[string]*sh.Area, error)
	Delete(ctx context.Context, areaID string) error
}

// SettingsRepo persists the single global-settings row.
type SettingsRepo interface {
	Save(ctx context.Context, s sh.GlobalSettings) error
	Load(ctx context.Context) (sh.GlobalSettings, error)
}

// SampleRepo is the append-only heating-sample history.
type SampleRepo interface {
	Append(ctx context.Context, s sh.HeatingSample) error
	ListByArea(ctx context.Context, areaID string, limit int) ([]sh.HeatingSample, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// HistoryRepo keeps periodic temperature snapshots for charting.
type HistoryRepo interface {
	Record(ctx context.Context, e sh.HistoryEntry) error
	List(ctx context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// EventRepo is the append-only per-area service log.
type EventRepo interface {
	Append(ctx context.Context, e sh.AreaEvent) error
	List(ctx context.Context, areaID string, from, to time.Time, typ string) ([]sh.AreaEvent, error)
}

type Repository struct {
	Areas    AreaRepo
	Settings SettingsRepo
	Samples  SampleRepo
	History  HistoryRepo
	Events   EventRepo
	Auth     Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Areas:    NewAreaSQLite(db),
		Settings: NewSettingsSQLite(db),
		Samples:  NewSampleSQLite(db),
		History:  NewHistorySQLite(db),
		Events:   NewEventSQLite(db),
		Auth:     NewUserRepository(db),
	}
}

// InitDB opens the SQLite database and applies the schema.
func InitDB(path string) (*sql.DB, error) {
	return dbinit.InitDB(path)
}
