package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sh "smart_heating"
)

// AreaSQLite stores each area as a JSON document keyed by area id, the same
// shape the engine consumes, so a save/load round trip is field-for-field.
type AreaSQLite struct {
	db *sql.DB
}

func NewAreaSQLite(db *sql.DB) *AreaSQLite {
	return &AreaSQLite{db: db}
}

var _ AreaRepo = (*AreaSQLite)(nil)

const (
	upsertAreaSQL = `
		INSERT INTO areas (id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc=excluded.doc,
			updated_at=excluded.updated_at
	`

	selectAreasSQL = `SELECT doc FROM areas`

	deleteAreaSQL = `DELETE FROM areas WHERE id=?`
)

// Save upserts one area document.
func (r *AreaSQLite) Save(ctx context.Context, area *sh.Area) error {
	tsUTC := area.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}
	area.UpdatedAt = tsUTC

	doc, err := json.Marshal(area)
	if err != nil {
		return fmt.Errorf("marshal area %q: %w", area.ID, err)
	}

	_, err = r.db.ExecContext(ctx, upsertAreaSQL, area.ID, string(doc), tsUTC)
	if err != nil {
		return fmt.Errorf("save area %q: %w", area.ID, err)
	}
	return nil
}

// LoadAll fetches the full area map. An empty table yields an empty map.
func (r *AreaSQLite) LoadAll(ctx context.Context) (map[string]*sh.Area, error) {
	rows, err := r.db.QueryContext(ctx, selectAreasSQL)
	if err != nil {
		return nil, fmt.Errorf("select areas: %w", err)
	}
	defer rows.Close()

	areas := make(map[string]*sh.Area)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var area sh.Area
		if err := json.Unmarshal([]byte(doc), &area); err != nil {
			return nil, fmt.Errorf("unmarshal area doc: %w", err)
		}
		areas[area.ID] = &area
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return areas, nil
}

// Delete removes one area document.
func (r *AreaSQLite) Delete(ctx context.Context, areaID string) error {
	_, err := r.db.ExecContext(ctx, deleteAreaSQL, areaID)
	if err != nil {
		return fmt.Errorf("delete area %q: %w", areaID, err)
	}
	return nil
}

// SettingsSQLite stores the single global-settings row (id always 1).
type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

var _ SettingsRepo = (*SettingsSQLite)(nil)

const (
	globalSettingsRowID = 1

	upsertSettingsSQL = `
		INSERT INTO global_settings (id, doc, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc=excluded.doc,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `SELECT doc FROM global_settings WHERE id=?`
)

// Save upserts the settings row.
func (r *SettingsSQLite) Save(ctx context.Context, s sh.GlobalSettings) error {
	s.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal global settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, upsertSettingsSQL, globalSettingsRowID, string(doc), s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save global settings: %w", err)
	}
	return nil
}

// Load fetches the settings row, falling back to defaults when none exists.
func (r *SettingsSQLite) Load(ctx context.Context) (sh.GlobalSettings, error) {
	row := r.db.QueryRowContext(ctx, selectSettingsSQL, globalSettingsRowID)

	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return sh.DefaultGlobalSettings(), nil
		}
		return sh.GlobalSettings{}, fmt.Errorf("select global settings: %w", err)
	}

	var s sh.GlobalSettings
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return sh.GlobalSettings{}, fmt.Errorf("unmarshal global settings: %w", err)
	}
	if s.PresetTemps == nil {
		s.PresetTemps = sh.DefaultGlobalSettings().PresetTemps
	}
	return s, nil
}
