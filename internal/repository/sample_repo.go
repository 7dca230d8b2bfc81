package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sh "smart_heating"
)

type SampleSQLite struct {
	db *sql.DB
}

func NewSampleSQLite(db *sql.DB) *SampleSQLite { return &SampleSQLite{db: db} }

var _ SampleRepo = (*SampleSQLite)(nil)

const (
	insertSampleSQL = `
		INSERT INTO heating_samples
			(area_id, started_at, ended_at, start_temp, end_temp, target_temp, outdoor_temp, rate_per_minute)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectSamplesSQL = `
		SELECT id, area_id, started_at, ended_at, start_temp, end_temp, target_temp, outdoor_temp, rate_per_minute
		FROM heating_samples
		WHERE area_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	pruneSamplesSQL = `DELETE FROM heating_samples WHERE started_at < ?`
)

// Append inserts one completed heating cycle. Samples are never updated.
func (r *SampleSQLite) Append(ctx context.Context, s sh.HeatingSample) error {
	var outdoor sql.NullFloat64
	if s.OutdoorTemp != nil {
		outdoor = sql.NullFloat64{Float64: *s.OutdoorTemp, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, insertSampleSQL,
		s.AreaID,
		s.StartedAt.UTC(),
		s.EndedAt.UTC(),
		s.StartTemp,
		s.EndTemp,
		s.TargetTemp,
		outdoor,
		s.RatePerMinute,
	)
	if err != nil {
		return fmt.Errorf("append heating sample for %q: %w", s.AreaID, err)
	}
	return nil
}

// ListByArea returns the most recent samples for an area, newest first.
func (r *SampleSQLite) ListByArea(ctx context.Context, areaID string, limit int) ([]sh.HeatingSample, error) {
	rows, err := r.db.QueryContext(ctx, selectSamplesSQL, areaID, limit)
	if err != nil {
		return nil, fmt.Errorf("select heating samples for %q: %w", areaID, err)
	}
	defer rows.Close()

	out := make([]sh.HeatingSample, 0, limit)
	for rows.Next() {
		var s sh.HeatingSample
		var outdoor sql.NullFloat64
		if err := rows.Scan(
			&s.ID,
			&s.AreaID,
			&s.StartedAt,
			&s.EndedAt,
			&s.StartTemp,
			&s.EndTemp,
			&s.TargetTemp,
			&outdoor,
			&s.RatePerMinute,
		); err != nil {
			return nil, err
		}
		if outdoor.Valid {
			v := outdoor.Float64
			s.OutdoorTemp = &v
		}
		s.StartedAt = s.StartedAt.UTC()
		s.EndedAt = s.EndedAt.UTC()
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes samples older than the cutoff and reports how many went.
func (r *SampleSQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneSamplesSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune heating samples: %w", err)
	}
	return res.RowsAffected()
}
