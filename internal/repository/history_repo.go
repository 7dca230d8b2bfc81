package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sh "smart_heating"
)

type HistorySQLite struct {
	db *sql.DB
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite { return &HistorySQLite{db: db} }

var _ HistoryRepo = (*HistorySQLite)(nil)

const (
	insertHistorySQL = `
		INSERT INTO area_history (area_id, recorded_at, current_temp, target_temp, state)
		VALUES (?, ?, ?, ?, ?)
	`

	selectHistorySQL = `
		SELECT area_id, recorded_at, current_temp, target_temp, state
		FROM area_history
		WHERE area_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC
	`

	pruneHistorySQL = `DELETE FROM area_history WHERE recorded_at < ?`
)

// Record appends one temperature snapshot.
func (r *HistorySQLite) Record(ctx context.Context, e sh.HistoryEntry) error {
	ts := e.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		e.AreaID, ts.UTC(), e.CurrentTemp, e.TargetTemp, e.State)
	if err != nil {
		return fmt.Errorf("record history for %q: %w", e.AreaID, err)
	}
	return nil
}

// List returns an area's snapshots since the given time, oldest first.
func (r *HistorySQLite) List(ctx context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, selectHistorySQL, areaID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("select history for %q: %w", areaID, err)
	}
	defer rows.Close()

	var out []sh.HistoryEntry
	for rows.Next() {
		var e sh.HistoryEntry
		if err := rows.Scan(&e.AreaID, &e.RecordedAt, &e.CurrentTemp, &e.TargetTemp, &e.State); err != nil {
			return nil, err
		}
		e.RecordedAt = e.RecordedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prune deletes snapshots older than the retention cutoff.
func (r *HistorySQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, pruneHistorySQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
