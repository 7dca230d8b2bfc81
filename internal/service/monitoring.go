package service

import (
	"context"
	"time"

	sh "smart_heating"
	"smart_heating/internal/repository"
)

// MonitoringService exposes the resolved, read-only view of the system.
type MonitoringService struct {
	store     *Store
	history   repository.HistoryRepo
	predictor *Predictor
}

func NewMonitoringService(store *Store, history repository.HistoryRepo, predictor *Predictor) *MonitoringService {
	return &MonitoringService{store: store, history: history, predictor: predictor}
}

// ListAreas returns a snapshot per area, resolved against the current time.
func (s *MonitoringService) ListAreas(ctx context.Context) ([]sh.AreaSnapshot, error) {
	gs := s.store.Settings()
	now := time.Now()
	out := make([]sh.AreaSnapshot, 0)
	s.store.WithAll(func(a *sh.Area) {
		out = append(out, buildSnapshot(a, gs, now))
	})
	return out, nil
}

// GetArea returns one area's snapshot.
func (s *MonitoringService) GetArea(ctx context.Context, areaID string) (*sh.AreaSnapshot, error) {
	gs := s.store.Settings()
	now := time.Now()
	var snap sh.AreaSnapshot
	if !s.store.With(areaID, func(a *sh.Area) { snap = buildSnapshot(a, gs, now) }) {
		return nil, ErrAreaNotFound
	}
	return &snap, nil
}

// GetAreaConfig returns the full stored configuration of one area.
func (s *MonitoringService) GetAreaConfig(ctx context.Context, areaID string) (*sh.Area, error) {
	var cp sh.Area
	if !s.store.With(areaID, func(a *sh.Area) { cp = a.Clone() }) {
		return nil, ErrAreaNotFound
	}
	return &cp, nil
}

// History returns temperature snapshots recorded since the given time.
func (s *MonitoringService) History(ctx context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error) {
	return s.history.List(ctx, areaID, since)
}

// Learning returns the predictor diagnostics for one area.
func (s *MonitoringService) Learning(ctx context.Context, areaID string) (*sh.LearningStats, error) {
	return s.predictor.Stats(ctx, areaID)
}

// Settings returns the global settings.
func (s *MonitoringService) Settings(ctx context.Context) (sh.GlobalSettings, error) {
	return s.store.Settings(), nil
}
