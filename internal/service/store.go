package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	sh "smart_heating"
	"smart_heating/internal/logger"
	"smart_heating/internal/repository"
)

// ErrAreaNotFound is returned by store and command operations for unknown ids.
var ErrAreaNotFound = errors.New("area not found")

// Store owns the in-memory area map and the global settings. Every mutation
// serializes through it: read-modify-write under the lock, then persist.
// A failed save keeps the in-memory state authoritative for the running
// process; the next successful save reconciles.
type Store struct {
	mu       sync.RWMutex
	areas    map[string]*sh.Area
	settings sh.GlobalSettings

	areaRepo     repository.AreaRepo
	settingsRepo repository.SettingsRepo
	log          *logger.Logger
}

func NewStore(areaRepo repository.AreaRepo, settingsRepo repository.SettingsRepo, log *logger.Logger) *Store {
	return &Store{
		areas:        make(map[string]*sh.Area),
		settings:     sh.DefaultGlobalSettings(),
		areaRepo:     areaRepo,
		settingsRepo: settingsRepo,
		log:          log,
	}
}

// Load replaces the in-memory state with the persisted one.
func (s *Store) Load(ctx context.Context) error {
	areas, err := s.areaRepo.LoadAll(ctx)
	if err != nil {
		return err
	}
	settings, err := s.settingsRepo.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.areas = areas
	s.settings = settings
	s.mu.Unlock()

	s.log.Infow("areas_loaded", "count", len(areas))
	return nil
}

// IDs returns all area ids, sorted for stable iteration.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.areas))
	for id := range s.areas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// With runs fn with read access to an area. Returns false for unknown ids.
// fn must not mutate the area or retain the pointer.
func (s *Store) With(areaID string, fn func(a *sh.Area)) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.areas[areaID]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// WithAll runs fn once per area, under the read lock.
func (s *Store) WithAll(fn func(a *sh.Area)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedIDsLocked() {
		fn(s.areas[id])
	}
}

func (s *Store) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.areas))
	for id := range s.areas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Update applies fn to an area under the write lock and persists the result.
// An error from fn skips persistence; fn must validate before mutating so a
// failed update leaves the area untouched. A persistence
// failure is logged, not returned: the in-memory state governs behavior until
// the next save succeeds.
func (s *Store) Update(ctx context.Context, areaID string, fn func(a *sh.Area) error) error {
	s.mu.Lock()
	a, ok := s.areas[areaID]
	if !ok {
		s.mu.Unlock()
		return ErrAreaNotFound
	}
	if err := fn(a); err != nil {
		s.mu.Unlock()
		return err
	}
	saved := a.Clone()
	s.mu.Unlock()

	if err := s.areaRepo.Save(ctx, &saved); err != nil {
		s.log.Errorw("area_save_failed", "area", areaID, "err", err)
	}
	return nil
}

// Create adds a new area and persists it.
func (s *Store) Create(ctx context.Context, area *sh.Area) error {
	s.mu.Lock()
	if _, exists := s.areas[area.ID]; exists {
		s.mu.Unlock()
		return errors.New("area already exists")
	}
	s.areas[area.ID] = area
	saved := area.Clone()
	s.mu.Unlock()

	if err := s.areaRepo.Save(ctx, &saved); err != nil {
		s.log.Errorw("area_save_failed", "area", area.ID, "err", err)
	}
	return nil
}

// Delete removes an area from memory and storage.
func (s *Store) Delete(ctx context.Context, areaID string) error {
	s.mu.Lock()
	if _, ok := s.areas[areaID]; !ok {
		s.mu.Unlock()
		return ErrAreaNotFound
	}
	delete(s.areas, areaID)
	s.mu.Unlock()

	if err := s.areaRepo.Delete(ctx, areaID); err != nil {
		s.log.Errorw("area_delete_failed", "area", areaID, "err", err)
	}
	return nil
}

// AreaForDevice returns the id of the area owning a device, if any.
func (s *Store) AreaForDevice(deviceID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, a := range s.areas {
		if a.HasDevice(deviceID) {
			return id, true
		}
	}
	return "", false
}

// Settings returns a copy of the global settings.
func (s *Store) Settings() sh.GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// UpdateSettings applies fn to the global settings and persists them.
func (s *Store) UpdateSettings(ctx context.Context, fn func(gs *sh.GlobalSettings) error) error {
	s.mu.Lock()
	if err := fn(&s.settings); err != nil {
		s.mu.Unlock()
		return err
	}
	saved := s.settings.Clone()
	s.mu.Unlock()

	if err := s.settingsRepo.Save(ctx, saved); err != nil {
		s.log.Errorw("settings_save_failed", "err", err)
	}
	return nil
}
