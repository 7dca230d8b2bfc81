package service

import (
	"context"
	"sync"
	"testing"
	"time"

	sh "smart_heating"
	"smart_heating/internal/logger"
)

type fakeAreaRepo struct {
	mu      sync.Mutex
	saved   map[string]sh.Area
	saveErr error
}

func newFakeAreaRepo() *fakeAreaRepo {
	return &fakeAreaRepo{saved: make(map[string]sh.Area)}
}

func (f *fakeAreaRepo) Save(ctx context.Context, area *sh.Area) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[area.ID] = *area
	return nil
}

func (f *fakeAreaRepo) LoadAll(ctx context.Context) (map[string]*sh.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*sh.Area, len(f.saved))
	for id, a := range f.saved {
		cp := a
		out[id] = &cp
	}
	return out, nil
}

func (f *fakeAreaRepo) Delete(ctx context.Context, areaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, areaID)
	return nil
}

func (f *fakeAreaRepo) lastSaved(t *testing.T, areaID string) sh.Area {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.saved[areaID]
	if !ok {
		t.Fatalf("expected area %q to be saved", areaID)
	}
	return a
}

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings sh.GlobalSettings
	loaded   bool
}

func (f *fakeSettingsRepo) Save(ctx context.Context, s sh.GlobalSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = s
	f.loaded = true
	return nil
}

func (f *fakeSettingsRepo) Load(ctx context.Context) (sh.GlobalSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return sh.DefaultGlobalSettings(), nil
	}
	return f.settings, nil
}

type fakeSampleRepo struct {
	mu      sync.Mutex
	samples []sh.HeatingSample
	listErr error
}

func (f *fakeSampleRepo) Append(ctx context.Context, s sh.HeatingSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeSampleRepo) ListByArea(ctx context.Context, areaID string, limit int) ([]sh.HeatingSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []sh.HeatingSample
	for i := len(f.samples) - 1; i >= 0 && len(out) < limit; i-- {
		if f.samples[i].AreaID == areaID {
			out = append(out, f.samples[i])
		}
	}
	return out, nil
}

func (f *fakeSampleRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.samples[:0]
	var pruned int64
	for _, s := range f.samples {
		if s.EndedAt.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, s)
	}
	f.samples = kept
	return pruned, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []sh.HistoryEntry
}

func (f *fakeHistoryRepo) Record(ctx context.Context, e sh.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistoryRepo) List(ctx context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sh.HistoryEntry
	for _, e := range f.entries {
		if e.AreaID == areaID && !e.RecordedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeEventRepo struct {
	mu       sync.Mutex
	events   []sh.AreaEvent
	lastFrom time.Time
	lastTo   time.Time
}

func (f *fakeEventRepo) Append(ctx context.Context, e sh.AreaEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEventRepo) List(ctx context.Context, areaID string, from, to time.Time, typ string) ([]sh.AreaEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo = from, to
	var out []sh.AreaEvent
	for _, e := range f.events {
		if areaID != "" && e.AreaID != areaID {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) countOfType(typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

// newTestStore builds a store seeded with the given areas.
func newTestStore(t *testing.T, areas ...*sh.Area) (*Store, *fakeAreaRepo) {
	t.Helper()
	repo := newFakeAreaRepo()
	store := NewStore(repo, &fakeSettingsRepo{}, logger.Nop())
	for _, a := range areas {
		if err := store.Create(context.Background(), a); err != nil {
			t.Fatalf("seed area %q: %v", a.ID, err)
		}
	}
	return store, repo
}

func floatPtr(v float64) *float64 { return &v }

func logNop() *logger.Logger { return logger.Nop() }
