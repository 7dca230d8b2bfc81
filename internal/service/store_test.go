package service

import (
	"context"
	"errors"
	"testing"

	sh "smart_heating"
)

func TestStore_LoadReplacesState(t *testing.T) {
	repo := newFakeAreaRepo()
	_ = repo.Save(context.Background(), sh.NewArea("living", "Living Room"))
	_ = repo.Save(context.Background(), sh.NewArea("bedroom", "Bedroom"))

	settings := &fakeSettingsRepo{}
	custom := sh.DefaultGlobalSettings()
	custom.Hysteresis = 1.2
	_ = settings.Save(context.Background(), custom)

	store := NewStore(repo, settings, logNop())
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	ids := store.IDs()
	if len(ids) != 2 || ids[0] != "bedroom" || ids[1] != "living" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if got := store.Settings().Hysteresis; got != 1.2 {
		t.Fatalf("expected loaded hysteresis 1.2, got %v", got)
	}
}

func TestStore_UpdatePersists(t *testing.T) {
	store, repo := newTestStore(t, sh.NewArea("living", "Living Room"))

	err := store.Update(context.Background(), "living", func(a *sh.Area) error {
		a.TargetTemperature = 22.5
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	saved := repo.lastSaved(t, "living")
	if saved.TargetTemperature != 22.5 {
		t.Fatalf("expected persisted target 22.5, got %v", saved.TargetTemperature)
	}
}

func TestStore_UpdateErrorAborts(t *testing.T) {
	store, repo := newTestStore(t, sh.NewArea("living", "Living Room"))
	boom := errors.New("boom")

	err := store.Update(context.Background(), "living", func(a *sh.Area) error {
		return boom
	})
	if err != boom {
		t.Fatalf("expected fn error back, got %v", err)
	}
	if saved := repo.lastSaved(t, "living"); saved.TargetTemperature != sh.DefaultTargetTemp {
		t.Fatalf("aborted update leaked into storage: %v", saved.TargetTemperature)
	}
}

func TestStore_UpdateUnknownArea(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Update(context.Background(), "ghost", func(a *sh.Area) error { return nil })
	if err != ErrAreaNotFound {
		t.Fatalf("expected ErrAreaNotFound, got %v", err)
	}
}

func TestStore_UpdateSurvivesSaveFailure(t *testing.T) {
	store, repo := newTestStore(t, sh.NewArea("living", "Living Room"))
	repo.saveErr = errors.New("disk full")

	err := store.Update(context.Background(), "living", func(a *sh.Area) error {
		a.TargetTemperature = 23
		return nil
	})
	if err != nil {
		t.Fatalf("save failure must not fail the update: %v", err)
	}

	got := areaState(t, store, "living")
	if got.TargetTemperature != 23 {
		t.Fatalf("in-memory state lost the update: %v", got.TargetTemperature)
	}
}

func TestStore_CreateRejectsDuplicate(t *testing.T) {
	store, _ := newTestStore(t, sh.NewArea("living", "Living Room"))
	if err := store.Create(context.Background(), sh.NewArea("living", "Other")); err == nil {
		t.Fatal("expected duplicate create to fail")
	}
}

func TestStore_Delete(t *testing.T) {
	store, repo := newTestStore(t, sh.NewArea("living", "Living Room"))

	if err := store.Delete(context.Background(), "living"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(context.Background(), "living"); err != ErrAreaNotFound {
		t.Fatalf("expected ErrAreaNotFound on second delete, got %v", err)
	}

	repo.mu.Lock()
	_, stillThere := repo.saved["living"]
	repo.mu.Unlock()
	if stillThere {
		t.Fatal("delete did not reach storage")
	}
}

func TestStore_AreaForDevice(t *testing.T) {
	area := sh.NewArea("living", "Living Room")
	area.Devices = []sh.Device{{ID: "tstat1", Type: sh.DeviceThermostat}}
	store, _ := newTestStore(t, area)

	if id, ok := store.AreaForDevice("tstat1"); !ok || id != "living" {
		t.Fatalf("expected living to own tstat1, got %q %v", id, ok)
	}
	if _, ok := store.AreaForDevice("unknown"); ok {
		t.Fatal("unknown device must not match")
	}
}

func TestStore_SavedCopyDoesNotShareBackingArrays(t *testing.T) {
	area := sh.NewArea("living", "Living Room")
	area.Schedules = []sh.ScheduleEntry{{
		ID: "e1", Day: "all", StartTime: "06:00", EndTime: "08:00", Enabled: true,
	}}
	store, repo := newTestStore(t, area)

	saved := repo.lastSaved(t, "living")

	err := store.Update(context.Background(), "living", func(a *sh.Area) error {
		a.Schedules[0].Enabled = false
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if !saved.Schedules[0].Enabled {
		t.Fatal("persisted copy shares schedule storage with the live area")
	}
}

func TestStore_SettingsReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)

	gs := store.Settings()
	gs.PresetTemps["eco"] = -100

	if got := store.Settings().PresetTemps["eco"]; got == -100 {
		t.Fatal("settings copy shares the preset map")
	}
}

func TestStore_UpdateSettingsPersists(t *testing.T) {
	repo := newFakeAreaRepo()
	settings := &fakeSettingsRepo{}
	store := NewStore(repo, settings, logNop())

	err := store.UpdateSettings(context.Background(), func(gs *sh.GlobalSettings) error {
		gs.Hysteresis = 0.8
		return nil
	})
	if err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if store.Settings().Hysteresis != 0.8 {
		t.Fatalf("in-memory settings not updated")
	}

	settings.mu.Lock()
	persisted := settings.settings.Hysteresis
	settings.mu.Unlock()
	if persisted != 0.8 {
		t.Fatalf("expected persisted hysteresis 0.8, got %v", persisted)
	}
}
