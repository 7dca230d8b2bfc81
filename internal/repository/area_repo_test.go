package repository

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	sh "smart_heating"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockAreaRepo(t *testing.T) (*AreaSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewAreaSQLite(db)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func TestAreaSQLite_Save(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	area := sh.NewArea("living", "Living Room")
	area.UpdatedAt = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	doc, err := json.Marshal(area)
	if err != nil {
		t.Fatalf("marshal area: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(upsertAreaSQL)).
		WithArgs("living", string(doc), area.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), area); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAreaSQLite_SaveNormalizesTimestamp(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	area := sh.NewArea("living", "Living Room")
	area.UpdatedAt = time.Date(2025, 1, 6, 13, 0, 0, 0, berlin)

	mock.ExpectExec(regexp.QuoteMeta(upsertAreaSQL)).
		WithArgs("living", sqlmock.AnyArg(), area.UpdatedAt.UTC()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), area); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if area.UpdatedAt.Location() != time.UTC {
		t.Fatalf("expected UpdatedAt stamped in UTC, got %v", area.UpdatedAt.Location())
	}
}

func TestAreaSQLite_SaveExecError(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(upsertAreaSQL)).
		WillReturnError(errors.New("disk full"))

	err := repo.Save(context.Background(), sh.NewArea("living", "Living Room"))
	if err == nil || !contains(err.Error(), "save area") {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestAreaSQLite_LoadAll(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	living := sh.NewArea("living", "Living Room")
	living.TargetTemperature = 21.5
	bedroom := sh.NewArea("bedroom", "Bedroom")

	livingDoc, _ := json.Marshal(living)
	bedroomDoc, _ := json.Marshal(bedroom)

	rows := sqlmock.NewRows([]string{"doc"}).
		AddRow(string(livingDoc)).
		AddRow(string(bedroomDoc))
	mock.ExpectQuery(regexp.QuoteMeta(selectAreasSQL)).WillReturnRows(rows)

	areas, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas, got %d", len(areas))
	}
	got, ok := areas["living"]
	if !ok {
		t.Fatal("living area missing from map")
	}
	if got.Name != "Living Room" || got.TargetTemperature != 21.5 {
		t.Fatalf("loaded area differs: %+v", got)
	}
}

func TestAreaSQLite_LoadAllEmpty(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(selectAreasSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	areas, err := repo.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if areas == nil || len(areas) != 0 {
		t.Fatalf("expected empty map, got %v", areas)
	}
}

func TestAreaSQLite_LoadAllBadDocument(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"doc"}).AddRow("{not json")
	mock.ExpectQuery(regexp.QuoteMeta(selectAreasSQL)).WillReturnRows(rows)

	_, err := repo.LoadAll(context.Background())
	if err == nil || !contains(err.Error(), "unmarshal area doc") {
		t.Fatalf("expected unmarshal error, got %v", err)
	}
}

func TestAreaSQLite_Delete(t *testing.T) {
	repo, mock, cleanup := newMockAreaRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(deleteAreaSQL)).
		WithArgs("living").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "living"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSettingsSQLite_LoadFallsBackToDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsSQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectSettingsSQL)).
		WithArgs(globalSettingsRowID).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	gs, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.Hysteresis != sh.DefaultHysteresis {
		t.Fatalf("expected default hysteresis, got %v", gs.Hysteresis)
	}
	if gs.PresetTemps[sh.PresetEco] != 18 {
		t.Fatalf("expected default eco preset, got %v", gs.PresetTemps[sh.PresetEco])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestSettingsSQLite_SaveLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewSettingsSQLite(db)

	gs := sh.DefaultGlobalSettings()
	gs.Hysteresis = 0.8
	gs.FrostProtectionEnabled = true

	mock.ExpectExec(regexp.QuoteMeta(upsertSettingsSQL)).
		WithArgs(globalSettingsRowID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), gs); err != nil {
		t.Fatalf("save: %v", err)
	}

	doc, _ := json.Marshal(gs)
	mock.ExpectQuery(regexp.QuoteMeta(selectSettingsSQL)).
		WithArgs(globalSettingsRowID).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(string(doc)))

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Hysteresis != 0.8 || !got.FrostProtectionEnabled {
		t.Fatalf("loaded settings differ: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
