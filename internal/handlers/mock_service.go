package handlers

import (
	"context"
	"net/http"
	"time"

	sh "smart_heating"
	"smart_heating/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockCommands records the last invocation of each mutation and returns a
// single configurable error.
type mockCommands struct {
	err error

	created      *sh.Area
	lastAreaID   string
	lastTemp     float64
	lastEnabled  bool
	lastPreset   string
	lastEntry    sh.ScheduleEntry
	lastEntryID  string
	lastBoostMin int
	calls        map[string]int
}

func (m *mockCommands) record(name, areaID string) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
	m.lastAreaID = areaID
}

func (m *mockCommands) CreateArea(_ context.Context, id, name string) (*sh.Area, error) {
	m.record("CreateArea", id)
	if m.err != nil {
		return nil, m.err
	}
	if m.created != nil {
		return m.created, nil
	}
	return sh.NewArea(id, name), nil
}
func (m *mockCommands) DeleteArea(_ context.Context, areaID string) error {
	m.record("DeleteArea", areaID)
	return m.err
}
func (m *mockCommands) UpdateArea(_ context.Context, areaID string, _ *string, _, _ *bool) error {
	m.record("UpdateArea", areaID)
	return m.err
}
func (m *mockCommands) SetDevices(_ context.Context, areaID string, _ []sh.Device) error {
	m.record("SetDevices", areaID)
	return m.err
}
func (m *mockCommands) SetTemperature(_ context.Context, areaID string, temp float64) error {
	m.record("SetTemperature", areaID)
	m.lastTemp = temp
	return m.err
}
func (m *mockCommands) SetEnabled(_ context.Context, areaID string, enabled bool) error {
	m.record("SetEnabled", areaID)
	m.lastEnabled = enabled
	return m.err
}
func (m *mockCommands) SetPreset(_ context.Context, areaID, mode string) error {
	m.record("SetPreset", areaID)
	m.lastPreset = mode
	return m.err
}
func (m *mockCommands) SetPresetOverride(_ context.Context, areaID, mode string, _ *float64) error {
	m.record("SetPresetOverride", areaID)
	m.lastPreset = mode
	return m.err
}
func (m *mockCommands) StartBoost(_ context.Context, areaID string, temp float64, durationMinutes int) error {
	m.record("StartBoost", areaID)
	m.lastTemp = temp
	m.lastBoostMin = durationMinutes
	return m.err
}
func (m *mockCommands) CancelBoost(_ context.Context, areaID string) error {
	m.record("CancelBoost", areaID)
	return m.err
}
func (m *mockCommands) AddSchedule(_ context.Context, areaID string, entry sh.ScheduleEntry) (string, error) {
	m.record("AddSchedule", areaID)
	m.lastEntry = entry
	if m.err != nil {
		return "", m.err
	}
	return "entry-1", nil
}
func (m *mockCommands) DeleteSchedule(_ context.Context, areaID, entryID string) error {
	m.record("DeleteSchedule", areaID)
	m.lastEntryID = entryID
	return m.err
}
func (m *mockCommands) SetScheduleEnabled(_ context.Context, areaID, entryID string, enabled bool) error {
	m.record("SetScheduleEnabled", areaID)
	m.lastEntryID = entryID
	m.lastEnabled = enabled
	return m.err
}
func (m *mockCommands) SetNightBoost(_ context.Context, areaID string, _ sh.NightBoostConfig) error {
	m.record("SetNightBoost", areaID)
	return m.err
}
func (m *mockCommands) SetSmartNightBoost(_ context.Context, areaID string, _ sh.SmartNightBoostConfig) error {
	m.record("SetSmartNightBoost", areaID)
	return m.err
}
func (m *mockCommands) AddWindowSensor(_ context.Context, areaID string, _ sh.WindowSensor) error {
	m.record("AddWindowSensor", areaID)
	return m.err
}
func (m *mockCommands) RemoveWindowSensor(_ context.Context, areaID, _ string) error {
	m.record("RemoveWindowSensor", areaID)
	return m.err
}
func (m *mockCommands) AddPresenceSensor(_ context.Context, areaID string, _ sh.PresenceSensor) error {
	m.record("AddPresenceSensor", areaID)
	return m.err
}
func (m *mockCommands) RemovePresenceSensor(_ context.Context, areaID, _ string) error {
	m.record("RemovePresenceSensor", areaID)
	return m.err
}
func (m *mockCommands) SetHysteresis(_ context.Context, h float64) error {
	m.record("SetHysteresis", "")
	m.lastTemp = h
	return m.err
}
func (m *mockCommands) SetFrostProtection(_ context.Context, enabled bool, temp float64) error {
	m.record("SetFrostProtection", "")
	m.lastEnabled = enabled
	m.lastTemp = temp
	return m.err
}
func (m *mockCommands) SetGlobalPresetTemp(_ context.Context, mode string, temp float64) error {
	m.record("SetGlobalPresetTemp", "")
	m.lastPreset = mode
	m.lastTemp = temp
	return m.err
}

type mockMonitoring struct {
	snapshots []sh.AreaSnapshot
	snapshot  *sh.AreaSnapshot
	config    *sh.Area
	history   []sh.HistoryEntry
	learning  *sh.LearningStats
	settings  sh.GlobalSettings
	err       error

	lastAreaID string
	lastSince  time.Time
}

func (m *mockMonitoring) ListAreas(context.Context) ([]sh.AreaSnapshot, error) {
	return m.snapshots, m.err
}
func (m *mockMonitoring) GetArea(_ context.Context, areaID string) (*sh.AreaSnapshot, error) {
	m.lastAreaID = areaID
	return m.snapshot, m.err
}
func (m *mockMonitoring) GetAreaConfig(_ context.Context, areaID string) (*sh.Area, error) {
	m.lastAreaID = areaID
	return m.config, m.err
}
func (m *mockMonitoring) History(_ context.Context, areaID string, since time.Time) ([]sh.HistoryEntry, error) {
	m.lastAreaID = areaID
	m.lastSince = since
	return m.history, m.err
}
func (m *mockMonitoring) Learning(_ context.Context, areaID string) (*sh.LearningStats, error) {
	m.lastAreaID = areaID
	return m.learning, m.err
}
func (m *mockMonitoring) Settings(context.Context) (sh.GlobalSettings, error) {
	return m.settings, m.err
}

type mockEventLog struct {
	resp       []sh.AreaEvent
	err        error
	lastAreaID string
	lastFrom   time.Time
	lastTo     time.Time
	lastType   string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]sh.AreaEvent, error) {
	m.lastAreaID = f.AreaID
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	return newTestRouterWithHub(s, NewSnapshotHub())
}

func newTestRouterWithHub(s *service.Service, hub *SnapshotHub) *gin.Engine {
	h := NewHandler(s, hub, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
