package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sh "smart_heating"
	"smart_heating/internal/service"
)

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, buf)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAreaHandlers_ListAndGet(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	mon := &mockMonitoring{
		snapshots: []sh.AreaSnapshot{
			{ID: "living", Name: "Living Room", State: sh.StateHeating, EffectiveTarget: 20},
		},
		snapshot: &sh.AreaSnapshot{ID: "living", Name: "Living Room", State: sh.StateHeating},
	}
	s := &service.Service{Authorization: auth, Monitoring: mon}
	r := newTestRouter(s)

	// list requires auth
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/areas", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/areas", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count int               `json:"count"`
		Areas []sh.AreaSnapshot `json:"areas"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 1 || len(out.Areas) != 1 || out.Areas[0].ID != "living" {
		t.Fatalf("unexpected list response: %+v", out)
	}

	w = doJSON(t, r, http.MethodGet, "/api/v1/areas/living", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d, body=%s", w.Code, w.Body.String())
	}
	var snap sh.AreaSnapshot
	_ = json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.ID != "living" || snap.State != sh.StateHeating {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if mon.lastAreaID != "living" {
		t.Fatalf("GetArea got area %q", mon.lastAreaID)
	}
}

func TestAreaHandlers_UnknownAreaIs404(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	cmds := &mockCommands{err: service.ErrAreaNotFound}
	s := &service.Service{Authorization: auth, AreaCommands: cmds}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodPost, "/api/v1/areas/ghost/temperature", `{"temperature":21}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown area, got %d (body=%s)", w.Code, w.Body.String())
	}
}

func TestAreaHandlers_Commands(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	cmds := &mockCommands{}
	s := &service.Service{Authorization: auth, AreaCommands: cmds}
	r := newTestRouter(s)

	// create
	w := doJSON(t, r, http.MethodPost, "/api/v1/areas", `{"id":"living","name":"Living Room"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create status=%d, body=%s", w.Code, w.Body.String())
	}
	var created map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created["id"] != "living" {
		t.Fatalf("expected created id, got %v", created)
	}

	// create without name → 400, service untouched
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas", `{"id":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}
	if cmds.calls["CreateArea"] != 1 {
		t.Fatalf("CreateArea calls=%d, want 1", cmds.calls["CreateArea"])
	}

	// set temperature
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/temperature", `{"temperature":21.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("temperature status=%d, body=%s", w.Code, w.Body.String())
	}
	if cmds.lastAreaID != "living" || cmds.lastTemp != 21.5 {
		t.Fatalf("SetTemperature got area=%q temp=%v", cmds.lastAreaID, cmds.lastTemp)
	}

	// enable / disable
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/disable", "")
	if w.Code != http.StatusOK || cmds.lastEnabled {
		t.Fatalf("disable status=%d enabled=%v", w.Code, cmds.lastEnabled)
	}
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/enable", "")
	if w.Code != http.StatusOK || !cmds.lastEnabled {
		t.Fatalf("enable status=%d enabled=%v", w.Code, cmds.lastEnabled)
	}

	// preset
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/preset", `{"mode":"eco"}`)
	if w.Code != http.StatusOK || cmds.lastPreset != "eco" {
		t.Fatalf("preset status=%d mode=%q", w.Code, cmds.lastPreset)
	}

	// boost start and cancel
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/boost", `{"temperature":25,"duration_minutes":90}`)
	if w.Code != http.StatusOK {
		t.Fatalf("boost status=%d, body=%s", w.Code, w.Body.String())
	}
	if cmds.lastTemp != 25 || cmds.lastBoostMin != 90 {
		t.Fatalf("StartBoost got temp=%v min=%d", cmds.lastTemp, cmds.lastBoostMin)
	}
	w = doJSON(t, r, http.MethodDelete, "/api/v1/areas/living/boost", "")
	if w.Code != http.StatusOK || cmds.calls["CancelBoost"] != 1 {
		t.Fatalf("cancel boost status=%d calls=%d", w.Code, cmds.calls["CancelBoost"])
	}

	// schedule add carries the payload through, enabled by default
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/schedules",
		`{"day":"mon","start_time":"06:00","end_time":"08:00","temperature":21}`)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule status=%d, body=%s", w.Code, w.Body.String())
	}
	var sched map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &sched)
	if sched["entry_id"] != "entry-1" {
		t.Fatalf("expected entry id, got %v", sched)
	}
	if cmds.lastEntry.Day != "mon" || !cmds.lastEntry.Enabled || cmds.lastEntry.Temperature == nil {
		t.Fatalf("AddSchedule got %+v", cmds.lastEntry)
	}

	// schedule toggle
	w = doJSON(t, r, http.MethodPatch, "/api/v1/areas/living/schedules/entry-1", `{"enabled":false}`)
	if w.Code != http.StatusOK || cmds.lastEntryID != "entry-1" || cmds.lastEnabled {
		t.Fatalf("toggle status=%d entry=%q enabled=%v", w.Code, cmds.lastEntryID, cmds.lastEnabled)
	}

	// window sensor attach
	w = doJSON(t, r, http.MethodPost, "/api/v1/areas/living/window-sensors",
		`{"entity_id":"win1","action_when_open":"turn_off"}`)
	if w.Code != http.StatusOK || cmds.calls["AddWindowSensor"] != 1 {
		t.Fatalf("window sensor status=%d calls=%d", w.Code, cmds.calls["AddWindowSensor"])
	}
}

func TestSettingsHandlers(t *testing.T) {
	auth := &mockAuth{parseID: 7}
	cmds := &mockCommands{}
	mon := &mockMonitoring{settings: sh.DefaultGlobalSettings()}
	s := &service.Service{Authorization: auth, AreaCommands: cmds, Monitoring: mon}
	r := newTestRouter(s)

	w := doJSON(t, r, http.MethodGet, "/api/v1/settings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("settings status=%d, body=%s", w.Code, w.Body.String())
	}
	var gs sh.GlobalSettings
	_ = json.Unmarshal(w.Body.Bytes(), &gs)
	if gs.Hysteresis != sh.DefaultHysteresis {
		t.Fatalf("unexpected settings: %+v", gs)
	}

	w = doJSON(t, r, http.MethodPut, "/api/v1/settings/hysteresis", `{"hysteresis":0.8}`)
	if w.Code != http.StatusOK || cmds.lastTemp != 0.8 {
		t.Fatalf("hysteresis status=%d value=%v", w.Code, cmds.lastTemp)
	}

	w = doJSON(t, r, http.MethodPut, "/api/v1/settings/frost-protection", `{"enabled":true,"temperature":8}`)
	if w.Code != http.StatusOK || !cmds.lastEnabled || cmds.lastTemp != 8 {
		t.Fatalf("frost status=%d enabled=%v temp=%v", w.Code, cmds.lastEnabled, cmds.lastTemp)
	}

	w = doJSON(t, r, http.MethodPut, "/api/v1/settings/presets/eco", `{"temperature":17.5}`)
	if w.Code != http.StatusOK || cmds.lastPreset != "eco" || cmds.lastTemp != 17.5 {
		t.Fatalf("preset temp status=%d mode=%q temp=%v", w.Code, cmds.lastPreset, cmds.lastTemp)
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	s := &service.Service{}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
}
