package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oakhurst-automation/stategate/internal/acl"
	"github.com/oakhurst-automation/stategate/internal/await"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/config"
	"github.com/oakhurst-automation/stategate/internal/infrastructure/logging"
	"github.com/oakhurst-automation/stategate/internal/resolver"
	"github.com/oakhurst-automation/stategate/internal/store"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE objects (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT 'state',
			name TEXT NOT NULL DEFAULT '',
			names TEXT NOT NULL DEFAULT '{}',
			common TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE INDEX idx_objects_name ON objects(name);
		CREATE TABLE states (
			id TEXT PRIMARY KEY,
			val TEXT,
			ack INTEGER NOT NULL DEFAULT 0,
			ts INTEGER NOT NULL,
			lc INTEGER NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			quality INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE acl_grants (
			username TEXT NOT NULL,
			resource TEXT NOT NULL,
			operation TEXT NOT NULL,
			allowed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (username, resource, operation)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testEnv wires a full server against an in-memory store.
type testEnv struct {
	store   *store.SQLiteStore
	handler http.Handler
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	st := store.NewSQLiteStore(db)
	t.Cleanup(st.Close)

	logger := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	res := resolver.New(st, "en")
	tracker := await.NewTracker(st)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go res.Run(ctx, st.ObjectEvents())
	go tracker.Run(ctx, st.StateEvents())

	gate := acl.NewGate(acl.NewSQLiteEngine(db), "system.user.admin", logger)

	srv, err := New(Deps{
		Config: config.APIConfig{
			DefaultUser: "system.user.admin",
			Language:    "en",
		},
		Logger:   logger,
		Store:    st,
		Resolver: res,
		Gate:     gate,
		Tracker:  tracker,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testEnv{store: st, handler: srv.buildRouter()}
}

func (e *testEnv) seedObject(t *testing.T, obj *store.Object) {
	t.Helper()
	if err := e.store.PutObject(context.Background(), obj); err != nil {
		t.Fatalf("PutObject(%s): %v", obj.ID, err)
	}
}

func (e *testEnv) seedState(t *testing.T, id string, val any) {
	t.Helper()
	if _, err := e.store.SetState(context.Background(), id, val, true, "test"); err != nil {
		t.Fatalf("SetState(%s): %v", id, err)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, target string) *httptest.ResponseRecorder {
	return e.do(t, http.MethodGet, target, "")
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func lampObject() *store.Object {
	return &store.Object{
		ID:   "hm-rpc.0.lamp.STATE",
		Type: "state",
		Common: store.Common{
			Name:  store.Name{Text: "Lamp"},
			Type:  store.TypeBoolean,
			Read:  true,
			Write: true,
		},
	}
}

func tempObject() *store.Object {
	min, max := 10.0, 30.0
	return &store.Object{
		ID:   "hm-rpc.0.temp.SETPOINT",
		Type: "state",
		Common: store.Common{
			Name:  store.Name{Text: "Setpoint"},
			Type:  store.TypeNumber,
			Min:   &min,
			Max:   &max,
			Read:  true,
			Write: true,
		},
	}
}

func TestSetWritesAndEchoesValue(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.get(t, "/set/hm-rpc.0.temp.SETPOINT?value=21.5")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["id"] != "hm-rpc.0.temp.SETPOINT" {
		t.Errorf("id = %v", resp["id"])
	}
	if resp["value"] != 21.5 || resp["val"] != 21.5 {
		t.Errorf("value = %v (%T), want numeric 21.5", resp["value"], resp["value"])
	}

	got, err := env.store.GetState(context.Background(), "hm-rpc.0.temp.SETPOINT")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got.Val != 21.5 || got.Ack {
		t.Errorf("stored state = %+v, want unacknowledged 21.5", got)
	}
}

func TestSetCoercesDecimalComma(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.get(t, "/set/hm-rpc.0.temp.SETPOINT?value=21%2C5")

	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["val"] != 21.5 {
		t.Errorf("val = %v (%T), want 21.5", resp["val"], resp["val"])
	}
}

func TestSetWithoutValueIsValidationError(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.get(t, "/set/hm-rpc.0.temp.SETPOINT")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestSetUnknownDatapoint(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/set/does.not.exist?value=1")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	var resp map[string]string
	decodeJSON(t, w, &resp)
	if !strings.Contains(resp["error"], "not found") {
		t.Errorf("error = %q", resp["error"])
	}
}

func TestSetResolvesByName(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())

	w := env.get(t, "/set/Lamp?value=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["id"] != "hm-rpc.0.lamp.STATE" {
		t.Errorf("id = %v, want canonical id", resp["id"])
	}
	if resp["val"] != true {
		t.Errorf("val = %v, want true", resp["val"])
	}
}

func TestSetWaitReturnsAcknowledgedValue(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	go func() {
		time.Sleep(30 * time.Millisecond)
		env.store.Acknowledge(context.Background(), "hm-rpc.0.temp.SETPOINT", 21.0, "device")
	}()

	w := env.get(t, "/set/hm-rpc.0.temp.SETPOINT?value=22&wait=2000")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["val"] != 21.0 {
		t.Errorf("val = %v, want device-confirmed 21", resp["val"])
	}
}

func TestSetWaitTimesOut(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.get(t, "/set/hm-rpc.0.temp.SETPOINT?value=22&wait=20")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 on timeout", w.Code)
	}
}

func TestGetMergesObjectAndState(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())
	env.seedState(t, "hm-rpc.0.temp.SETPOINT", 19.5)

	w := env.get(t, "/get/hm-rpc.0.temp.SETPOINT")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["_id"] != "hm-rpc.0.temp.SETPOINT" {
		t.Errorf("_id = %v", resp["_id"])
	}
	if resp["val"] != 19.5 {
		t.Errorf("val = %v", resp["val"])
	}
	if resp["ack"] != true {
		t.Errorf("ack = %v", resp["ack"])
	}
	if _, ok := resp["common"]; !ok {
		t.Error("common metadata missing from merged response")
	}
}

func TestGetUnknownDatapointEscapesID(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/get/bad%3Cid%3E")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if strings.ContainsAny(w.Body.String(), "<>") {
		t.Errorf("body reflects raw markup: %s", w.Body.String())
	}
}

func TestGetMultipleIDsInlineErrors(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/get/hm-rpc.0.lamp.STATE,missing.dp")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, multi-get must not fail wholesale", w.Code)
	}
	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("got %d entries", len(resp))
	}
	if resp[0]["val"] != true {
		t.Errorf("first entry val = %v", resp[0]["val"])
	}
	if _, ok := resp[1]["error"]; !ok {
		t.Errorf("second entry = %v, want inline error", resp[1])
	}
}

func TestGetBulkNullsFailures(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/getBulk/hm-rpc.0.lamp.STATE,missing.dp")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("got %d entries", len(resp))
	}
	if resp[0]["val"] != true || resp[0]["ack"] != true {
		t.Errorf("first entry = %v", resp[0])
	}
	if resp[1]["val"] != nil || resp[1]["ts"] != nil || resp[1]["ack"] != nil {
		t.Errorf("failed entry = %v, want nulled fields", resp[1])
	}
}

func TestGetPlainValue(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/getPlainValue/hm-rpc.0.lamp.STATE")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := w.Body.String(); got != "true" {
		t.Errorf("body = %q", got)
	}
}

func TestGetPlainValueJSONFlag(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/getPlainValue/hm-rpc.0.lamp.STATE?json=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var state struct {
		Val any   `json:"val"`
		Ack bool  `json:"ack"`
		TS  int64 `json:"ts"`
	}
	decodeJSON(t, w, &state)
	if state.Val != true {
		t.Errorf("val = %v, want true", state.Val)
	}
	if !state.Ack {
		t.Error("ack = false, want true")
	}
	if state.TS == 0 {
		t.Error("ts missing from state output")
	}
}

func TestGetPlainValueAllMissing(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/getPlainValue/missing.dp")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "error: ") {
		t.Errorf("body = %q, want plain error line", w.Body.String())
	}
}

func TestGetPlainValuePartialFailureStays200(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", false)

	w := env.get(t, "/getPlainValue/hm-rpc.0.lamp.STATE,missing.dp")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with inline error line", w.Code)
	}
	lines := strings.Split(w.Body.String(), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "false" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "error: ") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestToggleBoolean(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/toggle/hm-rpc.0.lamp.STATE")

	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["val"] != false {
		t.Errorf("val = %v, want false", resp["val"])
	}
}

func TestToggleNumberMirrorsInBounds(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject()) // bounds [10, 30]
	env.seedState(t, "hm-rpc.0.temp.SETPOINT", 12.0)

	w := env.get(t, "/toggle/hm-rpc.0.temp.SETPOINT")

	var resp map[string]any
	decodeJSON(t, w, &resp)
	if resp["val"] != 28.0 {
		t.Errorf("val = %v, want 28 (max + min - value)", resp["val"])
	}
}

func TestToggleUntoggleableValue(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, &store.Object{ID: "x.scene", Type: "state"})
	env.seedState(t, "x.scene", "sunset")

	w := env.get(t, "/toggle/x.scene")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestSetBulkPostBodyKeepsOrder(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())
	env.seedObject(t, lampObject())

	w := env.do(t, http.MethodPost, "/setBulk",
		"hm-rpc.0.temp.SETPOINT=21&hm-rpc.0.lamp.STATE=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("got %d entries", len(resp))
	}
	if resp[0]["id"] != "hm-rpc.0.temp.SETPOINT" || resp[0]["val"] != 21.0 {
		t.Errorf("entry 0 = %v", resp[0])
	}
	if resp[1]["id"] != "hm-rpc.0.lamp.STATE" || resp[1]["val"] != true {
		t.Errorf("entry 1 = %v", resp[1])
	}
}

func TestSetBulkInlineFailures(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())

	w := env.get(t, "/setBulk?missing.dp=1&hm-rpc.0.lamp.STATE=true")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, bulk must always complete", w.Code)
	}
	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if _, ok := resp[0]["error"]; !ok {
		t.Errorf("entry 0 = %v, want inline error", resp[0])
	}
	if resp[1]["val"] != true {
		t.Errorf("entry 1 = %v", resp[1])
	}
}

func TestSetValueFromBody(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.do(t, http.MethodPost, "/setValueFromBody/hm-rpc.0.temp.SETPOINT", "23.5")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 1 || resp[0]["val"] != 23.5 {
		t.Errorf("resp = %v", resp)
	}
}

func TestObjectsPatternNarrowing(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedObject(t, tempObject())
	env.seedObject(t, &store.Object{ID: "other.0.thing", Type: "state"})

	w := env.get(t, "/objects?pattern=hm-rpc.0.*")

	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 2 {
		t.Fatalf("got %d objects: %v", len(resp), resp)
	}
	for _, obj := range resp {
		if !strings.HasPrefix(obj["_id"].(string), "hm-rpc.0.") {
			t.Errorf("unexpected object %v", obj["_id"])
		}
	}
}

func TestObjectsNonTrailingWildcard(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedObject(t, tempObject())

	w := env.get(t, "/objects?pattern=hm-rpc.*.STATE")

	var resp []map[string]any
	decodeJSON(t, w, &resp)
	if len(resp) != 1 || resp[0]["_id"] != "hm-rpc.0.lamp.STATE" {
		t.Errorf("resp = %v, want only the lamp", resp)
	}
}

func TestStatesEmptyIsJSONArray(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/states?pattern=nothing.*")

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestSearchListsStateIDs(t *testing.T) {
	env := setupTestServer(t)
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)
	env.seedState(t, "other.0.thing", 1)

	w := env.get(t, "/search?pattern=hm-rpc.0.*")

	var resp []string
	decodeJSON(t, w, &resp)
	if len(resp) != 1 || resp[0] != "hm-rpc.0.lamp.STATE" {
		t.Errorf("resp = %v", resp)
	}
}

func TestQueryFallsBackToCurrentValue(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())
	env.seedState(t, "hm-rpc.0.temp.SETPOINT", 19.5)

	w := env.get(t, "/query/hm-rpc.0.temp.SETPOINT")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp []struct {
		Target     string  `json:"target"`
		Datapoints [][]any `json:"datapoints"`
	}
	decodeJSON(t, w, &resp)
	if len(resp) != 1 || resp[0].Target != "hm-rpc.0.temp.SETPOINT" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp[0].Datapoints) != 1 || resp[0].Datapoints[0][0] != 19.5 {
		t.Errorf("datapoints = %v", resp[0].Datapoints)
	}
}

func TestQueryTargetsFromPostBody(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())
	env.seedState(t, "hm-rpc.0.temp.SETPOINT", 21.0)

	w := env.do(t, http.MethodPost, "/query", "hm-rpc.0.temp.SETPOINT")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp []struct {
		Target     string  `json:"target"`
		Datapoints [][]any `json:"datapoints"`
	}
	decodeJSON(t, w, &resp)
	if len(resp) != 1 || resp[0].Target != "hm-rpc.0.temp.SETPOINT" {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp[0].Datapoints) != 1 || resp[0].Datapoints[0][0] != 21.0 {
		t.Errorf("datapoints = %v", resp[0].Datapoints)
	}
}

func TestQueryWithoutTargets(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/query")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestQueryUnresolvableDateFrom(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, tempObject())

	w := env.get(t, "/query/hm-rpc.0.temp.SETPOINT?dateFrom=gibberish")

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestAnnotationsAlwaysEmpty(t *testing.T) {
	env := setupTestServer(t)

	w := env.get(t, "/annotations")

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %q", got)
	}
}

func TestHelpServedAtRootAndUnknownCommands(t *testing.T) {
	env := setupTestServer(t)

	for _, target := range []string{"/", "/help", "/bogusCommand"} {
		w := env.get(t, target)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", target, w.Code)
			continue
		}
		var resp map[string]string
		decodeJSON(t, w, &resp)
		if _, ok := resp["set"]; !ok {
			t.Errorf("GET %s help map missing set entry", target)
		}
	}
}

func TestWriteDeniedForDefaultProfile(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())

	w := env.get(t, "/set/hm-rpc.0.lamp.STATE?value=true&user=system.user.guest")

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}

	// Reads stay open for the default profile.
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)
	w = env.get(t, "/get/hm-rpc.0.lamp.STATE?user=system.user.guest")
	if w.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", w.Code)
	}
}

func TestJSONPCallback(t *testing.T) {
	env := setupTestServer(t)
	env.seedObject(t, lampObject())
	env.seedState(t, "hm-rpc.0.lamp.STATE", true)

	w := env.get(t, "/get/hm-rpc.0.lamp.STATE?callback=render")

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "render(") || !strings.HasSuffix(body, ");") {
		t.Errorf("body = %q", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/get/some.id", nil)
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}
