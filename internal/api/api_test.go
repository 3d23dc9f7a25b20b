package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"audioscribe/internal/credential"
	"audioscribe/internal/engine"
	"audioscribe/internal/events"
	"audioscribe/internal/model"
	"audioscribe/internal/persist"
	"audioscribe/internal/repository"
	"audioscribe/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type fakeTranscriber struct {
	err      error
	lastID   string
	lastOpts engine.StartOptions
}

func (f *fakeTranscriber) Start(id string, opts engine.StartOptions) error {
	f.lastID, f.lastOpts = id, opts
	return f.err
}

func (f *fakeTranscriber) Pause(id string) error { return f.err }

type fakeStager struct {
	versionID string
	err       error
	last      engine.StageRequest
}

func (f *fakeStager) Start(itemID string, req engine.StageRequest) (string, error) {
	f.last = req
	return f.versionID, f.err
}

type fakeProjects struct {
	listErr   error
	deleteErr error
	saved     []string
	state     map[string]persist.SaveState
}

func (f *fakeProjects) SaveByID(ctx context.Context, id string) error {
	f.saved = append(f.saved, id)
	return nil
}

func (f *fakeProjects) State(id string) persist.SaveState { return f.state[id] }

func (f *fakeProjects) List(ctx context.Context) ([]model.ProjectSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []model.ProjectSummary{{ID: "p1", FileName: "a.mp3"}}, nil
}

func (f *fakeProjects) Delete(ctx context.Context, id string) error { return f.deleteErr }

func (f *fakeProjects) Load(ctx context.Context, id string) (model.MediaItem, error) {
	return model.MediaItem{}, &persist.StorageError{Op: "load", ID: id, Err: repository.ErrNotFound}
}

type testEnv struct {
	router   *gin.Engine
	items    *storage.Items
	bus      *events.Bus
	creds    *credential.Holder
	tr       *fakeTranscriber
	stager   *fakeStager
	projects *fakeProjects
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		items:    storage.NewItems(),
		bus:      events.NewBus(100),
		creds:    credential.NewHolder(""),
		tr:       &fakeTranscriber{},
		stager:   &fakeStager{},
		projects: &fakeProjects{state: map[string]persist.SaveState{}},
	}
	srv := NewServer(Deps{
		Items:       env.items,
		Uploader:    storage.NewUploader(t.TempDir(), env.items),
		Bus:         env.bus,
		Credentials: env.creds,
		Transcriber: env.tr,
		Stager:      env.stager,
		Projects:    env.projects,
	})
	env.router = gin.New()
	srv.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

// TestUploadRegistersIdleItem verifies multipart ingestion and activation.
func TestUploadRegistersIdleItem(t *testing.T) {
	env := newTestEnv(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("audio_file", "lecture.mp3")
	_, _ = part.Write([]byte("ID3 fake audio"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	list := env.items.List()
	if len(list) != 1 || list[0].Status != model.StatusIdle || !list[0].HasSource() {
		t.Fatalf("items = %+v", list)
	}
	active, ok := env.items.Active()
	if !ok || active.ID != list[0].ID {
		t.Fatalf("active = %+v, %v", active, ok)
	}
}

// TestUploadRejectsUnsupportedFormat verifies extension validation.
func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "notes.pdf")
	_, _ = part.Write([]byte("%PDF"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(env.items.List()) != 0 {
		t.Fatal("rejected upload registered an item")
	}
}

// TestTranscribeErrorMapping verifies domain errors become HTTP statuses.
func TestTranscribeErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		reason string
	}{
		{engine.ErrCredentialMissing, http.StatusUnauthorized, "credential_missing"},
		{fmt.Errorf("start a: %w", engine.ErrNeedsDecision), http.StatusConflict, "needs_decision"},
		{fmt.Errorf("start a: %w", engine.ErrAlreadyRunning), http.StatusConflict, "already_running"},
		{fmt.Errorf("start a: %w: gone", engine.ErrSourceUnavailable), http.StatusUnprocessableEntity, "source_unavailable"},
		{fmt.Errorf("start a: %w", engine.ErrItemNotFound), http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		env.tr.err = tc.err
		w := env.do(http.MethodPost, "/api/v1/items/a/transcribe", "")
		if w.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		if got := decode(t, w)["code"]; got != tc.reason {
			t.Fatalf("%v: code = %v, want %s", tc.err, got, tc.reason)
		}
	}
}

// TestTranscribeDecisionIsForwarded verifies the request body becomes StartOptions.
func TestTranscribeDecisionIsForwarded(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/items/a/transcribe", `{"decision":"restart"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	if env.tr.lastID != "a" || env.tr.lastOpts.Decide == nil || env.tr.lastOpts.Resume {
		t.Fatalf("opts = %+v", env.tr.lastOpts)
	}
	d, _ := env.tr.lastOpts.Decide(context.Background(), model.MediaItem{})
	if d != engine.DecisionRestart {
		t.Fatalf("decision = %v, want restart", d)
	}

	if w := env.do(http.MethodPost, "/api/v1/items/a/transcribe", `{"decision":"maybe"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad decision status = %d, want 400", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/items/a/transcribe", `{"resume":true}`); w.Code != http.StatusAccepted || !env.tr.lastOpts.Resume {
		t.Fatalf("resume status = %d opts = %+v", w.Code, env.tr.lastOpts)
	}
}

// TestStageEndpoint verifies started and no-op stage responses.
func TestStageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/v1/items/a/stages", `{"kind":"titles","parent_id":"raw-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("noop status = %d, want 200", w.Code)
	}
	if env.stager.last.Kind != model.StageTitles {
		t.Fatalf("kind = %q, want TITLES", env.stager.last.Kind)
	}

	env.stager.versionID = "v-2"
	w = env.do(http.MethodPost, "/api/v1/items/a/stages", `{"kind":"CUSTOM","parent_id":"raw-1","prompt":"shorter"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["version_id"] != "v-2" {
		t.Fatalf("data = %v", data)
	}

	if w := env.do(http.MethodPost, "/api/v1/items/a/stages", `{"kind":"TITLES"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing parent status = %d, want 400", w.Code)
	}
}

// TestCurrentVersionEndpoint verifies version selection against the lineage.
func TestCurrentVersionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	item := model.NewMediaItem("a", "a.mp3", "", time.Unix(0, 0))
	_ = item.AppendVersion(model.Version{ID: "raw", StageKind: model.StageRaw}, false)
	_ = env.items.Add(item)

	if w := env.do(http.MethodPut, "/api/v1/items/a/current-version", `{"version_id":"raw"}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got, _ := env.items.Get("a")
	if got.CurrentVersionID != "raw" {
		t.Fatalf("current = %q", got.CurrentVersionID)
	}
	if w := env.do(http.MethodPut, "/api/v1/items/a/current-version", `{"version_id":"nope"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown version status = %d, want 404", w.Code)
	}
}

// TestProjectErrors verifies storage error mapping on library routes.
func TestProjectErrors(t *testing.T) {
	env := newTestEnv(t)
	env.projects.deleteErr = &persist.StorageError{Op: "delete", ID: "p1", Err: repository.ErrPolicyBlocked}
	if w := env.do(http.MethodDelete, "/api/v1/projects/p1", ""); w.Code != http.StatusForbidden {
		t.Fatalf("blocked delete status = %d, want 403", w.Code)
	}
	env.projects.deleteErr = nil
	if w := env.do(http.MethodDelete, "/api/v1/projects/p1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}

	env.projects.listErr = &persist.StorageError{Op: "list", Err: errors.New("connection refused")}
	if w := env.do(http.MethodGet, "/api/v1/projects", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("list status = %d, want 502", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/v1/projects/missing/load", ""); w.Code != http.StatusNotFound {
		t.Fatalf("load status = %d, want 404", w.Code)
	}
}

// TestCredentialEndpoint verifies runtime key replacement.
func TestCredentialEndpoint(t *testing.T) {
	env := newTestEnv(t)
	if w := env.do(http.MethodPut, "/api/v1/credential", `{"api_key":" sk-new "}`); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if key, ok := env.creds.Get(); !ok || key != "sk-new" {
		t.Fatalf("key = %q, %v", key, ok)
	}
	data := decode(t, env.do(http.MethodGet, "/api/v1/credential", ""))["data"].(map[string]any)
	if data["configured"] != true {
		t.Fatalf("data = %v", data)
	}
}

// TestPollEvents verifies incremental event reads.
func TestPollEvents(t *testing.T) {
	env := newTestEnv(t)
	env.bus.Publish(events.Event{ItemID: "a", Type: events.TypeStatus})
	env.bus.Publish(events.Event{ItemID: "a", Type: events.TypeProgress, Progress: 50})

	data := decode(t, env.do(http.MethodGet, "/api/v1/events?since=1", ""))["data"].(map[string]any)
	list := data["events"].([]any)
	if len(list) != 1 || data["last_seq"].(float64) != 2 {
		t.Fatalf("data = %v", data)
	}
	if w := env.do(http.MethodGet, "/api/v1/events?since=-4", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

// TestStreamEvents verifies websocket delivery of backlog and new events.
func TestStreamEvents(t *testing.T) {
	env := newTestEnv(t)
	env.bus.Publish(events.Event{ItemID: "a", Type: events.TypeStatus, Status: model.StatusProcessing})

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?since=0"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first events.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Seq != 1 || first.Status != model.StatusProcessing {
		t.Fatalf("first = %+v", first)
	}

	env.bus.Publish(events.Event{ItemID: "a", Type: events.TypeProgress, Progress: 25})
	var second events.Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if second.Seq != 2 || second.Progress != 25 {
		t.Fatalf("second = %+v", second)
	}
}
