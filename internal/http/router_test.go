package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roadcams/conditions-dashboard/internal/http/handlers"
	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/roadcams/conditions-dashboard/internal/proxy"
	"github.com/roadcams/conditions-dashboard/internal/source"
	"github.com/roadcams/conditions-dashboard/internal/storage"
)

const conditionsBody = `{"data":{"alta":{"camera":{"display_name":"Alta Bypass","latitude":40.59,"longitude":-111.63},"status":"ok","classification":{"condition":"snow","confidence":0.8,"safety_level":"hazardous","timestamp":"t"}},"provo":{"camera":{"display_name":"Provo Canyon","latitude":40.33,"longitude":-111.6},"status":"ok","classification":{"condition":"clear","confidence":0.9,"safety_level":"safe","timestamp":"t"}}},"stats":{"total":2,"safe":1,"caution":0,"hazardous":1,"failed":0},"last_updated":"2026-01-10T08:00:00Z"}`

type fakeSource struct {
	mu        sync.Mutex
	state     source.State
	listeners map[int]func(source.State)
	next      int
}

func newFakeSource(state source.State) *fakeSource {
	return &fakeSource{state: state, listeners: make(map[int]func(source.State))}
}

func (f *fakeSource) State() source.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSource) Subscribe(fn func(source.State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeSource) publish(state source.State) {
	f.mu.Lock()
	f.state = state
	fns := make([]func(source.State), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

type countingPoller struct {
	calls atomic.Int32
}

func (p *countingPoller) TriggerRefresh() {
	p.calls.Add(1)
}

type fakeUpstream struct {
	body []byte
	err  error
}

func (f *fakeUpstream) FetchRaw(context.Context) ([]byte, error) {
	return f.body, f.err
}

type fakeHistory struct {
	limits []int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]storage.SnapshotRecord, error) {
	f.limits = append(f.limits, limit)
	return []storage.SnapshotRecord{{Key: "2026-01-10T08:00:00Z", CameraCount: 2}}, nil
}

func (f *fakeHistory) ListCameraObservations(_ context.Context, cameraID string, limit int) ([]storage.Observation, error) {
	f.limits = append(f.limits, limit)
	if cameraID != "alta" {
		return nil, storage.ErrNotFound
	}
	return []storage.Observation{{CameraID: "alta", Status: "ok"}}, nil
}

type testEnv struct {
	source  *fakeSource
	poller  *countingPoller
	history *fakeHistory
	handler http.Handler
}

func newTestEnv(t *testing.T, upstream *fakeUpstream, staticDir string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshot, err := model.ParseSnapshot([]byte(conditionsBody))
	if err != nil {
		t.Fatalf("ParseSnapshot() error: %v", err)
	}
	env := &testEnv{
		source:  newFakeSource(source.State{Snapshot: snapshot, Connected: true, Phase: source.PhaseReady}),
		poller:  &countingPoller{},
		history: &fakeHistory{},
	}
	api := handlers.New(env.source, env.poller, env.history, logger, staticDir)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "roadcams_connected 1\n")
	})
	env.handler = NewRouter(api, proxy.New(upstream, nil, logger), metrics)
	return env
}

func (e *testEnv) do(method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestConditionsProxyPassesBodyThrough(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{body: []byte(conditionsBody)}, "")

	rec := env.do(http.MethodGet, "/api/conditions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != conditionsBody {
		t.Fatalf("body changed in transit:\n%s", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestConditionsProxyFailure(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{err: errors.New("connection refused")}, "")

	rec := env.do(http.MethodGet, "/api/conditions", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != proxy.ErrorMessage {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestHealthAndRefresh(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")

	rec := env.do(http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"connected":true`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("refresh status = %d, want 202", rec.Code)
	}
	if env.poller.calls.Load() != 1 {
		t.Fatalf("TriggerRefresh calls = %d, want 1", env.poller.calls.Load())
	}
}

func TestDashboardAppliesQueryCriteria(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")

	tests := []struct {
		name   string
		target string
		ids    []string
		stats  model.Stats
	}{
		{name: "defaults", target: "/api/dashboard", ids: []string{"alta", "provo"}, stats: model.Stats{Total: 2, Safe: 1, Hazardous: 1}},
		{name: "search", target: "/api/dashboard?search=PROVO", ids: []string{"provo"}, stats: model.Stats{Total: 1, Safe: 1}},
		{name: "toggle", target: "/api/dashboard?hazardous=false&mode=markers", ids: []string{"provo"}, stats: model.Stats{Total: 1, Safe: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.target, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var view struct {
				Cameras     map[string]json.RawMessage `json:"cameras"`
				Stats       model.Stats                `json:"stats"`
				ServerStats model.Stats                `json:"server_stats"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
				t.Fatalf("decode view: %v", err)
			}
			if len(view.Cameras) != len(tt.ids) {
				t.Fatalf("cameras = %d, want %d", len(view.Cameras), len(tt.ids))
			}
			for _, id := range tt.ids {
				if _, ok := view.Cameras[id]; !ok {
					t.Fatalf("camera %q missing", id)
				}
			}
			if view.Stats != tt.stats {
				t.Fatalf("stats = %+v, want %+v", view.Stats, tt.stats)
			}
			if view.ServerStats.Total != 2 {
				t.Fatalf("server stats = %+v", view.ServerStats)
			}
		})
	}
}

func TestHistoryRoutes(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")

	if rec := env.do(http.MethodGet, "/api/history", nil); rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/history?limit=5000", nil); rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/history?limit=zero", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status = %d, want 400", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/cameras/alta/history?limit=3", nil); rec.Code != http.StatusOK {
		t.Fatalf("camera history status = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/api/cameras/nowhere/history", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown camera status = %d, want 404", rec.Code)
	}

	want := []int{100, 1000, 3, 100}
	if len(env.history.limits) != len(want) {
		t.Fatalf("limits = %v, want %v", env.history.limits, want)
	}
	for i := range want {
		if env.history.limits[i] != want[i] {
			t.Fatalf("limits = %v, want %v", env.history.limits, want)
		}
	}
}

func TestForwardedPrefixAndStaticFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>dashboard</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	env := newTestEnv(t, &fakeUpstream{}, dir)

	header := http.Header{ForwardedPrefixHeader: []string{"/roads/"}}
	if rec := env.do(http.MethodGet, "/roads/healthz", header); rec.Code != http.StatusOK {
		t.Fatalf("prefixed healthz status = %d", rec.Code)
	}
	rec := env.do(http.MethodGet, "/some/client/route", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "dashboard") {
		t.Fatalf("spa fallback = %d %q", rec.Code, rec.Body.String())
	}
	if rec := env.do(http.MethodGet, "/metrics", nil); !strings.Contains(rec.Body.String(), "roadcams_connected") {
		t.Fatalf("metrics not mounted: %q", rec.Body.String())
	}
}

func TestStripForwardedPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		want   string
	}{
		{name: "no header", path: "/api/conditions", want: "/api/conditions"},
		{name: "prefixed route", prefix: "/roads", path: "/roads/api/conditions", want: "/api/conditions"},
		{name: "trailing slash in header", prefix: "/roads/", path: "/roads/healthz", want: "/healthz"},
		{name: "prefix only", prefix: "/roads", path: "/roads", want: "/"},
		{name: "partial segment kept", prefix: "/roads", path: "/roadside/healthz", want: "/roadside/healthz"},
		{name: "unrelated path", prefix: "/roads", path: "/healthz", want: "/healthz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := StripForwardedPrefix(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				got = r.URL.Path
			}))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.prefix != "" {
				req.Header.Set(ForwardedPrefixHeader, tt.prefix)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Fatalf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIngressPathHeaderIsIgnored(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")
	header := http.Header{"X-Ingress-Path": []string{"/roads"}}
	if rec := env.do(http.MethodGet, "/roads/healthz", header); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStaticWithoutFrontend(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")
	if rec := env.do(http.MethodGet, "/", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func readView(t *testing.T, conn *websocket.Conn, match func(handlers.ViewMessage) bool) handlers.ViewMessage {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var msg handlers.ViewMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
	t.Fatalf("no matching view before deadline")
	return handlers.ViewMessage{}
}

func TestWebsocketSession(t *testing.T) {
	env := newTestEnv(t, &fakeUpstream{}, "")
	server := httptest.NewServer(env.handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?mode=markers"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()

	first := readView(t, conn, func(handlers.ViewMessage) bool { return true })
	if first.Type != "view" || first.Session == "" {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if first.View.Mode != model.ModeMarkers || len(first.View.Cameras) != 2 {
		t.Fatalf("unexpected first view: %+v", first.View)
	}

	if err := conn.WriteJSON(handlers.ClientMessage{Type: "search", Search: "alta"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	searched := readView(t, conn, func(msg handlers.ViewMessage) bool { return msg.View.Criteria.Search == "alta" })
	if len(searched.View.Cameras) != 1 || searched.Session != first.Session {
		t.Fatalf("unexpected searched view: %+v", searched.View)
	}

	env.source.publish(source.State{Connected: false, Err: "backend down", Phase: source.PhaseReady, Snapshot: env.source.State().Snapshot})
	stale := readView(t, conn, func(msg handlers.ViewMessage) bool { return !msg.View.Connected })
	if stale.View.Error != "backend down" || len(stale.View.Cameras) != 1 {
		t.Fatalf("stale view should keep the last snapshot: %+v", stale.View)
	}

	if err := conn.WriteJSON(handlers.ClientMessage{Type: "focus"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if err := conn.WriteJSON(handlers.ClientMessage{Type: "reset"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	readView(t, conn, func(msg handlers.ViewMessage) bool { return msg.View.Criteria.Search == "" })
	if env.poller.calls.Load() != 1 {
		t.Fatalf("focus TriggerRefresh calls = %d, want 1", env.poller.calls.Load())
	}
}
