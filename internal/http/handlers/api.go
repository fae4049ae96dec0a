package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roadcams/conditions-dashboard/internal/source"
	"github.com/roadcams/conditions-dashboard/internal/storage"
)

// Poller triggers an out-of-schedule conditions refresh.
type Poller interface {
	TriggerRefresh()
}

// StateSource exposes the adapter's current state and change notifications.
type StateSource interface {
	State() source.State
	Subscribe(fn func(source.State)) func()
}

// HistoryStore reads recorded snapshots.
type HistoryStore interface {
	ListSnapshots(ctx context.Context, limit int) ([]storage.SnapshotRecord, error)
	ListCameraObservations(ctx context.Context, cameraID string, limit int) ([]storage.Observation, error)
}

// API groups HTTP handlers and dependencies.
type API struct {
	source    StateSource
	poller    Poller
	history   HistoryStore
	logger    *slog.Logger
	staticDir string

	pingInterval time.Duration
	readTimeout  time.Duration
}

// New creates HTTP handlers with explicit dependencies. history may be nil
// when storage is disabled.
func New(
	src StateSource,
	poller Poller,
	history HistoryStore,
	logger *slog.Logger,
	staticDir string,
) *API {
	return &API{
		source:       src,
		poller:       poller,
		history:      history,
		logger:       logger,
		staticDir:    staticDir,
		pingInterval: 30 * time.Second,
		readTimeout:  70 * time.Second,
	}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports liveness and whether the backend is currently reachable.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	state := a.source.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"connected": state.Connected,
		"phase":     state.Phase,
	})
}

// Refresh is the refocus trigger.
func (a *API) Refresh(w http.ResponseWriter, _ *http.Request) {
	a.poller.TriggerRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// Static serves frontend assets and SPA fallback.
func (a *API) Static(w http.ResponseWriter, r *http.Request) {
	if a.staticDir == "" {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}
	cleanPath := strings.TrimPrefix(filepath.Clean("/"+path), "/")
	fullPath := filepath.Join(a.staticDir, cleanPath)
	if info, err := os.Stat(fullPath); err == nil && !info.IsDir() {
		http.ServeFile(w, r, fullPath)
		return
	}
	index := filepath.Join(a.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "frontend_missing", "Frontend dist not found")
		return
	}
	http.ServeFile(w, r, index)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
