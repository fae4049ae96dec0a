// Package watch follows a running dashboard over its websocket.
package watch

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roadcams/conditions-dashboard/internal/dashboard"
	"github.com/roadcams/conditions-dashboard/internal/model"
)

const maxBackoff = 20 * time.Second

// Message mirrors the server's view push.
type Message struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	View    dashboard.View `json:"view"`
}

type Watcher struct {
	baseURL  string
	criteria model.FilterCriteria
	mode     model.VisualizationMode
	logger   *slog.Logger

	initialBackoff time.Duration
}

func NewWatcher(baseURL string, criteria model.FilterCriteria, mode model.VisualizationMode, logger *slog.Logger) *Watcher {
	return &Watcher{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		criteria:       criteria,
		mode:           mode,
		logger:         logger,
		initialBackoff: time.Second,
	}
}

// Run delivers every pushed view to onView, reconnecting until ctx is done.
func (w *Watcher) Run(ctx context.Context, onView func(dashboard.View)) {
	backoff := w.initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		received, err := w.runSession(ctx, onView)
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("dashboard watcher disconnected", "err", err)
		}
		if received {
			backoff = w.initialBackoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (w *Watcher) runSession(ctx context.Context, onView func(dashboard.View)) (bool, error) {
	wsURL, err := w.dialURL()
	if err != nil {
		return false, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	received := false
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		view, ok := decodeView(body)
		if !ok {
			continue
		}
		received = true
		onView(view)
	}
}

func decodeView(body []byte) (dashboard.View, bool) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return dashboard.View{}, false
	}
	return msg.View, msg.Type == "view"
}

// dialURL carries the criteria in the query so the first pushed view is
// already filtered.
func (w *Watcher) dialURL() (string, error) {
	wsURL, err := toWebsocketURL(w.baseURL + "/api/ws")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = dashboard.CriteriaValues(w.criteria, w.mode).Encode()
	return u.String(), nil
}

func toWebsocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String(), nil
}
