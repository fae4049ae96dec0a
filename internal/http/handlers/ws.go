package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/roadcams/conditions-dashboard/internal/dashboard"
	"github.com/roadcams/conditions-dashboard/internal/model"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ClientMessage is a viewer command sent over the websocket.
type ClientMessage struct {
	Type     string                `json:"type"`
	Criteria *model.FilterCriteria `json:"criteria,omitempty"`
	Search   string                `json:"search,omitempty"`
	Mode     string                `json:"mode,omitempty"`
	Category string                `json:"category,omitempty"`
}

// ViewMessage carries one rendered view to the viewer.
type ViewMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session"`
	View    dashboard.View `json:"view"`
}

// Watch upgrades to a websocket viewer session. The session starts from the
// query criteria and pushes a fresh view after every change.
func (a *API) Watch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	logger := a.logger.With("session", sessionID)

	viewer := dashboard.NewViewer(a.source)
	defer viewer.Close()
	criteria, mode := dashboard.ParseCriteria(r.URL.Query())
	viewer.SetFilters(criteria)
	viewer.SetMode(mode)

	// A pending signal is enough: the writer always renders the latest view.
	pending := make(chan struct{}, 1)
	pending <- struct{}{}
	unsubscribe := viewer.Subscribe(func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		a.writeViews(conn, sessionID, viewer, pending, done)
	}()

	logger.Info("viewer connected")
	_ = conn.SetReadDeadline(time.Now().Add(a.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(a.readTimeout))
	})
	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("viewer read failed", "err", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(a.readTimeout))
		a.apply(viewer, body, logger.Debug)
	}
	close(done)
	<-writerDone
	logger.Info("viewer disconnected")
}

func (a *API) writeViews(conn *websocket.Conn, sessionID string, viewer *dashboard.Viewer, pending <-chan struct{}, done <-chan struct{}) {
	ping := time.NewTicker(a.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case <-pending:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			msg := ViewMessage{Type: "view", Session: sessionID, View: viewer.View()}
			if err := conn.WriteJSON(msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (a *API) apply(viewer *dashboard.Viewer, body []byte, debug func(string, ...any)) {
	var msg ClientMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		debug("ignoring malformed viewer message", "err", err)
		return
	}
	switch msg.Type {
	case "filter":
		if msg.Criteria != nil {
			viewer.SetFilters(*msg.Criteria)
		}
	case "search":
		viewer.SetSearch(msg.Search)
	case "toggle":
		if !viewer.Toggle(model.FilterCategory(msg.Category)) {
			debug("ignoring unknown filter category", "category", msg.Category)
		}
	case "mode":
		viewer.SetMode(model.ParseVisualizationMode(msg.Mode))
	case "reset":
		viewer.Reset()
	case "focus":
		a.poller.TriggerRefresh()
	default:
		debug("ignoring unknown viewer message", "type", msg.Type)
	}
}
