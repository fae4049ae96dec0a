// Package proxy forwards conditions requests to the classification backend
// and keeps the last good body fresh for a fixed window.
package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/roadcams/conditions-dashboard/internal/model"
	"golang.org/x/sync/singleflight"
)

// FreshnessWindow is how long a successful backend body is reused.
const FreshnessWindow = 60 * time.Second

// ErrorMessage is the fixed message returned to clients on any upstream failure.
const ErrorMessage = "Failed to fetch road conditions data"

// Outcome labels one proxied request for metrics.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeMiss  Outcome = "miss"
	OutcomeError Outcome = "error"
)

// Upstream returns a raw conditions body.
type Upstream interface {
	FetchRaw(ctx context.Context) ([]byte, error)
}

// Observer is told about every proxied request.
type Observer interface {
	ObserveProxy(outcome Outcome)
}

type Proxy struct {
	upstream Upstream
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group

	mu        sync.RWMutex
	body      []byte
	fetchedAt time.Time
}

func New(upstream Upstream, observer Observer, logger *slog.Logger) *Proxy {
	return &Proxy{upstream: upstream, observer: observer, logger: logger, now: time.Now}
}

// Body returns a fresh body, revalidating against the backend when the cached
// one is older than the freshness window. Failures are never cached.
func (p *Proxy) Body(ctx context.Context) ([]byte, Outcome, error) {
	if body, ok := p.cached(); ok {
		return body, OutcomeHit, nil
	}
	value, err, _ := p.group.Do("conditions", func() (any, error) {
		// Shared by every waiter, so one caller going away must not cancel it.
		body, err := p.upstream.FetchRaw(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.body = body
		p.fetchedAt = p.now()
		p.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, OutcomeError, err
	}
	return value.([]byte), OutcomeMiss, nil
}

// Fetch lets the dashboard's own adapter read through the proxy path.
func (p *Proxy) Fetch(ctx context.Context) (*model.Snapshot, error) {
	body, outcome, err := p.Body(ctx)
	p.observe(outcome)
	if err != nil {
		return nil, err
	}
	return model.ParseSnapshot(body)
}

// ServeHTTP passes the backend body through unchanged, or answers 500.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, outcome, err := p.Body(r.Context())
	p.observe(outcome)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		p.logger.Error("error fetching from backend", "err", xerrors.New(err), "path", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + ErrorMessage + `"}`))
		return
	}
	w.Header().Set("Cache-Control", "public, s-maxage=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (p *Proxy) cached() ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.body == nil || p.now().Sub(p.fetchedAt) >= FreshnessWindow {
		return nil, false
	}
	return p.body, true
}

func (p *Proxy) observe(outcome Outcome) {
	if p.observer != nil {
		p.observer.ObserveProxy(outcome)
	}
}
