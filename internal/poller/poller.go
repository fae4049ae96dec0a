package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// RefreshInterval is the fixed period between scheduled refreshes.
const RefreshInterval = 60 * time.Second

var ErrAlreadyRunning = errors.New("poller already running")

// Refresher performs one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Poller struct {
	target    Refresher
	interval  time.Duration
	refreshCh chan struct{}
	running   atomic.Bool
	logger    *slog.Logger
}

func New(target Refresher, logger *slog.Logger) *Poller {
	return &Poller{target: target, interval: RefreshInterval, refreshCh: make(chan struct{}, 1), logger: logger}
}

// TriggerRefresh wakes the loop immediately; extra triggers while one is pending are dropped.
func (p *Poller) TriggerRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// Run refreshes at once and then on every interval or trigger until ctx ends.
// Only one Run may be active per poller.
func (p *Poller) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.refresh(ctx)
	timer := time.NewTimer(p.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.refreshCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		p.refresh(ctx)
		timer.Reset(p.interval)
	}
}

func (p *Poller) refresh(ctx context.Context) {
	if err := p.target.Refresh(ctx); err != nil && ctx.Err() == nil {
		p.logger.Debug("scheduled refresh failed", "err", err)
	}
}
