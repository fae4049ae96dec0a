// Package history records every new conditions snapshot and prunes old rows.
package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/roadcams/conditions-dashboard/internal/source"
	"github.com/robfig/cron/v3"
)

const (
	// PruneSchedule runs retention once an hour.
	PruneSchedule = "@hourly"
	writeTimeout  = 10 * time.Second
)

// Store persists snapshots.
type Store interface {
	RecordSnapshot(ctx context.Context, snapshot *model.Snapshot, recordedAt time.Time) (bool, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder writes adapter snapshots into the store. The same snapshot pointer
// is written at most once.
type Recorder struct {
	store     Store
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	last *model.Snapshot
	cron *cron.Cron
}

func NewRecorder(store Store, retention time.Duration, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		retention: retention,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OnState is an adapter listener.
func (r *Recorder) OnState(state source.State) {
	if !state.Connected || state.Snapshot == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if state.Snapshot == r.last {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	inserted, err := r.store.RecordSnapshot(ctx, state.Snapshot, r.now())
	if err != nil {
		r.logger.Error("record snapshot failed", "err", xerrors.New(err))
		return
	}
	r.last = state.Snapshot
	if inserted {
		r.logger.Debug("snapshot recorded", "key", state.Snapshot.Key(), "cameras", state.Snapshot.Len())
	}
}

// Prune removes history older than the retention window.
func (r *Recorder) Prune(ctx context.Context) error {
	_, err := r.store.Prune(ctx, r.now().Add(-r.retention))
	return err
}

// Start schedules hourly retention. Call Stop to end it.
func (r *Recorder) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(PruneSchedule, func() {
		pruneCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		if err := r.Prune(pruneCtx); err != nil {
			r.logger.Warn("history prune failed", "err", err)
		}
	}); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("history retention already scheduled")
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop cancels retention and waits for a running prune to finish.
func (r *Recorder) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
