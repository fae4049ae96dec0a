package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roadcams/conditions-dashboard/internal/model"
)

// Phase describes what a viewer can show for the current state.
type Phase string

const (
	// PhaseLoading: no fetch has resolved yet.
	PhaseLoading Phase = "loading"
	// PhaseError: no fetch has ever succeeded and the last one failed.
	PhaseError Phase = "error"
	// PhaseReady: a snapshot is available, possibly stale.
	PhaseReady Phase = "ready"
)

// Fetcher loads one complete conditions snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*model.Snapshot, error)
}

// State is an immutable copy of the adapter's current values.
type State struct {
	Snapshot    *model.Snapshot
	Connected   bool
	Err         string
	Phase       Phase
	LastSuccess time.Time
	LastAttempt time.Time
}

// Adapter keeps the single current snapshot and the connectivity flag.
type Adapter struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	snapshot    *model.Snapshot
	connected   bool
	lastErr     string
	attempted   bool
	lastSuccess time.Time
	lastAttempt time.Time
	seq         uint64

	// notifyMu serializes delivery; delivered is the newest seq handed out.
	notifyMu  sync.Mutex
	delivered uint64

	listenersMu sync.Mutex
	listeners   map[int]func(State)
	nextID      int
}

func NewAdapter(fetcher Fetcher, logger *slog.Logger) *Adapter {
	return &Adapter{
		fetcher:   fetcher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		listeners: make(map[int]func(State)),
	}
}

// Refresh fetches once. On success the snapshot is replaced wholesale; on
// failure the previous snapshot stays current and the adapter disconnects.
// Overlapping calls apply in completion order, and listeners never see an
// older outcome after a newer one.
func (a *Adapter) Refresh(ctx context.Context) error {
	snapshot, err := a.fetcher.Fetch(ctx)

	a.mu.Lock()
	now := a.now()
	a.seq++
	seq := a.seq
	a.attempted = true
	a.lastAttempt = now
	if err != nil {
		a.connected = false
		a.lastErr = err.Error()
	} else {
		a.snapshot = snapshot
		a.connected = true
		a.lastErr = ""
		a.lastSuccess = now
	}
	state := a.stateLocked()
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("conditions refresh failed", "err", err, "phase", state.Phase)
	} else {
		a.logger.Debug("conditions refreshed", "cameras", snapshot.Len(), "last_updated", snapshot.LastUpdated)
	}
	a.notify(seq, state)
	return err
}

// State returns a consistent copy of all adapter values.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stateLocked()
}

func (a *Adapter) stateLocked() State {
	phase := PhaseReady
	switch {
	case a.snapshot != nil:
	case a.attempted && a.lastErr != "":
		phase = PhaseError
	default:
		phase = PhaseLoading
	}
	return State{
		Snapshot:    a.snapshot,
		Connected:   a.connected,
		Err:         a.lastErr,
		Phase:       phase,
		LastSuccess: a.lastSuccess,
		LastAttempt: a.lastAttempt,
	}
}

// Subscribe registers fn for every refresh outcome and returns its cancel func.
func (a *Adapter) Subscribe(fn func(State)) func() {
	a.listenersMu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.listenersMu.Lock()
			delete(a.listeners, id)
			a.listenersMu.Unlock()
		})
	}
}

// notify delivers state unless a newer outcome has already been delivered.
func (a *Adapter) notify(seq uint64, state State) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	if seq <= a.delivered {
		return
	}
	a.delivered = seq

	a.listenersMu.Lock()
	fns := make([]func(State), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.listenersMu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
