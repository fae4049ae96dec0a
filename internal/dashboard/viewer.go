// Package dashboard owns per-viewer UI state and derives the views the map and
// stats collaborators render.
package dashboard

import (
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/roadcams/conditions-dashboard/internal/model"
	"github.com/roadcams/conditions-dashboard/internal/pipeline"
	"github.com/roadcams/conditions-dashboard/internal/source"
)

// StateSource exposes the current adapter state.
type StateSource interface {
	State() source.State
	Subscribe(fn func(source.State)) func()
}

// View is everything a rendering collaborator needs for one frame.
type View struct {
	Phase       source.Phase                  `json:"phase"`
	Connected   bool                          `json:"connected"`
	Error       string                        `json:"error,omitempty"`
	LastUpdated string                        `json:"last_updated,omitempty"`
	Timestamp   string                        `json:"timestamp,omitempty"`
	Criteria    model.FilterCriteria          `json:"criteria"`
	Mode        model.VisualizationMode       `json:"mode"`
	Cameras     map[string]model.CameraRecord `json:"cameras"`
	Stats       model.Stats                   `json:"stats"`
	ServerStats model.Stats                   `json:"server_stats"`
	Layers      pipeline.Layers               `json:"layers"`
}

// Viewer holds one viewer's filter criteria and visualization mode. Views are
// always derived from whatever snapshot the source holds at call time.
type Viewer struct {
	source StateSource

	mu       sync.RWMutex
	criteria model.FilterCriteria
	mode     model.VisualizationMode

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
	detach      func()
}

func NewViewer(src StateSource) *Viewer {
	v := &Viewer{
		source:    src,
		criteria:  model.DefaultFilterCriteria(),
		mode:      model.DefaultVisualizationMode,
		listeners: make(map[int]func()),
	}
	v.detach = src.Subscribe(func(source.State) { v.changed() })
	return v
}

// Close detaches the viewer from its source.
func (v *Viewer) Close() {
	v.detach()
}

// View runs the pipeline against the current snapshot and criteria.
func (v *Viewer) View() View {
	v.mu.RLock()
	criteria, mode := v.criteria, v.mode
	v.mu.RUnlock()
	return Build(v.source.State(), criteria, mode)
}

// Build derives a View from explicit inputs.
func Build(state source.State, criteria model.FilterCriteria, mode model.VisualizationMode) View {
	filtered := pipeline.Apply(state.Snapshot, criteria)
	view := View{
		Phase:     state.Phase,
		Connected: state.Connected,
		Error:     state.Err,
		Criteria:  criteria,
		Mode:      mode,
		Cameras:   filtered.Cameras,
		Stats:     filtered.Stats,
		Layers:    pipeline.BuildLayers(filtered.Cameras, mode),
	}
	if state.Snapshot != nil {
		view.LastUpdated = state.Snapshot.LastUpdated
		view.Timestamp = state.Snapshot.Timestamp
		view.ServerStats = state.Snapshot.Stats
	}
	return view
}

func (v *Viewer) Criteria() model.FilterCriteria {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.criteria
}

func (v *Viewer) Mode() model.VisualizationMode {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.mode
}

func (v *Viewer) SetSearch(search string) {
	v.update(func() { v.criteria.Search = search })
}

// SetFilters replaces the criteria wholesale.
func (v *Viewer) SetFilters(criteria model.FilterCriteria) {
	v.update(func() { v.criteria = criteria })
}

// Toggle flips one category; unknown categories are ignored.
func (v *Viewer) Toggle(category model.FilterCategory) bool {
	var ok bool
	v.update(func() { ok = v.criteria.Toggle(category) })
	return ok
}

func (v *Viewer) SetMode(mode model.VisualizationMode) {
	v.update(func() { v.mode = mode })
}

// Reset restores default criteria, keeping the visualization mode.
func (v *Viewer) Reset() {
	v.update(func() { v.criteria = model.DefaultFilterCriteria() })
}

func (v *Viewer) update(fn func()) {
	v.mu.Lock()
	fn()
	v.mu.Unlock()
	v.changed()
}

// Subscribe registers fn for criteria, mode and snapshot changes.
func (v *Viewer) Subscribe(fn func()) func() {
	v.listenersMu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.listenersMu.Unlock()
	return func() {
		v.listenersMu.Lock()
		delete(v.listeners, id)
		v.listenersMu.Unlock()
	}
}

func (v *Viewer) changed() {
	v.listenersMu.Lock()
	fns := make([]func(), 0, len(v.listeners))
	for _, fn := range v.listeners {
		fns = append(fns, fn)
	}
	v.listenersMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// ParseCriteria maps query parameters onto default criteria and mode.
// Toggles accept strconv.ParseBool values; invalid values keep the default.
func ParseCriteria(values url.Values) (model.FilterCriteria, model.VisualizationMode) {
	criteria := model.DefaultFilterCriteria()
	criteria.Search = values.Get("search")
	criteria.ShowSafe = parseToggle(values, "safe", criteria.ShowSafe)
	criteria.ShowCaution = parseToggle(values, "caution", criteria.ShowCaution)
	criteria.ShowHazardous = parseToggle(values, "hazardous", criteria.ShowHazardous)
	criteria.ShowFailed = parseToggle(values, "failed", criteria.ShowFailed)
	return criteria, model.ParseVisualizationMode(values.Get("mode"))
}

// CriteriaValues is the query form of criteria and mode read by ParseCriteria.
func CriteriaValues(criteria model.FilterCriteria, mode model.VisualizationMode) url.Values {
	values := url.Values{}
	if criteria.Search != "" {
		values.Set("search", criteria.Search)
	}
	values.Set("safe", strconv.FormatBool(criteria.ShowSafe))
	values.Set("caution", strconv.FormatBool(criteria.ShowCaution))
	values.Set("hazardous", strconv.FormatBool(criteria.ShowHazardous))
	values.Set("failed", strconv.FormatBool(criteria.ShowFailed))
	values.Set("mode", string(mode))
	return values
}

func parseToggle(values url.Values, key string, fallback bool) bool {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
