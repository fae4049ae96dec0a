package model

import "strings"

// FilterCriteria is the viewer-local predicate state used to narrow a snapshot.
type FilterCriteria struct {
	Search        string `json:"search"`
	ShowSafe      bool   `json:"show_safe"`
	ShowCaution   bool   `json:"show_caution"`
	ShowHazardous bool   `json:"show_hazardous"`
	ShowFailed    bool   `json:"show_failed"`
}

// DefaultFilterCriteria shows everything.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{
		ShowSafe:      true,
		ShowCaution:   true,
		ShowHazardous: true,
		ShowFailed:    true,
	}
}

// FilterCategory names one of the four independent toggles.
type FilterCategory string

const (
	FilterSafe      FilterCategory = "safe"
	FilterCaution   FilterCategory = "caution"
	FilterHazardous FilterCategory = "hazardous"
	FilterFailed    FilterCategory = "failed"
)

// Toggle flips one category and reports whether the category was recognized.
func (c *FilterCriteria) Toggle(category FilterCategory) bool {
	switch FilterCategory(strings.ToLower(string(category))) {
	case FilterSafe:
		c.ShowSafe = !c.ShowSafe
	case FilterCaution:
		c.ShowCaution = !c.ShowCaution
	case FilterHazardous:
		c.ShowHazardous = !c.ShowHazardous
	case FilterFailed:
		c.ShowFailed = !c.ShowFailed
	default:
		return false
	}
	return true
}

// VisualizationMode selects how the map collaborator renders cameras.
type VisualizationMode string

const (
	ModeMarkers VisualizationMode = "markers"
	ModeHeatmap VisualizationMode = "heatmap"

	DefaultVisualizationMode = ModeHeatmap
)

// ParseVisualizationMode returns the default mode for unknown input.
func ParseVisualizationMode(raw string) VisualizationMode {
	switch VisualizationMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeMarkers:
		return ModeMarkers
	case ModeHeatmap:
		return ModeHeatmap
	default:
		return DefaultVisualizationMode
	}
}
