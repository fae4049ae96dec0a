// Package pipeline derives filtered camera views and recomputed statistics
// from a conditions snapshot. Every function here is pure.
package pipeline

import (
	"strings"

	"github.com/roadcams/conditions-dashboard/internal/model"
)

// View is the filtered subset of a snapshot with stats recomputed over it.
type View struct {
	Cameras map[string]model.CameraRecord `json:"cameras"`
	Stats   model.Stats                   `json:"stats"`
}

// Apply filters snapshot by criteria. A nil snapshot yields an empty view.
func Apply(snapshot *model.Snapshot, criteria model.FilterCriteria) View {
	cameras := make(map[string]model.CameraRecord)
	if snapshot == nil {
		return View{Cameras: cameras}
	}

	search := strings.ToLower(criteria.Search)
	for id, record := range snapshot.Data {
		if matches(record, criteria, search) {
			cameras[id] = record
		}
	}
	return View{Cameras: cameras, Stats: Count(cameras)}
}

// Matches reports whether record passes the search and at least one enabled toggle.
//
// An unknown-level record that has not failed matches no toggle, so it is never
// included under any criteria.
func Matches(record model.CameraRecord, criteria model.FilterCriteria) bool {
	return matches(record, criteria, strings.ToLower(criteria.Search))
}

func matches(record model.CameraRecord, criteria model.FilterCriteria, search string) bool {
	if search != "" && !strings.Contains(strings.ToLower(record.Camera.DisplayName), search) {
		return false
	}
	level := record.Level()
	return (criteria.ShowSafe && level == model.SafetyLevelSafe) ||
		(criteria.ShowCaution && level == model.SafetyLevelCaution) ||
		(criteria.ShowHazardous && level == model.SafetyLevelHazardous) ||
		(criteria.ShowFailed && record.Failed())
}

// Count recomputes stats by iterating records. A failed record counts toward
// failed in addition to its safety level.
func Count(records map[string]model.CameraRecord) model.Stats {
	var stats model.Stats
	for _, record := range records {
		stats.Total++
		switch record.Level() {
		case model.SafetyLevelSafe:
			stats.Safe++
		case model.SafetyLevelCaution:
			stats.Caution++
		case model.SafetyLevelHazardous:
			stats.Hazardous++
		}
		if record.Failed() {
			stats.Failed++
		}
	}
	return stats
}
