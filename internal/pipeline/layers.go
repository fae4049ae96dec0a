package pipeline

import (
	"sort"

	"github.com/roadcams/conditions-dashboard/internal/model"
)

const (
	heatIntensityBoost = 1.5
	safeIntensityScale = 0.5
)

// Marker is one placed camera for the markers rendering mode.
type Marker struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Lat         float64               `json:"lat"`
	Lon         float64               `json:"lon"`
	SafetyLevel model.SafetyLevel     `json:"safety_level"`
	Status      string                `json:"status"`
	ImageURL    string                `json:"image_url,omitempty"`
	Detail      *model.Classification `json:"classification,omitempty"`
}

// HeatPoint is a weighted coordinate for the heatmap rendering mode.
type HeatPoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Intensity float64 `json:"intensity"`
}

// HeatLayers groups heat points per safety level. Unknown cameras are not drawn.
type HeatLayers struct {
	Hazardous []HeatPoint `json:"hazardous"`
	Caution   []HeatPoint `json:"caution"`
	Safe      []HeatPoint `json:"safe"`
}

// Layers is the map collaborator input for one visualization mode.
type Layers struct {
	Mode    model.VisualizationMode `json:"mode"`
	Markers []Marker                `json:"markers,omitempty"`
	Heat    *HeatLayers             `json:"heat,omitempty"`
}

// BuildLayers prepares map input from an already filtered camera set.
func BuildLayers(cameras map[string]model.CameraRecord, mode model.VisualizationMode) Layers {
	ids := sortedIDs(cameras)
	if mode == model.ModeMarkers {
		return Layers{Mode: model.ModeMarkers, Markers: markers(cameras, ids)}
	}
	return Layers{Mode: model.ModeHeatmap, Heat: heat(cameras, ids)}
}

func markers(cameras map[string]model.CameraRecord, ids []string) []Marker {
	result := make([]Marker, 0, len(ids))
	for _, id := range ids {
		record := cameras[id]
		if !record.Placed() {
			continue
		}
		result = append(result, Marker{
			ID:          id,
			Name:        record.Camera.DisplayName,
			Lat:         record.Camera.Latitude,
			Lon:         record.Camera.Longitude,
			SafetyLevel: record.Level(),
			Status:      record.Status,
			ImageURL:    record.Camera.ImageURL,
			Detail:      record.Classification,
		})
	}
	return result
}

func heat(cameras map[string]model.CameraRecord, ids []string) *HeatLayers {
	layers := &HeatLayers{
		Hazardous: []HeatPoint{},
		Caution:   []HeatPoint{},
		Safe:      []HeatPoint{},
	}
	for _, id := range ids {
		record := cameras[id]
		if !record.Placed() || record.Classification == nil {
			continue
		}
		point := HeatPoint{
			Lat:       record.Camera.Latitude,
			Lon:       record.Camera.Longitude,
			Intensity: record.Classification.Confidence * heatIntensityBoost,
		}
		switch record.Level() {
		case model.SafetyLevelHazardous:
			layers.Hazardous = append(layers.Hazardous, point)
		case model.SafetyLevelCaution:
			layers.Caution = append(layers.Caution, point)
		case model.SafetyLevelSafe:
			point.Intensity *= safeIntensityScale
			layers.Safe = append(layers.Safe, point)
		}
	}
	return layers
}

func sortedIDs(cameras map[string]model.CameraRecord) []string {
	ids := make([]string, 0, len(cameras))
	for id := range cameras {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
