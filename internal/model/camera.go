package model

import "strings"

// SafetyLevel is the categorical road severity judged at a camera.
type SafetyLevel string

const (
	SafetyLevelSafe      SafetyLevel = "safe"
	SafetyLevelCaution   SafetyLevel = "caution"
	SafetyLevelHazardous SafetyLevel = "hazardous"
	SafetyLevelUnknown   SafetyLevel = "unknown"
)

// StatusFailed marks a camera whose image could not be classified.
const StatusFailed = "failed"

// ParseSafetyLevel normalizes stored level values, ignoring case and
// surrounding space. Anything unrecognized is unknown.
func ParseSafetyLevel(raw string) SafetyLevel {
	switch SafetyLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case SafetyLevelSafe:
		return SafetyLevelSafe
	case SafetyLevelCaution:
		return SafetyLevelCaution
	case SafetyLevelHazardous:
		return SafetyLevelHazardous
	default:
		return SafetyLevelUnknown
	}
}

// Camera holds the static placement data of a monitored location.
type Camera struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// Classification is the latest weather judgment produced for a camera.
type Classification struct {
	Condition   string      `json:"condition"`
	Confidence  float64     `json:"confidence"`
	SafetyLevel SafetyLevel `json:"safety_level"`
	Timestamp   string      `json:"timestamp"`
}

// CameraRecord is one entry of the conditions payload, keyed by camera id.
type CameraRecord struct {
	Camera         Camera          `json:"camera"`
	Status         string          `json:"status"`
	Classification *Classification `json:"classification,omitempty"`
}

// Level returns the classification safety level. Only the exact lowercase
// level names count; any other value, and an unclassified record, is unknown.
func (r CameraRecord) Level() SafetyLevel {
	if r.Classification == nil {
		return SafetyLevelUnknown
	}
	switch level := r.Classification.SafetyLevel; level {
	case SafetyLevelSafe, SafetyLevelCaution, SafetyLevelHazardous:
		return level
	default:
		return SafetyLevelUnknown
	}
}

// Failed reports whether the backend could not process this camera.
func (r CameraRecord) Failed() bool {
	return r.Status == StatusFailed
}

// Placed reports whether the camera has usable map coordinates.
// Zero latitude or longitude means the camera is unplaced.
func (r CameraRecord) Placed() bool {
	return r.Camera.Latitude != 0 && r.Camera.Longitude != 0
}
