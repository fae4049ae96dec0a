package model

import (
	"encoding/json"
	"fmt"
)

// Stats aggregates camera counts per category.
type Stats struct {
	Total     int `json:"total"`
	Safe      int `json:"safe"`
	Caution   int `json:"caution"`
	Hazardous int `json:"hazardous"`
	Failed    int `json:"failed"`
}

// Snapshot is one complete conditions payload. It is never mutated after decode;
// a new fetch produces a new Snapshot.
type Snapshot struct {
	Data        map[string]CameraRecord `json:"data"`
	Stats       Stats                   `json:"stats"`
	LastUpdated string                  `json:"last_updated"`
	Timestamp   string                  `json:"timestamp"`
}

// ParseSnapshot decodes a conditions payload. Only malformed JSON is an error.
// Every field is decoded on its own, so a missing or mistyped value leaves that
// field empty without discarding the rest of the payload.
func ParseSnapshot(body []byte) (*Snapshot, error) {
	var payload json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode conditions payload: %w", err)
	}
	snapshot := &Snapshot{Data: map[string]CameraRecord{}}
	fields, ok := objectFields(payload)
	if !ok {
		return snapshot, nil
	}
	decodeField(fields, "last_updated", &snapshot.LastUpdated)
	decodeField(fields, "timestamp", &snapshot.Timestamp)
	snapshot.Stats = decodeStats(fields["stats"])
	if records, ok := objectFields(fields["data"]); ok {
		for id, raw := range records {
			snapshot.Data[id] = decodeRecord(raw)
		}
	}
	return snapshot, nil
}

func decodeStats(raw json.RawMessage) Stats {
	var stats Stats
	fields, ok := objectFields(raw)
	if !ok {
		return stats
	}
	decodeField(fields, "total", &stats.Total)
	decodeField(fields, "safe", &stats.Safe)
	decodeField(fields, "caution", &stats.Caution)
	decodeField(fields, "hazardous", &stats.Hazardous)
	decodeField(fields, "failed", &stats.Failed)
	return stats
}

func decodeRecord(raw json.RawMessage) CameraRecord {
	var record CameraRecord
	fields, ok := objectFields(raw)
	if !ok {
		return record
	}
	decodeField(fields, "status", &record.Status)
	if camera, ok := objectFields(fields["camera"]); ok {
		decodeField(camera, "display_name", &record.Camera.DisplayName)
		decodeField(camera, "latitude", &record.Camera.Latitude)
		decodeField(camera, "longitude", &record.Camera.Longitude)
		decodeField(camera, "image_url", &record.Camera.ImageURL)
	}
	if classification, ok := objectFields(fields["classification"]); ok {
		record.Classification = &Classification{}
		decodeField(classification, "condition", &record.Classification.Condition)
		decodeField(classification, "confidence", &record.Classification.Confidence)
		decodeField(classification, "safety_level", &record.Classification.SafetyLevel)
		decodeField(classification, "timestamp", &record.Classification.Timestamp)
	}
	return record
}

// objectFields splits a JSON object into its members. Anything else, null
// included, reports false.
func objectFields(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// decodeField sets dst only when the member exists and has the expected type.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return
	}
	*dst = value
}

// Key identifies the snapshot for deduplication, preferring the backend's
// last_updated marker over the fetch timestamp.
func (s *Snapshot) Key() string {
	if s == nil {
		return ""
	}
	if s.LastUpdated != "" {
		return s.LastUpdated
	}
	return s.Timestamp
}

// Len returns the number of camera records, tolerating a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}
