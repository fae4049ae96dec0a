package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roadcams/conditions-dashboard/internal/model"
)

var ErrNotFound = errors.New("not found")

// SnapshotRecord is one recorded snapshot aggregate.
type SnapshotRecord struct {
	Key         string      `json:"key"`
	LastUpdated string      `json:"last_updated"`
	FetchedAt   string      `json:"fetched_at"`
	RecordedAt  time.Time   `json:"recorded_at"`
	CameraCount int         `json:"camera_count"`
	Stats       model.Stats `json:"stats"`
}

// Observation is one camera's state inside a recorded snapshot.
type Observation struct {
	CameraID     string            `json:"camera_id"`
	SnapshotKey  string            `json:"snapshot_key"`
	DisplayName  string            `json:"display_name"`
	Status       string            `json:"status"`
	SafetyLevel  model.SafetyLevel `json:"safety_level"`
	Condition    string            `json:"condition,omitempty"`
	Confidence   *float64          `json:"confidence,omitempty"`
	ClassifiedAt string            `json:"classified_at,omitempty"`
	RecordedAt   time.Time         `json:"recorded_at"`
}

// inserted reports whether an INSERT OR IGNORE wrote a row.
func inserted(res sql.Result) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("snapshot rows affected: %w", err)
	}
	return rows > 0, nil
}

// RecordSnapshot stores snapshot and its camera rows in one transaction. A
// snapshot whose key was already recorded is skipped and reports false.
func (r *Repository) RecordSnapshot(ctx context.Context, snapshot *model.Snapshot, recordedAt time.Time) (bool, error) {
	key := snapshot.Key()
	if key == "" {
		key = recordedAt.UTC().Format(time.RFC3339Nano)
	}
	recorded := recordedAt.UTC().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO snapshots (snapshot_key, last_updated, fetched_at, recorded_at, camera_count, total, safe, caution, hazardous, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		snapshot.LastUpdated,
		snapshot.Timestamp,
		recorded,
		snapshot.Len(),
		snapshot.Stats.Total,
		snapshot.Stats.Safe,
		snapshot.Stats.Caution,
		snapshot.Stats.Hazardous,
		snapshot.Stats.Failed,
	)
	if err != nil {
		return false, err
	}
	if ok, err := inserted(res); err != nil || !ok {
		return false, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO camera_observations (camera_id, snapshot_key, display_name, status, safety_level, condition_label, confidence, classified_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(camera_id, snapshot_key) DO NOTHING`)
	if err != nil {
		return false, err
	}
	defer stmt.Close()

	for id, record := range snapshot.Data {
		var (
			condition    any
			confidence   any
			classifiedAt any
		)
		if c := record.Classification; c != nil {
			condition = nullString(c.Condition)
			confidence = c.Confidence
			classifiedAt = nullString(c.Timestamp)
		}
		if _, err := stmt.ExecContext(
			ctx,
			id,
			key,
			record.Camera.DisplayName,
			record.Status,
			string(record.Level()),
			condition,
			confidence,
			classifiedAt,
			recorded,
		); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// ListSnapshots returns recorded snapshots, newest first.
func (r *Repository) ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT snapshot_key, last_updated, fetched_at, recorded_at, camera_count, total, safe, caution, hazardous, failed
		FROM snapshots
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]SnapshotRecord, 0)
	for rows.Next() {
		var (
			item       SnapshotRecord
			recordedAt int64
		)
		if err := rows.Scan(
			&item.Key,
			&item.LastUpdated,
			&item.FetchedAt,
			&recordedAt,
			&item.CameraCount,
			&item.Stats.Total,
			&item.Stats.Safe,
			&item.Stats.Caution,
			&item.Stats.Hazardous,
			&item.Stats.Failed,
		); err != nil {
			return nil, err
		}
		item.RecordedAt = fromUnixMilli(recordedAt)
		result = append(result, item)
	}
	return result, rows.Err()
}

// ListCameraObservations returns one camera's recorded states, newest first.
// ErrNotFound means the camera was never recorded.
func (r *Repository) ListCameraObservations(ctx context.Context, cameraID string, limit int) ([]Observation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT camera_id, snapshot_key, display_name, status, safety_level, condition_label, confidence, classified_at, recorded_at
		FROM camera_observations
		WHERE camera_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?`, cameraID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]Observation, 0)
	for rows.Next() {
		var (
			item                    Observation
			level                   string
			condition, classifiedAt sql.NullString
			confidence              sql.NullFloat64
			recordedAt              int64
		)
		if err := rows.Scan(&item.CameraID, &item.SnapshotKey, &item.DisplayName, &item.Status, &level, &condition, &confidence, &classifiedAt, &recordedAt); err != nil {
			return nil, err
		}
		item.SafetyLevel = model.ParseSafetyLevel(level)
		item.Condition = strValue(condition)
		item.ClassifiedAt = strValue(classifiedAt)
		if confidence.Valid {
			v := confidence.Float64
			item.Confidence = &v
		}
		item.RecordedAt = fromUnixMilli(recordedAt)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Prune deletes everything recorded before cutoff and returns removed snapshot count.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	threshold := cutoff.UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `DELETE FROM camera_observations WHERE recorded_at < ?`, threshold); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE recorded_at < ?`, threshold)
	if err != nil {
		return 0, err
	}
	removed, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if removed > 0 && r.logger != nil {
		r.logger.Info("pruned snapshot history", "snapshots", removed)
	}
	return removed, nil
}
