package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_key TEXT PRIMARY KEY,
			last_updated TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			camera_count INTEGER NOT NULL,
			total INTEGER NOT NULL,
			safe INTEGER NOT NULL,
			caution INTEGER NOT NULL,
			hazardous INTEGER NOT NULL,
			failed INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS camera_observations (
			camera_id TEXT NOT NULL,
			snapshot_key TEXT NOT NULL,
			display_name TEXT NOT NULL,
			status TEXT NOT NULL,
			safety_level TEXT NOT NULL,
			condition_label TEXT,
			confidence REAL,
			classified_at TEXT,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (camera_id, snapshot_key)
		);`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_snapshots_recorded_at ON snapshots(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_observations_recorded_at ON camera_observations(recorded_at);`,
	}
	for _, stmt := range indexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func fromUnixMilli(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func strValue(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}
