package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS agencies (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		abbreviation  TEXT NOT NULL DEFAULT '',
		base_url      TEXT NOT NULL DEFAULT '',
		contact_email TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS resources (
		id               TEXT PRIMARY KEY,
		agency_id        TEXT REFERENCES agencies(id),
		name             TEXT NOT NULL,
		title            TEXT NOT NULL DEFAULT '',
		primary_url      TEXT NOT NULL,
		content_url      TEXT NOT NULL DEFAULT '',
		mode             TEXT NOT NULL DEFAULT 'static',
		cadence          TEXT NOT NULL DEFAULT 'weekly',
		interval_seconds BIGINT NOT NULL DEFAULT 0,
		last_digest      TEXT NOT NULL DEFAULT '',
		last_checked_at  TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS change_events (
		id           TEXT PRIMARY KEY,
		resource_id  TEXT NOT NULL REFERENCES resources(id),
		url          TEXT NOT NULL DEFAULT '',
		detected_at  TIMESTAMPTZ NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		severity     TEXT NOT NULL DEFAULT 'medium',
		reviewed     BOOLEAN NOT NULL DEFAULT FALSE,
		snapshot_uri TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE INDEX IF NOT EXISTS change_events_detected_at_idx
		ON change_events (detected_at DESC);`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id                TEXT PRIMARY KEY,
		trigger           TEXT NOT NULL,
		started_at        TIMESTAMPTZ NOT NULL,
		finished_at       TIMESTAMPTZ NOT NULL,
		status            TEXT NOT NULL,
		resources_checked INTEGER NOT NULL DEFAULT 0,
		changes_detected  INTEGER NOT NULL DEFAULT 0,
		error_text        TEXT NOT NULL DEFAULT ''
	);`,
}

// Migrate creates the schema if it does not exist. Statements are idempotent
// so running it on every startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
