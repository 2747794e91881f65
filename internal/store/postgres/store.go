// Package postgres provides the Postgres-backed resource store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formwatch/formwatch/internal/watch"
)

// ErrNotFound is returned when a resource id is unknown.
var ErrNotFound = errors.New("resource not found")

// Config controls the Postgres connection pool.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store persists agencies, resources, change events and job runs in Postgres.
type Store struct {
	pool db
}

// New connects a pool and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool db) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const resourceColumns = `
	r.id, r.agency_id, COALESCE(a.name, ''), r.name, r.title,
	r.primary_url, r.content_url, r.mode, r.cadence, r.interval_seconds,
	r.last_digest, r.last_checked_at`

func scanResource(row pgx.Row) (watch.Resource, error) {
	var (
		r               watch.Resource
		intervalSeconds int64
		lastCheckedAt   *time.Time
	)
	err := row.Scan(
		&r.ID, &r.AgencyID, &r.AgencyName, &r.Name, &r.Title,
		&r.PrimaryURL, &r.ContentURL, &r.Mode, &r.Cadence, &intervalSeconds,
		&r.LastDigest, &lastCheckedAt,
	)
	if err != nil {
		return watch.Resource{}, err
	}
	r.Interval = time.Duration(intervalSeconds) * time.Second
	r.LastCheckedAt = lastCheckedAt
	return r, nil
}

func (s *Store) ListResources(ctx context.Context) ([]watch.Resource, error) {
	query := `
		SELECT` + resourceColumns + `
		FROM resources r
		LEFT JOIN agencies a ON a.id = r.agency_id
		ORDER BY r.id;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []watch.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return out, nil
}

func (s *Store) GetResource(ctx context.Context, id string) (watch.Resource, error) {
	query := `
		SELECT` + resourceColumns + `
		FROM resources r
		LEFT JOIN agencies a ON a.id = r.agency_id
		WHERE r.id = $1;`
	r, err := scanResource(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return watch.Resource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return watch.Resource{}, fmt.Errorf("get resource %s: %w", id, err)
	}
	return r, nil
}

const updateDigestSQL = `
	UPDATE resources
	SET last_digest = $1, last_checked_at = $2
	WHERE id = $3;`

func (s *Store) UpdateDigest(ctx context.Context, id string, digest string, checkedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, updateDigestSQL, digest, checkedAt, id)
	if err != nil {
		return fmt.Errorf("update digest for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const insertChangeSQL = `
	INSERT INTO change_events (
		id, resource_id, url, detected_at, description, severity, reviewed, snapshot_uri
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

func (s *Store) AppendChange(ctx context.Context, event watch.ChangeEvent) error {
	_, err := s.pool.Exec(ctx, insertChangeSQL,
		event.ID, event.ResourceID, event.URL, event.Timestamp,
		event.Description, event.Severity, event.Reviewed, event.SnapshotURI,
	)
	if err != nil {
		return fmt.Errorf("append change for %s: %w", event.ResourceID, err)
	}
	return nil
}

// RecordCycle runs the digest update and the optional change insert in one
// transaction so readers never observe one without the other.
func (s *Store) RecordCycle(ctx context.Context, id string, digest string, checkedAt time.Time, event *watch.ChangeEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cycle transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx, updateDigestSQL, digest, checkedAt, id)
	if err != nil {
		return fmt.Errorf("update digest for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if event != nil {
		_, err = tx.Exec(ctx, insertChangeSQL,
			event.ID, event.ResourceID, event.URL, event.Timestamp,
			event.Description, event.Severity, event.Reviewed, event.SnapshotURI,
		)
		if err != nil {
			return fmt.Errorf("append change for %s: %w", id, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cycle for %s: %w", id, err)
	}
	return nil
}

func (s *Store) RecordJobRun(ctx context.Context, run watch.JobRun) error {
	query := `
		INSERT INTO job_runs (
			id, trigger, started_at, finished_at, status,
			resources_checked, changes_detected, error_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`
	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Trigger, run.StartedAt, run.FinishedAt, run.Status,
		run.ResourcesChecked, run.ChangesDetected, run.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("record job run: %w", err)
	}
	return nil
}

func (s *Store) ListChanges(ctx context.Context, limit int) ([]watch.ChangeEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT
			c.id, c.resource_id, COALESCE(r.name, ''), COALESCE(a.name, ''),
			c.url, c.detected_at, c.description, c.severity, c.reviewed, c.snapshot_uri
		FROM change_events c
		LEFT JOIN resources r ON r.id = c.resource_id
		LEFT JOIN agencies a ON a.id = r.agency_id
		ORDER BY c.detected_at DESC
		LIMIT $1;`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var out []watch.ChangeEvent
	for rows.Next() {
		var ev watch.ChangeEvent
		err := rows.Scan(
			&ev.ID, &ev.ResourceID, &ev.ResourceName, &ev.AgencyName,
			&ev.URL, &ev.Timestamp, &ev.Description, &ev.Severity, &ev.Reviewed, &ev.SnapshotURI,
		)
		if err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertAgency(ctx context.Context, agency watch.Agency) error {
	if agency.ID == "" {
		return fmt.Errorf("agency id is required")
	}
	query := `
		INSERT INTO agencies (id, name, abbreviation, base_url, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			abbreviation = EXCLUDED.abbreviation,
			base_url = EXCLUDED.base_url,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone;`
	_, err := s.pool.Exec(ctx, query,
		agency.ID, agency.Name, agency.Abbreviation,
		agency.BaseURL, agency.ContactEmail, agency.ContactPhone,
	)
	if err != nil {
		return fmt.Errorf("upsert agency %s: %w", agency.ID, err)
	}
	return nil
}

// UpsertResource inserts or updates a resource. Pipeline-owned columns
// (last_digest, last_checked_at) are left untouched on conflict so reseeding
// from config never loses the baseline.
func (s *Store) UpsertResource(ctx context.Context, resource watch.Resource) error {
	if resource.ID == "" {
		return fmt.Errorf("resource id is required")
	}
	query := `
		INSERT INTO resources (
			id, agency_id, name, title, primary_url, content_url,
			mode, cadence, interval_seconds, last_digest, last_checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			agency_id = EXCLUDED.agency_id,
			name = EXCLUDED.name,
			title = EXCLUDED.title,
			primary_url = EXCLUDED.primary_url,
			content_url = EXCLUDED.content_url,
			mode = EXCLUDED.mode,
			cadence = EXCLUDED.cadence,
			interval_seconds = EXCLUDED.interval_seconds;`
	_, err := s.pool.Exec(ctx, query,
		resource.ID, resource.AgencyID, resource.Name, resource.Title,
		resource.PrimaryURL, resource.ContentURL, resource.Mode, resource.Cadence,
		int64(resource.Interval/time.Second), resource.LastDigest, resource.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert resource %s: %w", resource.ID, err)
	}
	return nil
}
