// Package memory implements the resource store in-process, for tests and
// single-host development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/formwatch/formwatch/internal/watch"
)

// Store keeps agencies, resources and the change log in maps guarded by one
// mutex. Change events are append-only, matching the durable implementation.
type Store struct {
	mu        sync.RWMutex
	agencies  map[string]watch.Agency
	resources map[string]watch.Resource
	changes   []watch.ChangeEvent
	jobRuns   []watch.JobRun
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		agencies:  make(map[string]watch.Agency),
		resources: make(map[string]watch.Resource),
	}
}

// ErrNotFound is returned when a resource id is unknown.
var ErrNotFound = fmt.Errorf("resource not found")

func (s *Store) ListResources(_ context.Context) ([]watch.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]watch.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetResource(_ context.Context, id string) (watch.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.resources[id]
	if !ok {
		return watch.Resource{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *Store) UpdateDigest(_ context.Context, id string, digest string, checkedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDigestLocked(id, digest, checkedAt)
}

func (s *Store) updateDigestLocked(id string, digest string, checkedAt time.Time) error {
	r, ok := s.resources[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.LastDigest = digest
	t := checkedAt
	r.LastCheckedAt = &t
	s.resources[id] = r
	return nil
}

func (s *Store) AppendChange(_ context.Context, event watch.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, event)
	return nil
}

// RecordCycle applies the digest update and, when present, the change event
// under one lock so readers never observe one without the other.
func (s *Store) RecordCycle(_ context.Context, id string, digest string, checkedAt time.Time, event *watch.ChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateDigestLocked(id, digest, checkedAt); err != nil {
		return err
	}
	if event != nil {
		s.changes = append(s.changes, *event)
	}
	return nil
}

func (s *Store) RecordJobRun(_ context.Context, run watch.JobRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobRuns = append(s.jobRuns, run)
	return nil
}

// ListChanges returns the newest events first, capped at limit when positive.
func (s *Store) ListChanges(_ context.Context, limit int) ([]watch.ChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]watch.ChangeEvent, len(s.changes))
	copy(out, s.changes)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpsertAgency(_ context.Context, agency watch.Agency) error {
	if agency.ID == "" {
		return fmt.Errorf("agency id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agencies[agency.ID] = agency
	return nil
}

func (s *Store) UpsertResource(_ context.Context, resource watch.Resource) error {
	if resource.ID == "" {
		return fmt.Errorf("resource id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Preserve pipeline-owned fields across reseeds.
	if prev, ok := s.resources[resource.ID]; ok {
		if resource.LastDigest == "" {
			resource.LastDigest = prev.LastDigest
		}
		if resource.LastCheckedAt == nil {
			resource.LastCheckedAt = prev.LastCheckedAt
		}
	}
	s.resources[resource.ID] = resource
	return nil
}

// JobRuns returns recorded runs, for assertions in tests.
func (s *Store) JobRuns() []watch.JobRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]watch.JobRun, len(s.jobRuns))
	copy(out, s.jobRuns)
	return out
}
