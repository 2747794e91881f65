package watch

import (
	"context"
	"time"
)

// Store is the durable registry of monitored resources and the append-only
// change log. The pipeline is its sole writer for digests and change events;
// it never deletes resources or changes.
type Store interface {
	ListResources(ctx context.Context) ([]Resource, error)
	GetResource(ctx context.Context, id string) (Resource, error)
	// UpdateDigest replaces a resource's digest and check timestamp. Fetch
	// failures call this with the prior digest so the baseline survives.
	UpdateDigest(ctx context.Context, id string, digest string, checkedAt time.Time) error
	AppendChange(ctx context.Context, event ChangeEvent) error
	// RecordCycle atomically appends the change event (when non-nil) and
	// updates the digest/timestamp, so readers never observe one without the
	// other.
	RecordCycle(ctx context.Context, id string, digest string, checkedAt time.Time, event *ChangeEvent) error
	RecordJobRun(ctx context.Context, run JobRun) error
	ListChanges(ctx context.Context, limit int) ([]ChangeEvent, error)
	UpsertAgency(ctx context.Context, agency Agency) error
	UpsertResource(ctx context.Context, resource Resource) error
}

// Fetcher retrieves the current representation of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, resource Resource) (Snapshot, error)
}

// Hasher computes hex digests of content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces event and job run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
