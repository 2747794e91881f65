// Package watchtest builds valid domain values for tests.
package watchtest

import (
	"time"

	"github.com/formwatch/formwatch/internal/watch"
)

// ResourceBuilder assembles a valid watch.Resource step by step.
type ResourceBuilder struct {
	resource watch.Resource
}

// NewResource returns a builder seeded with a well-formed static resource.
func NewResource(id string) *ResourceBuilder {
	return &ResourceBuilder{resource: watch.Resource{
		ID:         id,
		AgencyID:   "agency-dol",
		AgencyName: "Department of Labor",
		Name:       "WH-347",
		Title:      "Certified Payroll Report",
		PrimaryURL: "https://example.gov/forms/wh347",
		Mode:       watch.ModeStatic,
		Cadence:    watch.CadenceWeekly,
	}}
}

// Mode overrides the fetch mode.
func (b *ResourceBuilder) Mode(mode watch.FetchMode) *ResourceBuilder {
	b.resource.Mode = mode
	return b
}

// Cadence overrides the polling cadence.
func (b *ResourceBuilder) Cadence(cadence watch.Cadence) *ResourceBuilder {
	b.resource.Cadence = cadence
	return b
}

// Interval sets an explicit polling interval override.
func (b *ResourceBuilder) Interval(d time.Duration) *ResourceBuilder {
	b.resource.Interval = d
	return b
}

// URL overrides the primary URL.
func (b *ResourceBuilder) URL(url string) *ResourceBuilder {
	b.resource.PrimaryURL = url
	return b
}

// ContentURL sets the direct document link.
func (b *ResourceBuilder) ContentURL(url string) *ResourceBuilder {
	b.resource.ContentURL = url
	return b
}

// Digest seeds the stored baseline digest.
func (b *ResourceBuilder) Digest(digest string) *ResourceBuilder {
	b.resource.LastDigest = digest
	return b
}

// CheckedAt seeds the stored check timestamp.
func (b *ResourceBuilder) CheckedAt(t time.Time) *ResourceBuilder {
	b.resource.LastCheckedAt = &t
	return b
}

// Build returns the assembled resource.
func (b *ResourceBuilder) Build() watch.Resource {
	return b.resource
}

// NewChangeEvent returns a well-formed change event for tests.
func NewChangeEvent(resourceID string) watch.ChangeEvent {
	return watch.ChangeEvent{
		ID:           "event-" + resourceID,
		ResourceID:   resourceID,
		ResourceName: "WH-347",
		AgencyName:   "Department of Labor",
		URL:          "https://example.gov/forms/wh347",
		Timestamp:    time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Description:  "content hash changed",
		Severity:     watch.SeverityMedium,
	}
}
