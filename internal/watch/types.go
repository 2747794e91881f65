// Package watch defines core types shared across subsystems.
package watch

import "time"

// Cadence names how often a resource is polled.
type Cadence string

// Cadence values accepted in configuration and the store.
const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// Interval maps a cadence onto a polling interval. Monthly is approximated as a
// fixed 28 days rather than calendar months. Unknown cadences fall back to
// weekly; callers that care about the fallback should log it.
func (c Cadence) Interval() (time.Duration, bool) {
	switch c {
	case CadenceDaily:
		return 24 * time.Hour, true
	case CadenceWeekly:
		return 7 * 24 * time.Hour, true
	case CadenceMonthly:
		return 28 * 24 * time.Hour, true
	default:
		return 7 * 24 * time.Hour, false
	}
}

// FetchMode selects how a resource's content is retrieved.
type FetchMode string

// Fetch modes supported by the fetch layer.
const (
	ModeStatic   FetchMode = "static"   // plain HTTP GET, body compared as text
	ModeRendered FetchMode = "rendered" // headless browser render for script-built pages
	ModeDocument FetchMode = "document" // binary document, streamed into a digest
)

// Agency is the organization that publishes one or more monitored resources.
type Agency struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Resource is one monitored web page or document.
//
// LastDigest and LastCheckedAt are owned by the monitoring pipeline: the digest
// is set only by a completed fetch+detect cycle and is replaced whole, never
// merged. A failed fetch preserves the digest but still advances LastCheckedAt.
type Resource struct {
	ID         string        `json:"id"`
	AgencyID   string        `json:"agency_id"`
	AgencyName string        `json:"agency_name"`
	Name       string        `json:"name"`
	Title      string        `json:"title,omitempty"`
	PrimaryURL string        `json:"primary_url"`
	ContentURL string        `json:"content_url,omitempty"`
	Mode       FetchMode     `json:"mode"`
	Cadence    Cadence       `json:"cadence"`
	Interval   time.Duration `json:"interval,omitempty"` // explicit override; wins over Cadence when set

	LastDigest    string     `json:"last_digest,omitempty"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
}

// TargetURL returns the URL the fetch layer should hit: the direct content
// link when one is configured, the human page otherwise.
func (r Resource) TargetURL() string {
	if r.ContentURL != "" {
		return r.ContentURL
	}
	return r.PrimaryURL
}

// PollInterval resolves the effective polling interval for the resource.
func (r Resource) PollInterval() (time.Duration, bool) {
	if r.Interval > 0 {
		return r.Interval, true
	}
	return r.Cadence.Interval()
}

// Severity ranks how urgent a detected change is.
type Severity string

// Severity levels, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ChangeEvent records one detected change. Events are append-only; the
// pipeline never mutates them after creation. Reviewed is flipped only by the
// dashboard, never here.
type ChangeEvent struct {
	ID           string    `json:"id"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	AgencyName   string    `json:"agency_name"`
	URL          string    `json:"url"`
	Timestamp    time.Time `json:"timestamp"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
	Reviewed     bool      `json:"reviewed"`
	SnapshotURI  string    `json:"snapshot_uri,omitempty"`
}

// JobRunStatus summarizes one scheduler firing.
type JobRunStatus string

// Job run statuses.
const (
	JobRunSuccess JobRunStatus = "success"
	JobRunPartial JobRunStatus = "partial"
	JobRunFailure JobRunStatus = "failure"
)

// JobRunTrigger says what caused a firing.
type JobRunTrigger string

// Job run triggers.
const (
	TriggerSchedule JobRunTrigger = "schedule"
	TriggerManual   JobRunTrigger = "manual"
)

// JobRun is the diagnostic record for one scheduler firing. It is created and
// closed by the scheduler at the end of the firing and never mutated after.
type JobRun struct {
	ID               string        `json:"id"`
	Trigger          JobRunTrigger `json:"trigger"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Status           JobRunStatus  `json:"status"`
	ResourcesChecked int           `json:"resources_checked"`
	ChangesDetected  int           `json:"changes_detected"`
	ErrorText        string        `json:"error_text,omitempty"`
}

// Snapshot is a fetched representation of a resource: either the body text or
// a precomputed streaming digest for binary documents, never both.
type Snapshot struct {
	Text   string
	Digest string
}

// Empty reports whether the fetch produced nothing comparable.
func (s Snapshot) Empty() bool {
	return s.Text == "" && s.Digest == ""
}
