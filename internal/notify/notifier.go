// Package notify fans detected changes out to the configured alert channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/formwatch/formwatch/internal/metrics"
	"github.com/formwatch/formwatch/internal/watch"
)

// ErrConfigMissing marks a channel that is enabled but not fully configured.
// The channel is skipped with a warning rather than failing the fan-out.
var ErrConfigMissing = errors.New("channel configuration missing")

// Message is the shared field set every channel renders its own way.
// Channels must not mutate it.
type Message struct {
	ResourceName string
	ResourceID   string
	AgencyName   string
	Severity     watch.Severity
	Description  string
	URL          string
	DashboardURL string
	Timestamp    time.Time
}

// Channel is one delivery mechanism for change alerts.
type Channel interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}

// OutcomeStatus classifies one channel attempt.
type OutcomeStatus string

// Channel attempt outcomes.
const (
	OutcomeDelivered     OutcomeStatus = "delivered"
	OutcomeDisabled      OutcomeStatus = "disabled"
	OutcomeConfigMissing OutcomeStatus = "config_missing"
	OutcomeFailed        OutcomeStatus = "failed"
)

// Outcome reports what happened on one channel.
type Outcome struct {
	Channel string
	Status  OutcomeStatus
	Err     error
}

// Notifier pushes change events through an ordered list of channels,
// isolating per-channel failures: one channel's error never stops the rest,
// and the fan-out itself never returns an error to the caller.
type Notifier struct {
	channels         []Channel
	dashboardBaseURL string
	logger           *zap.Logger
}

// New constructs a Notifier. Channel order is delivery order.
func New(channels []Channel, dashboardBaseURL string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		channels:         channels,
		dashboardBaseURL: dashboardBaseURL,
		logger:           logger,
	}
}

// Send delivers the event on every enabled channel and reports per-channel
// outcomes. It always completes.
func (n *Notifier) Send(ctx context.Context, event watch.ChangeEvent) []Outcome {
	return n.deliver(ctx, n.messageFor(event))
}

// TestSend pushes a synthetic event through every enabled channel so
// operators can validate credentials and webhooks. Nothing is persisted.
func (n *Notifier) TestSend(ctx context.Context) []Outcome {
	msg := Message{
		ResourceName: "TEST-FORM-001",
		ResourceID:   "test-form-001",
		AgencyName:   "Test Agency",
		Severity:     watch.SeverityLow,
		Description:  "This is a test notification from the form monitoring service.",
		URL:          "https://example.gov/test-form",
		DashboardURL: n.dashboardURL("test-form-001"),
		Timestamp:    time.Now().UTC(),
	}
	return n.deliver(ctx, msg)
}

func (n *Notifier) deliver(ctx context.Context, msg Message) []Outcome {
	outcomes := make([]Outcome, 0, len(n.channels))
	for _, ch := range n.channels {
		outcome := n.attempt(ctx, ch, msg)
		metrics.ObserveDelivery(outcome.Channel, string(outcome.Status))
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (n *Notifier) attempt(ctx context.Context, ch Channel, msg Message) Outcome {
	if !ch.Enabled() {
		return Outcome{Channel: ch.Name(), Status: OutcomeDisabled}
	}
	err := ch.Send(ctx, msg)
	switch {
	case err == nil:
		n.logger.Info("alert delivered",
			zap.String("channel", ch.Name()),
			zap.String("resource", msg.ResourceName),
			zap.String("severity", string(msg.Severity)),
		)
		return Outcome{Channel: ch.Name(), Status: OutcomeDelivered}
	case errors.Is(err, ErrConfigMissing):
		n.logger.Warn("alert channel not configured, skipping",
			zap.String("channel", ch.Name()),
			zap.Error(err),
		)
		return Outcome{Channel: ch.Name(), Status: OutcomeConfigMissing, Err: err}
	default:
		n.logger.Error("alert delivery failed",
			zap.String("channel", ch.Name()),
			zap.String("resource", msg.ResourceName),
			zap.Error(err),
		)
		return Outcome{Channel: ch.Name(), Status: OutcomeFailed, Err: err}
	}
}

func (n *Notifier) messageFor(event watch.ChangeEvent) Message {
	return Message{
		ResourceName: event.ResourceName,
		ResourceID:   event.ResourceID,
		AgencyName:   event.AgencyName,
		Severity:     event.Severity,
		Description:  event.Description,
		URL:          event.URL,
		DashboardURL: n.dashboardURL(event.ResourceID),
		Timestamp:    event.Timestamp,
	}
}

func (n *Notifier) dashboardURL(resourceID string) string {
	if n.dashboardBaseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/resource/%s", n.dashboardBaseURL, resourceID)
}

// severityColor maps a severity onto the hex color used in rich renderings.
func severityColor(s watch.Severity) string {
	switch s {
	case watch.SeverityCritical:
		return "#FF0000"
	case watch.SeverityHigh:
		return "#FFA500"
	case watch.SeverityMedium:
		return "#FFFF00"
	case watch.SeverityLow:
		return "#008000"
	default:
		return "#808080"
	}
}
