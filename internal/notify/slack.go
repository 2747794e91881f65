package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/formwatch/formwatch/internal/config"
)

// Slack delivers alerts to a Slack incoming webhook.
type Slack struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewSlack builds the Slack channel from configuration.
func NewSlack(cfg config.WebhookConfig) *Slack {
	return &Slack{cfg: cfg, client: webhookClient()}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Enabled() bool { return s.cfg.Enabled }

func (s *Slack) Send(ctx context.Context, msg Message) error {
	if s.cfg.WebhookURL == "" {
		return fmt.Errorf("%w: slack webhook url is required", ErrConfigMissing)
	}

	var text strings.Builder
	fmt.Fprintf(&text, ":rotating_light: *Form Change Detected: %s*\n", msg.ResourceName)
	fmt.Fprintf(&text, "• *Agency:* %s\n", msg.AgencyName)
	fmt.Fprintf(&text, "• *Severity:* %s\n", strings.ToUpper(string(msg.Severity)))
	fmt.Fprintf(&text, "• *Detected:* %s\n", msg.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&text, "• *Description:* %s\n", msg.Description)
	fmt.Fprintf(&text, "• *URL:* <%s>\n", msg.URL)
	if msg.DashboardURL != "" {
		fmt.Fprintf(&text, "• *Dashboard:* <%s>\n", msg.DashboardURL)
	}

	payload := map[string]any{"text": text.String()}
	return postJSON(ctx, s.client, s.cfg.WebhookURL, payload)
}
