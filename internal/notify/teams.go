package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/formwatch/formwatch/internal/config"
)

// Teams delivers alerts to a Microsoft Teams incoming webhook as a
// MessageCard.
type Teams struct {
	cfg    config.WebhookConfig
	client *http.Client
}

// NewTeams builds the Teams channel from configuration.
func NewTeams(cfg config.WebhookConfig) *Teams {
	return &Teams{cfg: cfg, client: webhookClient()}
}

func (t *Teams) Name() string { return "teams" }

func (t *Teams) Enabled() bool { return t.cfg.Enabled }

func (t *Teams) Send(ctx context.Context, msg Message) error {
	if t.cfg.WebhookURL == "" {
		return fmt.Errorf("%w: teams webhook url is required", ErrConfigMissing)
	}

	facts := []map[string]string{
		{"name": "Form", "value": msg.ResourceName},
		{"name": "Agency", "value": msg.AgencyName},
		{"name": "Severity", "value": strings.ToUpper(string(msg.Severity))},
		{"name": "Detected", "value": msg.Timestamp.Format("2006-01-02 15:04:05 MST")},
		{"name": "Description", "value": msg.Description},
	}

	actions := []map[string]any{
		{
			"@type": "OpenUri",
			"name":  "View Form",
			"targets": []map[string]string{
				{"os": "default", "uri": msg.URL},
			},
		},
	}
	if msg.DashboardURL != "" {
		actions = append(actions, map[string]any{
			"@type": "OpenUri",
			"name":  "Open Dashboard",
			"targets": []map[string]string{
				{"os": "default", "uri": msg.DashboardURL},
			},
		})
	}

	payload := map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": strings.TrimPrefix(severityColor(msg.Severity), "#"),
		"summary":    fmt.Sprintf("Form change detected: %s", msg.ResourceName),
		"sections": []map[string]any{
			{
				"activityTitle":    fmt.Sprintf("Form Change Detected: %s", msg.ResourceName),
				"activitySubtitle": msg.AgencyName,
				"facts":            facts,
				"markdown":         true,
			},
		},
		"potentialAction": actions,
	}
	return postJSON(ctx, t.client, t.cfg.WebhookURL, payload)
}
