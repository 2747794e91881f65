package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
monitor:
  default_cadence: daily
  tick_seconds: 5
  initial_delay_seconds: 1
  alert_on_baseline: true
fetch:
  user_agent: formwatch-test
  timeout_seconds: 10
headless:
  max_parallel: 2
  nav_timeout_seconds: 20
db:
  provider: postgres
  dsn: postgres://formwatch@localhost/formwatch
archive:
  provider: local
  local_dir: /tmp/snapshots
notify:
  dashboard_base_url: http://localhost:8080
  slack:
    enabled: true
    webhook_url: https://hooks.slack.example/T000/B000
  email:
    enabled: true
    smtp_host: mail.example.gov
    smtp_port: 2525
    from_address: alerts@example.gov
    to_addresses: ["compliance@example.gov"]
logging:
  development: false
agencies:
  dol:
    name: Department of Labor
    abbreviation: DOL
    resources:
      - name: WH-347
        title: Certified Payroll Report
        url: https://example.gov/forms/wh347
        content_url: https://example.gov/forms/wh347.pdf
        mode: document
        cadence: daily
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if !cfg.Monitor.AlertOnBaseline || cfg.Monitor.DefaultCadence != "daily" {
		t.Fatalf("expected monitor overrides to apply: %+v", cfg.Monitor)
	}
	if cfg.Fetch.UserAgent != "formwatch-test" {
		t.Fatalf("expected user agent override, got %q", cfg.Fetch.UserAgent)
	}
	if !cfg.Notify.Slack.Enabled || cfg.Notify.Slack.WebhookURL == "" {
		t.Fatalf("expected slack channel configured: %+v", cfg.Notify.Slack)
	}
	if cfg.Notify.Email.SMTPPort != 2525 {
		t.Fatalf("expected smtp port override, got %d", cfg.Notify.Email.SMTPPort)
	}
	agency, ok := cfg.Agencies["dol"]
	if !ok || len(agency.Resources) != 1 {
		t.Fatalf("expected seeded agency with one resource: %+v", cfg.Agencies)
	}
	if agency.Resources[0].Mode != "document" || agency.Resources[0].Cadence != "daily" {
		t.Fatalf("expected resource seed fields preserved: %+v", agency.Resources[0])
	}
	if got := cfg.FetchTimeout(); got != 10*time.Second {
		t.Fatalf("expected fetch timeout 10s, got %v", got)
	}
	if got := cfg.Tick(); got != 5*time.Second {
		t.Fatalf("expected tick 5s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Monitor.DefaultCadence != "weekly" {
		t.Fatalf("expected default cadence weekly, got %q", cfg.Monitor.DefaultCadence)
	}
	if cfg.Monitor.AlertOnBaseline {
		t.Fatal("expected baseline alerts disabled by default")
	}
	if cfg.DB.Provider != "memory" {
		t.Fatalf("expected default db provider memory, got %q", cfg.DB.Provider)
	}
	if cfg.Archive.Provider != "none" {
		t.Fatalf("expected archiving disabled by default, got %q", cfg.Archive.Provider)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	cfg := base()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero port")
	}

	cfg = base()
	cfg.Auth.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for auth without api key")
	}

	cfg = base()
	cfg.DB.Provider = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}

	cfg = base()
	cfg.Archive.Provider = "gcs"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for gcs archive without bucket")
	}

	cfg = base()
	cfg.Notify.Email.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for email channel without smtp host")
	}
}
