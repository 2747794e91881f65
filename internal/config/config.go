// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. It is
// read-only after Load and handed explicitly to each component constructor.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Auth     AuthConfig            `mapstructure:"auth"`
	Monitor  MonitorConfig         `mapstructure:"monitor"`
	Fetch    FetchConfig           `mapstructure:"fetch"`
	Headless HeadlessConfig        `mapstructure:"headless"`
	DB       DBConfig              `mapstructure:"db"`
	Archive  ArchiveConfig         `mapstructure:"archive"`
	Notify   NotifyConfig          `mapstructure:"notify"`
	Logging  LoggingConfig         `mapstructure:"logging"`
	Agencies map[string]AgencySeed `mapstructure:"agencies"`
}

// ServerConfig controls the control API HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// MonitorConfig governs scheduler and detection behavior.
type MonitorConfig struct {
	DefaultCadence  string `mapstructure:"default_cadence"`
	TickSeconds     int    `mapstructure:"tick_seconds"`
	InitialDelaySec int    `mapstructure:"initial_delay_seconds"`
	AlertOnBaseline bool   `mapstructure:"alert_on_baseline"`
}

// FetchConfig configures the plain HTTP fetch path.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// DBConfig controls access to the resource store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // postgres or memory
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// ArchiveConfig controls optional snapshot archiving of changed content.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"` // gcs, local, or none
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig holds per-channel notification settings.
type NotifyConfig struct {
	DashboardBaseURL string        `mapstructure:"dashboard_base_url"`
	Email            EmailConfig   `mapstructure:"email"`
	Slack            WebhookConfig `mapstructure:"slack"`
	Teams            WebhookConfig `mapstructure:"teams"`
	PubSub           PubSubConfig  `mapstructure:"pubsub"`
}

// EmailConfig configures the SMTP channel.
type EmailConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	SMTPHost    string   `mapstructure:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	FromAddress string   `mapstructure:"from_address"`
	ToAddresses []string `mapstructure:"to_addresses"`
}

// WebhookConfig configures a chat webhook channel.
type WebhookConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// PubSubConfig configures the Pub/Sub event stream channel.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AgencySeed describes an agency and its monitored resources as declared in
// the config file; the load command upserts these into the store.
type AgencySeed struct {
	Name         string         `mapstructure:"name"`
	Abbreviation string         `mapstructure:"abbreviation"`
	BaseURL      string         `mapstructure:"base_url"`
	ContactEmail string         `mapstructure:"contact_email"`
	ContactPhone string         `mapstructure:"contact_phone"`
	Resources    []ResourceSeed `mapstructure:"resources"`
}

// ResourceSeed describes one monitored resource in the config file.
type ResourceSeed struct {
	Name       string `mapstructure:"name"`
	Title      string `mapstructure:"title"`
	URL        string `mapstructure:"url"`
	ContentURL string `mapstructure:"content_url"`
	Mode       string `mapstructure:"mode"`
	Cadence    string `mapstructure:"cadence"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FORMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitor.default_cadence", "weekly")
	v.SetDefault("monitor.tick_seconds", 30)
	v.SetDefault("monitor.initial_delay_seconds", 5)
	v.SetDefault("monitor.alert_on_baseline", false)
	v.SetDefault("fetch.user_agent", "formwatch/1.0 (government forms monitoring)")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Monitor.TickSeconds <= 0 {
		return fmt.Errorf("monitor.tick_seconds must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	switch c.Archive.Provider {
	case "none", "local", "gcs", "":
	default:
		return fmt.Errorf("archive.provider must be one of none, local, gcs")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.LocalDir == "" {
		return fmt.Errorf("archive.local_dir must be set when archive.provider is local")
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.SMTPHost == "" || len(c.Notify.Email.ToAddresses) == 0 {
			return fmt.Errorf("notify.email requires smtp_host and to_addresses when enabled")
		}
	}
	if c.Notify.PubSub.Enabled && (c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicName == "") {
		return fmt.Errorf("notify.pubsub requires project_id and topic_name when enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// Tick converts the scheduler tick into a duration.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Monitor.TickSeconds) * time.Second
}

// InitialDelay is how soon after startup the first check fires.
func (c Config) InitialDelay() time.Duration {
	return time.Duration(c.Monitor.InitialDelaySec) * time.Second
}
