package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Storybox Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Cloud     CloudConfig     `yaml:"cloud"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Database  DatabaseConfig  `yaml:"database"`
	Events    EventsConfig    `yaml:"events"`
	Commands  CommandsConfig  `yaml:"commands"`
	Adventure AdventureConfig `yaml:"adventure"`
	Stitch    StitchConfig    `yaml:"stitch"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AccountConfig identifies the cloud account this instance serves.
type AccountConfig struct {
	// ID is the account identifier used as the root of all MQTT topics.
	ID string `yaml:"id"`

	// Families are the family (household) identifiers whose players are
	// subscribed on startup.
	Families []string `yaml:"families"`
}

// CloudConfig contains settings for the cloud REST collaborator.
// The cloud supplies access tokens, transport credentials, and the
// degraded request-based command channel.
type CloudConfig struct {
	BaseURL string `yaml:"base_url"`

	// RefreshToken is the long-lived credential exchanged for access tokens.
	// Always override via STORYBOX_CLOUD_REFRESH_TOKEN in production.
	RefreshToken string `yaml:"refresh_token"`

	// TokenHeadroom is how long before token expiry a refresh is requested (seconds).
	TokenHeadroom int `yaml:"token_headroom"`

	// RequestTimeout is the per-request timeout for REST calls (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// MQTTConfig contains transport connection settings.
// The broker endpoint and credentials come from the token provider at
// connect time, not from this file.
type MQTTConfig struct {
	ClientID string `yaml:"client_id"`
	QoS      int    `yaml:"qos"`

	// OutboundBuffer bounds the number of publishes queued while disconnected.
	// When full, the oldest entry is dropped.
	OutboundBuffer int `yaml:"outbound_buffer"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings (all in seconds).
type ReconnectConfig struct {
	// InitialDelay is the first reconnect delay.
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the exponential backoff.
	MaxDelay int `yaml:"max_delay"`

	// StabilityWindow is how long a connection must stay up before the
	// backoff resets to InitialDelay.
	StabilityWindow int `yaml:"stability_window"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// EventsConfig contains event routing settings.
type EventsConfig struct {
	// DedupDevices is the maximum number of devices tracked in the
	// de-duplication LRU.
	DedupDevices int `yaml:"dedup_devices"`

	// DedupWindow is the number of recent sequence numbers remembered
	// per device.
	DedupWindow int `yaml:"dedup_window"`

	// LogBuffer bounds the asynchronous event log append queue.
	LogBuffer int `yaml:"log_buffer"`
}

// CommandsConfig contains command dispatch settings.
type CommandsConfig struct {
	// Timeout is how long to wait for a state change confirming a command (seconds).
	Timeout int `yaml:"timeout"`

	// Retries is how many times a timed-out command is re-published before
	// the fallback channel is used.
	Retries int `yaml:"retries"`

	// RetryDelay is the base delay between retries (seconds, doubles per attempt).
	RetryDelay int `yaml:"retry_delay"`
}

// AdventureConfig contains branching-story engine settings.
type AdventureConfig struct {
	// Library is the path to the YAML content library (chapter graphs).
	Library string `yaml:"library"`

	// PersistSessions enables saving session positions to the database so
	// they survive restarts. Off by default; sessions are otherwise
	// in-memory for the process lifetime.
	PersistSessions bool `yaml:"persist_sessions"`
}

// StitchConfig contains stitch job manager settings.
type StitchConfig struct {
	// Concurrency bounds the number of jobs running at once.
	Concurrency int `yaml:"concurrency"`

	// TrackDir is the directory track references resolve against.
	TrackDir string `yaml:"track_dir"`

	// OutputDir is where combined artifacts are written.
	OutputDir string `yaml:"output_dir"`
}

// TelemetryConfig contains InfluxDB settings for the optional telemetry sink.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STORYBOX_SECTION_KEY
// For example: STORYBOX_DATABASE_PATH, STORYBOX_CLOUD_REFRESH_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			TokenHeadroom:  300,
			RequestTimeout: 10,
		},
		MQTT: MQTTConfig{
			ClientID:       "storybox-core",
			QoS:            1,
			OutboundBuffer: 64,
			Reconnect: ReconnectConfig{
				InitialDelay:    1,
				MaxDelay:        60,
				StabilityWindow: 30,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/storybox.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Events: EventsConfig{
			DedupDevices: 256,
			DedupWindow:  128,
			LogBuffer:    1024,
		},
		Commands: CommandsConfig{
			Timeout:    5,
			Retries:    2,
			RetryDelay: 1,
		},
		Adventure: AdventureConfig{
			Library: "configs/content.yaml",
		},
		Stitch: StitchConfig{
			Concurrency: 2,
			TrackDir:    "./data/tracks",
			OutputDir:   "./data/stitched",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STORYBOX_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STORYBOX_ACCOUNT_ID"); v != "" {
		cfg.Account.ID = v
	}

	// Cloud. The refresh token is a secret and should come from the
	// environment rather than the config file.
	if v := os.Getenv("STORYBOX_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("STORYBOX_CLOUD_REFRESH_TOKEN"); v != "" {
		cfg.Cloud.RefreshToken = v
	}

	if v := os.Getenv("STORYBOX_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("STORYBOX_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}

	if v := os.Getenv("STORYBOX_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	if v := os.Getenv("STORYBOX_STITCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stitch.Concurrency = n
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Account.ID == "" {
		errs = append(errs, "account.id is required")
	}

	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	if c.Cloud.RefreshToken == "" {
		errs = append(errs, "cloud.refresh_token is required (set STORYBOX_CLOUD_REFRESH_TOKEN environment variable)")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.OutboundBuffer < 1 {
		errs = append(errs, "mqtt.outbound_buffer must be at least 1")
	}
	if c.MQTT.Reconnect.InitialDelay < 1 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be at least 1")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Events.DedupDevices < 1 {
		errs = append(errs, "events.dedup_devices must be at least 1")
	}
	if c.Events.DedupWindow < 1 {
		errs = append(errs, "events.dedup_window must be at least 1")
	}

	if c.Commands.Timeout < 1 {
		errs = append(errs, "commands.timeout must be at least 1")
	}
	if c.Commands.Retries < 0 {
		errs = append(errs, "commands.retries must not be negative")
	}

	if c.Stitch.Concurrency < 1 {
		errs = append(errs, "stitch.concurrency must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetTokenHeadroom returns the token refresh headroom as a Duration.
func (c *Config) GetTokenHeadroom() time.Duration {
	return time.Duration(c.Cloud.TokenHeadroom) * time.Second
}

// GetRequestTimeout returns the cloud request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}

// GetCommandTimeout returns the command confirmation timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Commands.Timeout) * time.Second
}

// GetCommandRetryDelay returns the base command retry delay as a Duration.
func (c *Config) GetCommandRetryDelay() time.Duration {
	return time.Duration(c.Commands.RetryDelay) * time.Second
}

// GetReconnectInitialDelay returns the initial reconnect delay as a Duration.
func (c *Config) GetReconnectInitialDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}

// GetReconnectMaxDelay returns the maximum reconnect delay as a Duration.
func (c *Config) GetReconnectMaxDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}

// GetReconnectStability returns the backoff stability window as a Duration.
func (c *Config) GetReconnectStability() time.Duration {
	return time.Duration(c.MQTT.Reconnect.StabilityWindow) * time.Second
}
