// Package config loads engine configuration from an optional YAML file
// overridden by CHECKIN_* environment variables. All validation problems
// are collected and reported together so an operator fixes a broken
// deployment in one round trip.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultHTTPPort       = 8470
	DefaultSQLitePath     = "checkin.db"
	DefaultRemoteTimeout  = 10 * time.Second
	DefaultBackoffBase    = 2 * time.Second
	DefaultBackoffCap     = 5 * time.Minute
	DefaultBatchSize      = 50
	DefaultPollInterval   = 15 * time.Second
	DefaultStaleThreshold = 30 * time.Minute
	DefaultRetention      = 30 * 24 * time.Hour
)

// Config is the full runtime configuration of the engine.
type Config struct {
	HTTPPort      int    `yaml:"http_port"`
	SQLitePath    string `yaml:"sqlite_path"`
	DeviceID      string `yaml:"device_id"`
	ActiveEventID string `yaml:"active_event_id"`

	RemoteBaseURL string        `yaml:"remote_base_url"`
	RemoteAPIKey  string        `yaml:"remote_api_key"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`

	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	BatchSize      int           `yaml:"batch_size"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	Retention      time.Duration `yaml:"retention"`

	LogLevel string `yaml:"log_level"`
}

// ErrInvalidConfig wraps all collected validation problems.
var ErrInvalidConfig = errors.New("invalid configuration")

func defaults() Config {
	return Config{
		HTTPPort:       DefaultHTTPPort,
		SQLitePath:     DefaultSQLitePath,
		RemoteTimeout:  DefaultRemoteTimeout,
		BackoffBase:    DefaultBackoffBase,
		BackoffCap:     DefaultBackoffCap,
		BatchSize:      DefaultBatchSize,
		PollInterval:   DefaultPollInterval,
		StaleThreshold: DefaultStaleThreshold,
		Retention:      DefaultRetention,
		LogLevel:       "info",
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty), then the environment. The returned error, when not
// nil, wraps ErrInvalidConfig and lists every problem found.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	var problems []string
	applyEnv(&cfg, &problems)
	validate(cfg, &problems)

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return cfg, nil
}

func applyEnv(cfg *Config, problems *[]string) {
	envString("CHECKIN_SQLITE_PATH", &cfg.SQLitePath)
	envString("CHECKIN_DEVICE_ID", &cfg.DeviceID)
	envString("CHECKIN_ACTIVE_EVENT_ID", &cfg.ActiveEventID)
	envString("CHECKIN_REMOTE_BASE_URL", &cfg.RemoteBaseURL)
	envString("CHECKIN_REMOTE_API_KEY", &cfg.RemoteAPIKey)
	envString("CHECKIN_LOG_LEVEL", &cfg.LogLevel)

	envInt("CHECKIN_HTTP_PORT", &cfg.HTTPPort, problems)
	envInt("CHECKIN_BATCH_SIZE", &cfg.BatchSize, problems)

	envDuration("CHECKIN_REMOTE_TIMEOUT", &cfg.RemoteTimeout, problems)
	envDuration("CHECKIN_BACKOFF_BASE", &cfg.BackoffBase, problems)
	envDuration("CHECKIN_BACKOFF_CAP", &cfg.BackoffCap, problems)
	envDuration("CHECKIN_POLL_INTERVAL", &cfg.PollInterval, problems)
	envDuration("CHECKIN_STALE_THRESHOLD", &cfg.StaleThreshold, problems)
	envDuration("CHECKIN_RETENTION", &cfg.Retention, problems)
}

func validate(cfg Config, problems *[]string) {
	if cfg.DeviceID == "" {
		*problems = append(*problems, "device id is required (CHECKIN_DEVICE_ID)")
	}
	if cfg.RemoteBaseURL == "" {
		*problems = append(*problems, "remote base URL is required (CHECKIN_REMOTE_BASE_URL)")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		*problems = append(*problems, fmt.Sprintf("http port %d is out of range", cfg.HTTPPort))
	}
	if cfg.BatchSize <= 0 {
		*problems = append(*problems, "batch size must be positive")
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffCap < cfg.BackoffBase {
		*problems = append(*problems, "backoff cap must be at least the backoff base")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		*problems = append(*problems, fmt.Sprintf("unknown log level %q", cfg.LogLevel))
	}
}

func envString(key string, dst *string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func envInt(key string, dst *int, problems *[]string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s=%q is not an integer", key, value))
		return
	}
	*dst = parsed
}

func envDuration(key string, dst *time.Duration, problems *[]string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s=%q is not a duration", key, value))
		return
	}
	*dst = parsed
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SlogLevel maps the configured level name to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
