package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CHECKIN_DEVICE_ID", "device-1")
	t.Setenv("CHECKIN_REMOTE_BASE_URL", "https://attendance.example.com")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != DefaultHTTPPort {
		t.Errorf("port = %d, want %d", cfg.HTTPPort, DefaultHTTPPort)
	}
	if cfg.BackoffBase != DefaultBackoffBase || cfg.BackoffCap != DefaultBackoffCap {
		t.Errorf("backoff = (%v, %v), want defaults", cfg.BackoffBase, cfg.BackoffCap)
	}
	if cfg.Addr() != ":8470" {
		t.Errorf("addr = %q, want :8470", cfg.Addr())
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"http_port: 9000",
		"sqlite_path: /var/lib/checkin/queue.db",
		"batch_size: 10",
		"poll_interval: 30s",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHECKIN_BATCH_SIZE", "50")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("port = %d, want 9000 from file", cfg.HTTPPort)
	}
	if cfg.SQLitePath != "/var/lib/checkin/queue.db" {
		t.Errorf("sqlite path = %q", cfg.SQLitePath)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("batch size = %d, want env override 50", cfg.BatchSize)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", cfg.PollInterval)
	}
}

func TestLoadCollectsAllProblems(t *testing.T) {
	t.Setenv("CHECKIN_HTTP_PORT", "not-a-port")
	t.Setenv("CHECKIN_BACKOFF_BASE", "soon")
	t.Setenv("CHECKIN_LOG_LEVEL", "loud")

	_, err := Load("")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	for _, fragment := range []string{
		"CHECKIN_HTTP_PORT",
		"CHECKIN_BACKOFF_BASE",
		"device id is required",
		"remote base URL is required",
		"unknown log level",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing fragment %q", err, fragment)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	setRequired(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for name, want := range cases {
		if got := (Config{LogLevel: name}).SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}
