package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NOISENET_CONFIG", "NOISENET_DATABASE_URL", "NOISENET_HTTP_ADDR",
		"NOISENET_NATS_URL", "NOISENET_AUTH_TOKEN", "NOISENET_EVENTS_PER_HOUR",
		"NOISENET_MAX_PAST_SKEW", "NOISENET_MAX_FUTURE_SKEW", "NOISENET_INGEST_TIMEOUT",
		"NOISENET_MAX_SNIPPET_MB", "NOISENET_SNIPPET_RETENTION", "NOISENET_SWEEP_INTERVAL",
		"NOISENET_CODECS", "NOISENET_S3_BUCKET", "NOISENET_S3_ENDPOINT",
		"NOISENET_S3_REGION", "NOISENET_S3_PREFIX",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOISENET_DATABASE_URL", "postgres://localhost/noisenet")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.EventsPerHour != 1000 {
		t.Errorf("EventsPerHour = %d", cfg.EventsPerHour)
	}
	if cfg.MaxSnippetMB != 10 {
		t.Errorf("MaxSnippetMB = %d", cfg.MaxSnippetMB)
	}
	if cfg.MaxSnippetBytes() != 10<<20 {
		t.Errorf("MaxSnippetBytes() = %d", cfg.MaxSnippetBytes())
	}
	if cfg.SnippetRetention != 168*time.Hour {
		t.Errorf("SnippetRetention = %v", cfg.SnippetRetention)
	}
	if cfg.MaxFutureSkew != 2*time.Minute {
		t.Errorf("MaxFutureSkew = %v", cfg.MaxFutureSkew)
	}
	if cfg.S3Region != "eu-central-1" {
		t.Errorf("S3Region = %q", cfg.S3Region)
	}
	if len(cfg.Codecs) != 4 || cfg.Codecs[0] != "opus" {
		t.Errorf("Codecs = %v", cfg.Codecs)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("Load() accepted empty database URL")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOISENET_DATABASE_URL", "postgres://localhost/noisenet")
	t.Setenv("NOISENET_HTTP_ADDR", ":9999")
	t.Setenv("NOISENET_EVENTS_PER_HOUR", "50")
	t.Setenv("NOISENET_SNIPPET_RETENTION", "24h")
	t.Setenv("NOISENET_CODECS", "opus, wav")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.EventsPerHour != 50 {
		t.Errorf("EventsPerHour = %d", cfg.EventsPerHour)
	}
	if cfg.SnippetRetention != 24*time.Hour {
		t.Errorf("SnippetRetention = %v", cfg.SnippetRetention)
	}
	if len(cfg.Codecs) != 2 || cfg.Codecs[1] != "wav" {
		t.Errorf("Codecs = %v", cfg.Codecs)
	}
}

func TestLoadTOMLFileWithEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "noisenet.toml")
	contents := `
database_url = "postgres://filehost/noisenet"
http_addr = ":7070"
events_per_hour = 200
snippet_retention = "48h"
codecs = ["opus"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	// The environment wins over the file where both are set.
	t.Setenv("NOISENET_HTTP_ADDR", ":6060")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://filehost/noisenet" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":6060" {
		t.Errorf("HTTPAddr = %q, want env to win", cfg.HTTPAddr)
	}
	if cfg.EventsPerHour != 200 {
		t.Errorf("EventsPerHour = %d", cfg.EventsPerHour)
	}
	if cfg.SnippetRetention != 48*time.Hour {
		t.Errorf("SnippetRetention = %v", cfg.SnippetRetention)
	}
	if len(cfg.Codecs) != 1 || cfg.Codecs[0] != "opus" {
		t.Errorf("Codecs = %v", cfg.Codecs)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("NOISENET_DATABASE_URL", "postgres://localhost/noisenet")

	t.Setenv("NOISENET_EVENTS_PER_HOUR", "-5")
	if _, err := Load(""); err == nil {
		t.Error("negative events-per-hour accepted")
	}

	t.Setenv("NOISENET_EVENTS_PER_HOUR", "100")
	t.Setenv("NOISENET_SWEEP_INTERVAL", "often")
	if _, err := Load(""); err == nil {
		t.Error("unparseable sweep interval accepted")
	}
}
