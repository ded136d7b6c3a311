// Package config loads server configuration from an optional TOML file and
// NOISENET_* environment variables. Environment values override the file.
// The loaded Config is handed to each component at construction; nothing
// reads process-wide settings at runtime.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL string // NOISENET_DATABASE_URL (required)
	HTTPAddr    string // NOISENET_HTTP_ADDR (default ":8080")
	NATSURL     string // NOISENET_NATS_URL (optional, empty = no event bus)
	AuthToken   string // NOISENET_AUTH_TOKEN (optional, empty = auth disabled)

	// Ingestion settings
	EventsPerHour int           // NOISENET_EVENTS_PER_HOUR per-device quota (default 1000)
	MaxPastSkew   time.Duration // NOISENET_MAX_PAST_SKEW (default 168h; batched uploads arrive late)
	MaxFutureSkew time.Duration // NOISENET_MAX_FUTURE_SKEW (default 2m clock-skew tolerance)
	IngestTimeout time.Duration // NOISENET_INGEST_TIMEOUT (default 5s)

	// Snippet settings
	MaxSnippetMB     int64         // NOISENET_MAX_SNIPPET_MB (default 10)
	SnippetRetention time.Duration // NOISENET_SNIPPET_RETENTION (default 168h)
	SweepInterval    time.Duration // NOISENET_SWEEP_INTERVAL (default 1h; 0 = sweeper disabled)
	Codecs           []string      // NOISENET_CODECS comma-separated (default opus,wav,flac,mp3)

	// Blob storage (S3 or S3-compatible; empty bucket = in-memory, dev only)
	S3Bucket   string // NOISENET_S3_BUCKET
	S3Endpoint string // NOISENET_S3_ENDPOINT (custom endpoint for MinIO)
	S3Region   string // NOISENET_S3_REGION (default "eu-central-1")
	S3Prefix   string // NOISENET_S3_PREFIX (default "snippets/")
}

// fileConfig mirrors Config for the optional TOML file. All fields are
// optional; the environment wins on conflict.
type fileConfig struct {
	DatabaseURL      string   `toml:"database_url"`
	HTTPAddr         string   `toml:"http_addr"`
	NATSURL          string   `toml:"nats_url"`
	AuthToken        string   `toml:"auth_token"`
	EventsPerHour    int      `toml:"events_per_hour"`
	MaxPastSkew      string   `toml:"max_past_skew"`
	MaxFutureSkew    string   `toml:"max_future_skew"`
	IngestTimeout    string   `toml:"ingest_timeout"`
	MaxSnippetMB     int64    `toml:"max_snippet_mb"`
	SnippetRetention string   `toml:"snippet_retention"`
	SweepInterval    string   `toml:"sweep_interval"`
	Codecs           []string `toml:"codecs"`
	S3Bucket         string   `toml:"s3_bucket"`
	S3Endpoint       string   `toml:"s3_endpoint"`
	S3Region         string   `toml:"s3_region"`
	S3Prefix         string   `toml:"s3_prefix"`
}

// Load builds the configuration. When path is non-empty (or NOISENET_CONFIG
// is set) the TOML file there is read first, then environment variables
// override it, then defaults fill the gaps.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("NOISENET_CONFIG")
	}

	var fc fileConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	c := &Config{
		DatabaseURL: envOr("NOISENET_DATABASE_URL", fc.DatabaseURL),
		HTTPAddr:    envOr("NOISENET_HTTP_ADDR", defaultStr(fc.HTTPAddr, ":8080")),
		NATSURL:     envOr("NOISENET_NATS_URL", fc.NATSURL),
		AuthToken:   envOr("NOISENET_AUTH_TOKEN", fc.AuthToken),
		S3Bucket:    envOr("NOISENET_S3_BUCKET", fc.S3Bucket),
		S3Endpoint:  envOr("NOISENET_S3_ENDPOINT", fc.S3Endpoint),
		S3Region:    envOr("NOISENET_S3_REGION", defaultStr(fc.S3Region, "eu-central-1")),
		S3Prefix:    envOr("NOISENET_S3_PREFIX", defaultStr(fc.S3Prefix, "snippets/")),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("NOISENET_DATABASE_URL is required")
	}

	var err error
	if c.EventsPerHour, err = intVal("NOISENET_EVENTS_PER_HOUR", fc.EventsPerHour, 1000); err != nil {
		return nil, err
	}
	if c.EventsPerHour <= 0 {
		return nil, fmt.Errorf("NOISENET_EVENTS_PER_HOUR must be positive, got %d", c.EventsPerHour)
	}
	if c.MaxSnippetMB, err = int64Val("NOISENET_MAX_SNIPPET_MB", fc.MaxSnippetMB, 10); err != nil {
		return nil, err
	}
	if c.MaxPastSkew, err = durationVal("NOISENET_MAX_PAST_SKEW", fc.MaxPastSkew, 168*time.Hour); err != nil {
		return nil, err
	}
	if c.MaxFutureSkew, err = durationVal("NOISENET_MAX_FUTURE_SKEW", fc.MaxFutureSkew, 2*time.Minute); err != nil {
		return nil, err
	}
	if c.IngestTimeout, err = durationVal("NOISENET_INGEST_TIMEOUT", fc.IngestTimeout, 5*time.Second); err != nil {
		return nil, err
	}
	if c.SnippetRetention, err = durationVal("NOISENET_SNIPPET_RETENTION", fc.SnippetRetention, 168*time.Hour); err != nil {
		return nil, err
	}
	if c.SweepInterval, err = durationVal("NOISENET_SWEEP_INTERVAL", fc.SweepInterval, time.Hour); err != nil {
		return nil, err
	}

	c.Codecs = fc.Codecs
	if v := os.Getenv("NOISENET_CODECS"); v != "" {
		c.Codecs = splitList(v)
	}
	if len(c.Codecs) == 0 {
		c.Codecs = []string{"opus", "wav", "flac", "mp3"}
	}

	return c, nil
}

// MaxSnippetBytes returns the snippet size ceiling in bytes.
func (c *Config) MaxSnippetBytes() int64 {
	return c.MaxSnippetMB * 1024 * 1024
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func intVal(key string, fileVal, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return fallback, nil
}

func int64Val(key string, fileVal, fallback int64) (int64, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return n, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return fallback, nil
}

func durationVal(key, fileVal string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		s = fileVal
	}
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
