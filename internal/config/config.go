package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPAddr     string // LNGRAPH_HTTP_ADDR (default ":8080")
	GRPCAddr     string // LNGRAPH_GRPC_ADDR (default ":9090")
	DatabaseURL  string // LNGRAPH_DATABASE_URL (optional, empty = snapshots not stored)
	NATSURL      string // LNGRAPH_NATS_URL (optional, empty = no events)
	AuthToken    string // LNGRAPH_AUTH_TOKEN (optional, empty = auth disabled)
	MaxBodyBytes int64  // LNGRAPH_MAX_BODY_BYTES (default 64 MiB)

	// Periodic import settings
	ImportSource   string        // LNGRAPH_IMPORT_SOURCE (file path, http(s):// or s3:// URI)
	ImportInterval time.Duration // LNGRAPH_IMPORT_INTERVAL (default 0 = disabled)
	ImportWatch    bool          // LNGRAPH_IMPORT_WATCH (re-import a file source when it changes)
	S3Region       string        // LNGRAPH_S3_REGION (default "us-east-1")
	S3Endpoint     string        // LNGRAPH_S3_ENDPOINT (custom endpoint for MinIO)
}

// fileConfig mirrors Config for the optional TOML file named by
// LNGRAPH_CONFIG. Empty values leave the default in place.
type fileConfig struct {
	HTTPAddr       string `toml:"http_addr"`
	GRPCAddr       string `toml:"grpc_addr"`
	DatabaseURL    string `toml:"database_url"`
	NATSURL        string `toml:"nats_url"`
	AuthToken      string `toml:"auth_token"`
	MaxBodyBytes   int64  `toml:"max_body_bytes"`
	ImportSource   string `toml:"import_source"`
	ImportInterval string `toml:"import_interval"`
	ImportWatch    bool   `toml:"import_watch"`
	S3Region       string `toml:"s3_region"`
	S3Endpoint     string `toml:"s3_endpoint"`
}

const defaultMaxBodyBytes = 64 << 20

func defaults() fileConfig {
	return fileConfig{
		HTTPAddr:       ":8080",
		GRPCAddr:       ":9090",
		MaxBodyBytes:   defaultMaxBodyBytes,
		ImportInterval: "0s",
		S3Region:       "us-east-1",
	}
}

// Load builds the configuration from defaults, then the TOML file named by
// LNGRAPH_CONFIG (if set), then LNGRAPH_* environment variables.
func Load() (*Config, error) {
	fc := defaults()
	if path := os.Getenv("LNGRAPH_CONFIG"); path != "" {
		var file fileConfig
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("LNGRAPH_CONFIG %s: %w", path, err)
		}
		fc.merge(file)
	}

	c := &Config{
		HTTPAddr:     envOrDefault("LNGRAPH_HTTP_ADDR", fc.HTTPAddr),
		GRPCAddr:     envOrDefault("LNGRAPH_GRPC_ADDR", fc.GRPCAddr),
		DatabaseURL:  envOrDefault("LNGRAPH_DATABASE_URL", fc.DatabaseURL),
		NATSURL:      envOrDefault("LNGRAPH_NATS_URL", fc.NATSURL),
		AuthToken:    envOrDefault("LNGRAPH_AUTH_TOKEN", fc.AuthToken),
		ImportSource: envOrDefault("LNGRAPH_IMPORT_SOURCE", fc.ImportSource),
		S3Region:     envOrDefault("LNGRAPH_S3_REGION", fc.S3Region),
		S3Endpoint:   envOrDefault("LNGRAPH_S3_ENDPOINT", fc.S3Endpoint),
		MaxBodyBytes: fc.MaxBodyBytes,
	}

	if v := os.Getenv("LNGRAPH_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LNGRAPH_MAX_BODY_BYTES: %w", err)
		}
		c.MaxBodyBytes = n
	}
	if c.MaxBodyBytes <= 0 {
		return nil, fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}

	intervalStr := envOrDefault("LNGRAPH_IMPORT_INTERVAL", fc.ImportInterval)
	d, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("LNGRAPH_IMPORT_INTERVAL: %w", err)
	}
	if d < 0 {
		return nil, fmt.Errorf("LNGRAPH_IMPORT_INTERVAL: negative interval %s", d)
	}
	c.ImportInterval = d
	if c.ImportInterval > 0 && c.ImportSource == "" {
		return nil, fmt.Errorf("LNGRAPH_IMPORT_SOURCE is required when LNGRAPH_IMPORT_INTERVAL is set")
	}

	c.ImportWatch = fc.ImportWatch
	if v := os.Getenv("LNGRAPH_IMPORT_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LNGRAPH_IMPORT_WATCH: %w", err)
		}
		c.ImportWatch = b
	}
	if c.ImportWatch && c.ImportSource == "" {
		return nil, fmt.Errorf("LNGRAPH_IMPORT_SOURCE is required when LNGRAPH_IMPORT_WATCH is set")
	}

	return c, nil
}

// merge copies the non-empty values of o into fc.
func (fc *fileConfig) merge(o fileConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&fc.HTTPAddr, o.HTTPAddr)
	set(&fc.GRPCAddr, o.GRPCAddr)
	set(&fc.DatabaseURL, o.DatabaseURL)
	set(&fc.NATSURL, o.NATSURL)
	set(&fc.AuthToken, o.AuthToken)
	set(&fc.ImportSource, o.ImportSource)
	set(&fc.ImportInterval, o.ImportInterval)
	set(&fc.S3Region, o.S3Region)
	set(&fc.S3Endpoint, o.S3Endpoint)
	if o.MaxBodyBytes != 0 {
		fc.MaxBodyBytes = o.MaxBodyBytes
	}
	if o.ImportWatch {
		fc.ImportWatch = true
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
