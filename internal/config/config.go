// Package config loads confsnap's YAML configuration file
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendFS     = "fs"
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Fetcher modes
const (
	FetcherSimulated = "simulated"
	FetcherDirectory = "directory"
)

// ErrInvalid indicates a configuration that cannot be used.
var ErrInvalid = errors.New("config: invalid")

// Config is the full process configuration.
type Config struct {
	Store     StoreConfig   `yaml:"store"`
	Cache     CacheConfig   `yaml:"cache"`
	Backup    BackupConfig  `yaml:"backup"`
	Fetcher   FetcherConfig `yaml:"fetcher"`
	Inventory string        `yaml:"inventory"` // empty for the built-in lab
	Log       LogConfig     `yaml:"log"`
	Server    ServerConfig  `yaml:"server"`
}

// StoreConfig selects and configures the snapshot backend.
type StoreConfig struct {
	Backend string   `yaml:"backend"`
	Path    string   `yaml:"path"`
	S3      S3Config `yaml:"s3"`
}

// S3Config locates the bucket for the s3 backend.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// CacheConfig enables the memcached content cache when servers are listed.
type CacheConfig struct {
	Servers []string      `yaml:"servers"`
	Prefix  string        `yaml:"prefix"`
	Timeout time.Duration `yaml:"timeout"`
}

// BackupConfig tunes backup sessions.
type BackupConfig struct {
	Concurrency  int           `yaml:"concurrency"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	FetchRate    float64       `yaml:"fetch_rate"` // fetches per second, 0 for unlimited
}

// FetcherConfig selects where configurations come from.
type FetcherConfig struct {
	Mode string `yaml:"mode"`
	Dir  string `yaml:"dir"`
}

// LogConfig mirrors logger.Config.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig holds listener ports for serve mode.
type ServerConfig struct {
	GrpcPort    int `yaml:"grpc_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// Default returns a configuration that runs the simulated lab into ./backups.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendFS,
			Path:    "backups",
		},
		Cache: CacheConfig{
			Prefix:  "confsnap:",
			Timeout: 100 * time.Millisecond,
		},
		Backup: BackupConfig{
			Concurrency:  4,
			FetchTimeout: 30 * time.Second,
		},
		Fetcher: FetcherConfig{
			Mode: FetcherSimulated,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Server: ServerConfig{
			GrpcPort:    50051,
			MetricsPort: 9090,
		},
	}
}

// Load reads path over the defaults. A missing path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field combinations.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFS:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the fs backend", ErrInvalid)
		}
	case BackendMemory:
	case BackendS3:
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("%w: store.s3.bucket is required for the s3 backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalid, c.Store.Backend)
	}

	switch c.Fetcher.Mode {
	case FetcherSimulated:
	case FetcherDirectory:
		if c.Fetcher.Dir == "" {
			return fmt.Errorf("%w: fetcher.dir is required in directory mode", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown fetcher.mode %q", ErrInvalid, c.Fetcher.Mode)
	}

	if c.Backup.Concurrency < 1 {
		return fmt.Errorf("%w: backup.concurrency must be at least 1", ErrInvalid)
	}
	if c.Backup.FetchTimeout < 0 || c.Backup.FetchRate < 0 {
		return fmt.Errorf("%w: backup timeouts and rates cannot be negative", ErrInvalid)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level)
	}

	for name, port := range map[string]int{"grpc_port": c.Server.GrpcPort, "metrics_port": c.Server.MetricsPort} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%w: server.%s %d out of range", ErrInvalid, name, port)
		}
	}
	return nil
}
