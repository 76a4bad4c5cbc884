// Package config loads dotheat settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, DOTHEAT_*
// environment variables, command-line flags (applied by the CLI).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full dotheat configuration.
type Config struct {
	// DB is the path of the local SQLite cache.
	DB string `yaml:"db" env:"DOTHEAT_DB"`

	Remote  Remote  `yaml:"remote"`
	Session Session `yaml:"session"`
	Serve   Serve   `yaml:"serve"`
	KV      KV      `yaml:"kv"`
}

// Remote configures the remote counter service client.
type Remote struct {
	URL              string        `yaml:"url" env:"DOTHEAT_REMOTE_URL"`
	Token            string        `yaml:"token" env:"DOTHEAT_REMOTE_TOKEN"`
	Timeout          time.Duration `yaml:"timeout" env:"DOTHEAT_REMOTE_TIMEOUT"`
	MaxAttempts      int           `yaml:"max_attempts" env:"DOTHEAT_REMOTE_MAX_ATTEMPTS"`
	BaseDelay        time.Duration `yaml:"base_delay" env:"DOTHEAT_REMOTE_BASE_DELAY"`
	FailureThreshold int           `yaml:"failure_threshold" env:"DOTHEAT_REMOTE_FAILURE_THRESHOLD"`
}

// Session configures the heatmap session.
type Session struct {
	MaxCells       int           `yaml:"max_cells" env:"DOTHEAT_MAX_CELLS"`
	FlushDelay     time.Duration `yaml:"flush_delay" env:"DOTHEAT_FLUSH_DELAY"`
	SyncChunkSize  int           `yaml:"sync_chunk_size" env:"DOTHEAT_SYNC_CHUNK_SIZE"`
	SyncChunkDelay time.Duration `yaml:"sync_chunk_delay" env:"DOTHEAT_SYNC_CHUNK_DELAY"`
	SyncTimeout    time.Duration `yaml:"sync_timeout" env:"DOTHEAT_SYNC_TIMEOUT"`
}

// Serve configures the session HTTP surface.
type Serve struct {
	Addr string `yaml:"addr" env:"DOTHEAT_SERVE_ADDR"`
	Rows int    `yaml:"rows" env:"DOTHEAT_ROWS"`
	Cols int    `yaml:"cols" env:"DOTHEAT_COLS"`
}

// KV configures the bundled remote counter service.
type KV struct {
	Addr  string `yaml:"addr" env:"DOTHEAT_KV_ADDR"`
	Redis string `yaml:"redis" env:"DOTHEAT_KV_REDIS"`
	Token string `yaml:"token" env:"DOTHEAT_KV_TOKEN"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DB: "dotheat.db",
		Remote: Remote{
			URL:              "http://127.0.0.1:8081",
			Timeout:          10 * time.Second,
			MaxAttempts:      3,
			BaseDelay:        500 * time.Millisecond,
			FailureThreshold: 3,
		},
		Session: Session{
			MaxCells:       60,
			FlushDelay:     2 * time.Second,
			SyncChunkSize:  4,
			SyncChunkDelay: 100 * time.Millisecond,
			SyncTimeout:    3 * time.Second,
		},
		Serve: Serve{Addr: ":8080", Rows: 20, Cols: 30},
		KV:    KV{Addr: ":8081"},
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty), and the process environment.
func Load(path string) (Config, error) {
	return load(path, nil)
}

// load takes an explicit environment for tests; nil means os.Environ.
func load(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(cfg); err != nil {
		// An empty file decodes to io.EOF; keep the defaults.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate rejects settings the session cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}

	if u, err := url.Parse(c.Remote.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("remote.url %q must be an http(s) URL", c.Remote.URL))
	}
	if c.Remote.Timeout <= 0 {
		errs = append(errs, errors.New("remote.timeout must be positive"))
	}
	if c.Remote.MaxAttempts < 1 {
		errs = append(errs, errors.New("remote.max_attempts must be at least 1"))
	}
	if c.Remote.BaseDelay <= 0 {
		errs = append(errs, errors.New("remote.base_delay must be positive"))
	}
	if c.Remote.FailureThreshold < 1 {
		errs = append(errs, errors.New("remote.failure_threshold must be at least 1"))
	}

	if c.Session.MaxCells < 1 {
		errs = append(errs, errors.New("session.max_cells must be at least 1"))
	}
	if c.Session.FlushDelay <= 0 {
		errs = append(errs, errors.New("session.flush_delay must be positive"))
	}
	if c.Session.SyncChunkSize < 3 || c.Session.SyncChunkSize > 5 {
		errs = append(errs, fmt.Errorf("session.sync_chunk_size %d out of range 3-5", c.Session.SyncChunkSize))
	}
	if c.Session.SyncChunkDelay < 0 {
		errs = append(errs, errors.New("session.sync_chunk_delay must not be negative"))
	}
	if c.Session.SyncTimeout <= 0 {
		errs = append(errs, errors.New("session.sync_timeout must be positive"))
	}

	if c.Serve.Rows < 1 || c.Serve.Cols < 1 {
		errs = append(errs, errors.New("serve.rows and serve.cols must be at least 1"))
	}
	return errors.Join(errs...)
}
