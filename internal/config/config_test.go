package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dotheat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := load("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
db: /tmp/heat.db
remote:
  url: https://kv.example.com
  token: abc
  base_delay: 250ms
session:
  max_cells: 10
  sync_chunk_size: 5
serve:
  rows: 4
  cols: 6
`)
	cfg, err := load(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/heat.db", cfg.DB)
	assert.Equal(t, "https://kv.example.com", cfg.Remote.URL)
	assert.Equal(t, "abc", cfg.Remote.Token)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout, "unset fields keep defaults")
	assert.Equal(t, 10, cfg.Session.MaxCells)
	assert.Equal(t, 5, cfg.Session.SyncChunkSize)
	assert.Equal(t, 4, cfg.Serve.Rows)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := load(writeFile(t, ""), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "db: from-file.db\nsession:\n  max_cells: 10\n")
	cfg, err := load(path, map[string]string{
		"DOTHEAT_DB":          "from-env.db",
		"DOTHEAT_FLUSH_DELAY": "5s",
		"DOTHEAT_KV_REDIS":    "localhost:6379",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
	assert.Equal(t, 10, cfg.Session.MaxCells, "file value survives when env is unset")
	assert.Equal(t, 5*time.Second, cfg.Session.FlushDelay)
	assert.Equal(t, "localhost:6379", cfg.KV.Redis)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	_, err := load(writeFile(t, "sesion:\n  max_cells: 3\n"), map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_BadEnvValue(t *testing.T) {
	_, err := load("", map[string]string{"DOTHEAT_MAX_CELLS": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"chunk too small", func(c *Config) { c.Session.SyncChunkSize = 2 }, "sync_chunk_size 2 out of range"},
		{"chunk too large", func(c *Config) { c.Session.SyncChunkSize = 6 }, "sync_chunk_size 6 out of range"},
		{"no db", func(c *Config) { c.DB = "" }, "db path is required"},
		{"bad url", func(c *Config) { c.Remote.URL = "ftp://x" }, "remote.url"},
		{"no attempts", func(c *Config) { c.Remote.MaxAttempts = 0 }, "max_attempts"},
		{"no cells", func(c *Config) { c.Session.MaxCells = 0 }, "max_cells"},
		{"zero timeout", func(c *Config) { c.Session.SyncTimeout = 0 }, "sync_timeout"},
		{"empty grid", func(c *Config) { c.Serve.Cols = 0 }, "serve.rows and serve.cols"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ChunkBounds(t *testing.T) {
	for _, n := range []int{3, 4, 5} {
		cfg := Default()
		cfg.Session.SyncChunkSize = n
		assert.NoError(t, cfg.Validate(), "chunk size %d", n)
	}
}
