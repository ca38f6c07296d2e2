package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 768, cfg.Memory.VectorDim)
	assert.Equal(t, 10000, cfg.Memory.Capacity)
	assert.Equal(t, 20, cfg.Memory.NeighborK)
	assert.Equal(t, 7*24*time.Hour, cfg.Memory.RecencyHalfLife)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEUROCANVAS_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("NEUROCANVAS_MEMORY_CAPACITY", "50")
	t.Setenv("NEUROCANVAS_LOGGING_LEVEL", "debug")
	t.Setenv("NEUROCANVAS_SECURITY_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
	assert.Equal(t, 50, cfg.Memory.Capacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_addr: ":7070"
memory:
  vector_dim: 128
`), 0o644))
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.ListenAddr)
	assert.Equal(t, 128, cfg.Memory.VectorDim)
	// Untouched keys keep defaults.
	assert.Equal(t, 10000, cfg.Memory.Capacity)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"zero vector dim", func(c *Config) { c.Memory.VectorDim = 0 }},
		{"zero capacity", func(c *Config) { c.Memory.Capacity = 0 }},
		{"zero neighbor k", func(c *Config) { c.Memory.NeighborK = 0 }},
		{"zero half-life", func(c *Config) { c.Memory.RecencyHalfLife = 0 }},
		{"empty jwt secret", func(c *Config) { c.Security.JWTSecret = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "server.listen_addr", envTransform("NEUROCANVAS_SERVER_LISTEN_ADDR"))
	assert.Equal(t, "memory.recency_half_life", envTransform("NEUROCANVAS_MEMORY_RECENCY_HALF_LIFE"))
}
