// Package config loads application configuration with layered sources:
// built-in defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces all environment overrides, e.g.
// NEUROCANVAS_SERVER_LISTEN_ADDR -> server.listen_addr.
const EnvPrefix = "NEUROCANVAS_"

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/neurocanvas/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "NEUROCANVAS_CONFIG_PATH"

// Config holds all application settings. Immutable after Load and safe for
// concurrent reads.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Memory   MemoryConfig   `koanf:"memory"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	WebSocket       bool          `koanf:"websocket"`
}

// DatabaseConfig configures the sqlite backend.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// MemoryConfig tunes the memory banks.
type MemoryConfig struct {
	VectorDim       int           `koanf:"vector_dim"`
	Capacity        int           `koanf:"capacity"`
	NeighborK       int           `koanf:"neighbor_k"`
	RecencyHalfLife time.Duration `koanf:"recency_half_life"`
}

// SecurityConfig configures request authentication.
type SecurityConfig struct {
	JWTSecret   string   `koanf:"jwt_secret"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
			WebSocket:       true,
		},
		Database: DatabaseConfig{
			Path: "neurocanvas.db",
		},
		Memory: MemoryConfig{
			VectorDim:       768,
			Capacity:        10000,
			NeighborK:       20,
			RecencyHalfLife: 7 * 24 * time.Hour,
		},
		Security: SecurityConfig{
			JWTSecret:   "dev-secret-change-in-production",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration: defaults, then an optional YAML file, then
// NEUROCANVAS_* environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the memory subsystem cannot run with.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Memory.VectorDim <= 0 {
		return fmt.Errorf("memory.vector_dim must be positive")
	}
	if c.Memory.Capacity <= 0 {
		return fmt.Errorf("memory.capacity must be positive")
	}
	if c.Memory.NeighborK <= 0 {
		return fmt.Errorf("memory.neighbor_k must be positive")
	}
	if c.Memory.RecencyHalfLife <= 0 {
		return fmt.Errorf("memory.recency_half_life must be positive")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps NEUROCANVAS_SERVER_LISTEN_ADDR to server.listen_addr:
// strip the prefix, lowercase, and turn the first underscore into the
// section separator. All sections are single words, so one split suffices.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths lists fields parsed from comma-separated env strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
