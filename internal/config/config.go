// Package config loads and validates the shaderbuild configuration: the
// backend capability/latency model, the shader manifest, program groups, and
// the ambient logging/daemon/history settings.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Backend  BackendConfig   `yaml:"backend"`
	Shaders  []ShaderConfig  `yaml:"shaders"`
	Programs []ProgramConfig `yaml:"programs,omitempty"`
	Logging  LoggingConfig   `yaml:"logging,omitempty"`
	Daemon   DaemonConfig    `yaml:"daemon,omitempty"`
	History  HistoryConfig   `yaml:"history,omitempty"`
}

// BackendConfig describes the device the builds run against. The simulated
// device derives its capabilities and latencies from here; a real driver
// would ignore the latency knobs.
type BackendConfig struct {
	// Async requests asynchronous builds. Effective only when the device
	// also reports async compilation support.
	Async bool `yaml:"async"`

	// AsyncCompilation and SeparablePrograms model the device capabilities.
	AsyncCompilation  bool `yaml:"async_compilation"`
	SeparablePrograms bool `yaml:"separable_programs"`

	// CompileLatency/LinkLatency are simulated completion latencies in
	// poll counts.
	CompileLatency int `yaml:"compile_latency,omitempty"`
	LinkLatency    int `yaml:"link_latency,omitempty"`

	// PollInterval is the cadence of the build polling loop (duration
	// string, default 10ms).
	PollInterval string `yaml:"poll_interval,omitempty"`
}

// ShaderConfig is one entry of the shader manifest.
type ShaderConfig struct {
	Name    string `yaml:"name"`
	Stage   string `yaml:"stage"`
	File    string `yaml:"file"`
	Dialect string `yaml:"dialect,omitempty"` // glsl (default) or hlsl

	// LoadConstantBuffers requests uniform buffer layout reflection.
	LoadConstantBuffers bool `yaml:"load_constant_buffers,omitempty"`
}

// ProgramConfig declares a jointly linked program over named shaders.
type ProgramConfig struct {
	Name    string   `yaml:"name"`
	Shaders []string `yaml:"shaders"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

// DaemonConfig controls watch mode.
type DaemonConfig struct {
	// WatchPaths are directories observed for shader source changes.
	WatchPaths []string `yaml:"watch_paths,omitempty"`

	// Debounce coalesces rapid file events (duration string, default 500ms).
	Debounce string `yaml:"debounce,omitempty"`

	// RebuildInterval triggers periodic full rebuilds (duration string,
	// empty disables).
	RebuildInterval string `yaml:"rebuild_interval,omitempty"`

	// MetricsAddr serves Prometheus metrics when set (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// HistoryConfig controls the build record store.
type HistoryConfig struct {
	// Path is the SQLite database file; empty disables history recording.
	Path string `yaml:"path,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env files if present; existing process env wins.
	if err := godotenv.Load(".env", ".env.local"); err != nil {
		// Don't fail if .env doesn't exist.
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals, defaults, and validates a raw configuration document.
// Environment variables in the document are expanded before parsing.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
