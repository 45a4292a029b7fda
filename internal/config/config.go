// Package config provides configuration types and defaults for imeidesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imeidesk/internal/log"
)

// Config holds all configuration options for imeidesk.
type Config struct {
	AutoRefresh bool           `mapstructure:"auto_refresh"`
	DebounceMs  int            `mapstructure:"debounce_ms"` // verification debounce while typing
	UI          UIConfig       `mapstructure:"ui"`
	Operator    OperatorConfig `mapstructure:"operator"`
	Registry    RegistryConfig `mapstructure:"registry"`
	Scan        ScanConfig     `mapstructure:"scan"`
	Tracing     TracingConfig  `mapstructure:"tracing"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	ShowStatusBar bool   `mapstructure:"show_status_bar"`
	MarkdownStyle string `mapstructure:"markdown_style"` // "dark" (default) or "light"
	ToastTimeout  int    `mapstructure:"toast_timeout"`  // seconds a toast stays visible
}

// OperatorConfig identifies the person running the desk session.
type OperatorConfig struct {
	// Role determines which actions are available.
	// Valid values: "admin", "agent", "viewer"
	Role string `mapstructure:"role"`

	// Company is the operator's home company ID. Agents may only
	// register devices against this company.
	Company string `mapstructure:"company"`
}

// RegistryConfig holds registry backend configuration.
type RegistryConfig struct {
	// Mode selects the registry backend.
	// Valid values: "http", "local"
	Mode string `mapstructure:"mode"`

	// Endpoint is the base URL for the "http" backend.
	// Default: "http://localhost:8021"
	Endpoint string `mapstructure:"endpoint"`

	// TimeoutMs bounds each registry request in milliseconds.
	// Default: 5000
	TimeoutMs int `mapstructure:"timeout_ms"`

	// LocalPath is the SQLite database path for the "local" backend.
	// Default: ~/.config/imeidesk/registry.db
	LocalPath string `mapstructure:"local_path"`

	// CacheTTLMs bounds how long person lists are served from cache.
	// Default: 600000 (10 minutes)
	CacheTTLMs int `mapstructure:"cache_ttl_ms"`
}

// ScanConfig holds camera scanning configuration.
type ScanConfig struct {
	// Binary is the decoder executable. Default: "zbarcam"
	Binary string `mapstructure:"binary"`

	// Facing selects the preferred camera.
	// Valid values: "rear" (default), "front"
	Facing string `mapstructure:"facing"`

	// RearDevice and FrontDevice map facings to video device paths.
	// An unset device falls back to the decoder's own default.
	RearDevice  string `mapstructure:"rear_device"`
	FrontDevice string `mapstructure:"front_device"`

	// MinDecodeIntervalMs drops decodes arriving faster than this.
	// Default: 100
	MinDecodeIntervalMs int `mapstructure:"min_decode_interval_ms"`

	// SettleMs is how long a newly opened stream may emit stale frames
	// that the scanner should ignore. Default: 300
	SettleMs int `mapstructure:"settle_ms"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/imeidesk/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Timeout returns the registry request timeout as a duration.
func (r RegistryConfig) Timeout() time.Duration {
	if r.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.TimeoutMs) * time.Millisecond
}

// CacheTTL returns the person cache TTL as a duration.
func (r RegistryConfig) CacheTTL() time.Duration {
	if r.CacheTTLMs <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(r.CacheTTLMs) * time.Millisecond
}

// Device returns the configured device path for the given facing.
// The facing is a preference, not a guarantee: when the preferred
// path is unset the other facing's path is used, and when neither is
// configured the decoder picks its own device.
func (s ScanConfig) Device(facing string) string {
	switch facing {
	case "front":
		if s.FrontDevice != "" {
			return s.FrontDevice
		}
		return s.RearDevice
	default:
		if s.RearDevice != "" {
			return s.RearDevice
		}
		return s.FrontDevice
	}
}

// MinDecodeInterval returns the decode rate limit as a duration.
func (s ScanConfig) MinDecodeInterval() time.Duration {
	if s.MinDecodeIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.MinDecodeIntervalMs) * time.Millisecond
}

// Settle returns the stream settle period as a duration.
func (s ScanConfig) Settle() time.Duration {
	if s.SettleMs <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(s.SettleMs) * time.Millisecond
}

// Debounce returns the typing debounce as a duration.
func (c Config) Debounce() time.Duration {
	if c.DebounceMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// DefaultLocalRegistryPath returns the default SQLite path for the local backend.
// Returns ~/.config/imeidesk/registry.db or empty string if home dir unavailable.
func DefaultLocalRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "imeidesk", "registry.db")
}

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/imeidesk/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "imeidesk", "traces", "traces.jsonl")
}

// ValidateOperator checks operator configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateOperator(op OperatorConfig) error {
	switch op.Role {
	case "", "admin", "agent", "viewer":
	default:
		return fmt.Errorf("operator.role must be \"admin\", \"agent\", or \"viewer\", got %q", op.Role)
	}

	// Agents need a home company to register against
	if op.Role == "agent" && op.Company == "" {
		return fmt.Errorf("operator.company is required when operator.role is \"agent\"")
	}

	return nil
}

// ValidateRegistry checks registry configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateRegistry(reg RegistryConfig) error {
	switch reg.Mode {
	case "", "http", "local":
	default:
		return fmt.Errorf("registry.mode must be \"http\" or \"local\", got %q", reg.Mode)
	}

	if reg.Mode == "http" && reg.Endpoint == "" {
		return fmt.Errorf("registry.endpoint is required when registry.mode is \"http\"")
	}

	if reg.TimeoutMs < 0 {
		return fmt.Errorf("registry.timeout_ms must be non-negative, got %d", reg.TimeoutMs)
	}

	return nil
}

// ValidateScan checks scan configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateScan(scan ScanConfig) error {
	switch scan.Facing {
	case "", "rear", "front":
	default:
		return fmt.Errorf("scan.facing must be \"rear\" or \"front\", got %q", scan.Facing)
	}

	if scan.MinDecodeIntervalMs < 0 {
		return fmt.Errorf("scan.min_decode_interval_ms must be non-negative, got %d", scan.MinDecodeIntervalMs)
	}

	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}

		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// Validate checks the full configuration for errors.
func Validate(cfg Config) error {
	if err := ValidateOperator(cfg.Operator); err != nil {
		return err
	}
	if err := ValidateRegistry(cfg.Registry); err != nil {
		return err
	}
	if err := ValidateScan(cfg.Scan); err != nil {
		return err
	}
	return ValidateTracing(cfg.Tracing)
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		AutoRefresh: true,
		DebounceMs:  500,
		UI: UIConfig{
			ShowStatusBar: true,
			MarkdownStyle: "dark",
			ToastTimeout:  4,
		},
		Operator: OperatorConfig{
			Role: "agent",
		},
		Registry: RegistryConfig{
			Mode:       "local",
			Endpoint:   "http://localhost:8021",
			TimeoutMs:  5000,
			LocalPath:  DefaultLocalRegistryPath(),
			CacheTTLMs: 600000,
		},
		Scan: ScanConfig{
			Binary:              "zbarcam",
			Facing:              "rear",
			MinDecodeIntervalMs: 100,
			SettleMs:            300,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "", // Derived from config dir at runtime
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# imeidesk Configuration

# Auto-refresh person lists when the local registry changes
auto_refresh: true

# How long to wait after the last keystroke before verifying (milliseconds)
debounce_ms: 500

# UI settings
ui:
  show_status_bar: true   # Show status bar at bottom
  # markdown_style: dark  # Markdown rendering style: "dark" (default) or "light"
  toast_timeout: 4        # Seconds a toast notification stays visible

# Operator identity
operator:
  # Role determines available actions:
  #   admin  - register devices against any company
  #   agent  - register devices against the home company only
  #   viewer - verify only, no registration
  role: agent
  # Home company ID (required for agents)
  # company: acme-telecom

# Registry backend
registry:
  # Backend: "local" (default, embedded SQLite) or "http" (remote service)
  mode: local

  # Base URL for the http backend
  # endpoint: http://localhost:8021

  # Request timeout in milliseconds
  timeout_ms: 5000

  # SQLite database path for the local backend
  # local_path: ~/.config/imeidesk/registry.db

  # Person list cache TTL in milliseconds (default: 10 minutes)
  cache_ttl_ms: 600000

# Camera scanning
scan:
  # Decoder executable on PATH
  binary: zbarcam

  # Preferred camera: "rear" (default) or "front"
  facing: rear

  # Video device paths per facing (optional; decoder default when unset)
  # rear_device: /dev/video0
  # front_device: /dev/video1

  # Drop decodes arriving faster than this (milliseconds)
  min_decode_interval_ms: 100

  # Ignore frames for this long after a stream opens (milliseconds)
  settle_ms: 300

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/imeidesk/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	// Create parent directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Write the template
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
