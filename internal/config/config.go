package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"diaghost/internal/paths"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// SupportedConfigVersions lists schema versions LoadConfig accepts.
var SupportedConfigVersions = []int{1}

// Config represents the complete diaghost configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Workspace        WorkspaceConfig        `json:"workspace" mapstructure:"workspace"`
	Scheduler        SchedulerConfig        `json:"scheduler" mapstructure:"scheduler"`
	Performance      PerformanceConfig      `json:"performance" mapstructure:"performance"`
	Deprioritization DeprioritizationConfig `json:"deprioritization" mapstructure:"deprioritization"`
	Telemetry        TelemetryConfig        `json:"telemetry" mapstructure:"telemetry"`
	Server           ServerConfig           `json:"server" mapstructure:"server"`
	Watcher          WatcherConfig          `json:"watcher" mapstructure:"watcher"`
	Logging          LoggingConfig          `json:"logging" mapstructure:"logging"`
}

// WorkspaceConfig locates the workspace manifest and bounds the snapshot store
type WorkspaceConfig struct {
	Root         string `json:"root" mapstructure:"root"`
	Manifest     string `json:"manifest" mapstructure:"manifest"`
	MaxSnapshots int    `json:"maxSnapshots" mapstructure:"maxSnapshots"`
}

// SchedulerConfig controls analyzer execution
type SchedulerConfig struct {
	MaxAnalyzerParallelism int  `json:"maxAnalyzerParallelism" mapstructure:"maxAnalyzerParallelism"`
	CacheEnabled           bool `json:"cacheEnabled" mapstructure:"cacheEnabled"`
}

// PerformanceConfig controls sampling and the expensive-analyzer report
type PerformanceConfig struct {
	DocumentMinSampleSize int     `json:"documentMinSampleSize" mapstructure:"documentMinSampleSize"`
	SpanMinSampleSize     int     `json:"spanMinSampleSize" mapstructure:"spanMinSampleSize"`
	ReportIntervalSeconds int     `json:"reportIntervalSeconds" mapstructure:"reportIntervalSeconds"`
	MinLocalOutlierFactor float64 `json:"minLocalOutlierFactor" mapstructure:"minLocalOutlierFactor"`
	AverageThresholdMs    float64 `json:"averageThresholdMs" mapstructure:"averageThresholdMs"`
	StddevThresholdMs     float64 `json:"stddevThresholdMs" mapstructure:"stddevThresholdMs"`
	MinAnalyzersForReport int     `json:"minAnalyzersForReport" mapstructure:"minAnalyzersForReport"`
	RetentionDays         int     `json:"retentionDays" mapstructure:"retentionDays"`
}

// DeprioritizationConfig configures the default candidate policy
type DeprioritizationConfig struct {
	AverageThresholdMs float64 `json:"averageThresholdMs" mapstructure:"averageThresholdMs"`
	MaxCandidates      int     `json:"maxCandidates" mapstructure:"maxCandidates"`
	UseSpanStatistics  bool    `json:"useSpanStatistics" mapstructure:"useSpanStatistics"`
}

// TelemetryConfig controls whether the telemetry session starts active
type TelemetryConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr                string `json:"addr" mapstructure:"addr"`
	Compression         bool   `json:"compression" mapstructure:"compression"`
	ReadTimeoutSeconds  int    `json:"readTimeoutSeconds" mapstructure:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `json:"writeTimeoutSeconds" mapstructure:"writeTimeoutSeconds"`
}

// WatcherConfig contains workspace watcher settings
type WatcherConfig struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	PollIntervalMs int      `json:"pollIntervalMs" mapstructure:"pollIntervalMs"`
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`

	// Per-subsystem overrides (empty means use Level)
	Server  string `json:"server,omitempty" mapstructure:"server"`
	Compute string `json:"compute,omitempty" mapstructure:"compute"`

	// Size-based rotation, e.g. "10MB". Empty disables rotation.
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups,omitempty" mapstructure:"maxBackups"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"logging.level":          "DIAGHOST_LOG_LEVEL",
	"logging.format":         "DIAGHOST_LOG_FORMAT",
	"server.addr":            "DIAGHOST_SERVER_ADDR",
	"telemetry.enabled":      "DIAGHOST_TELEMETRY_ENABLED",
	"scheduler.cacheEnabled": "DIAGHOST_CACHE_ENABLED",
}

// EnvBinding is an environment variable that overrides a config key.
type EnvBinding struct {
	Key string `json:"key"`
	Env string `json:"env"`
}

// EnvBindings returns the supported environment overrides sorted by key.
func EnvBindings() []EnvBinding {
	out := make([]EnvBinding, 0, len(envBindings))
	for key, env := range envBindings {
		out = append(out, EnvBinding{Key: key, Env: env})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Workspace: WorkspaceConfig{
			Root:         ".",
			Manifest:     "diaghost.toml",
			MaxSnapshots: 4,
		},
		Scheduler: SchedulerConfig{
			MaxAnalyzerParallelism: 8,
			CacheEnabled:           true,
		},
		Performance: PerformanceConfig{
			DocumentMinSampleSize: 100,
			SpanMinSampleSize:     25,
			ReportIntervalSeconds: 300,
			MinLocalOutlierFactor: 20,
			AverageThresholdMs:    100,
			StddevThresholdMs:     100,
			MinAnalyzersForReport: 5,
			RetentionDays:         30,
		},
		Deprioritization: DeprioritizationConfig{
			AverageThresholdMs: 250,
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr:                "127.0.0.1:7311",
			Compression:         true,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		Watcher: WatcherConfig{
			Enabled:        true,
			PollIntervalMs: 2000,
			DebounceMs:     500,
			IgnorePatterns: []string{".git", "node_modules", "vendor", "*.log"},
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from .diaghost/config.json, falling back to
// defaults for a missing file or missing keys. Bound environment variables win.
func LoadConfig(root string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(paths.DataDir(root))

	v.SetEnvPrefix("DIAGHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to .diaghost/config.json
func (c *Config) Save(root string) error {
	if err := os.MkdirAll(paths.DataDir(root), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Clean(paths.ConfigPath(root)), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	supported := false
	for _, v := range SupportedConfigVersions {
		if c.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	switch {
	case c.Workspace.MaxSnapshots < 1:
		return &ConfigError{Field: "workspace.maxSnapshots", Message: "must be at least 1"}
	case c.Scheduler.MaxAnalyzerParallelism < 1:
		return &ConfigError{Field: "scheduler.maxAnalyzerParallelism", Message: "must be at least 1"}
	case c.Performance.DocumentMinSampleSize < 1:
		return &ConfigError{Field: "performance.documentMinSampleSize", Message: "must be at least 1"}
	case c.Performance.SpanMinSampleSize < 1:
		return &ConfigError{Field: "performance.spanMinSampleSize", Message: "must be at least 1"}
	case c.Performance.ReportIntervalSeconds < 0:
		return &ConfigError{Field: "performance.reportIntervalSeconds", Message: "must not be negative"}
	case c.Deprioritization.MaxCandidates < 0:
		return &ConfigError{Field: "deprioritization.maxCandidates", Message: "must not be negative"}
	case c.Watcher.Enabled && c.Watcher.PollIntervalMs <= 0:
		return &ConfigError{Field: "watcher.pollIntervalMs", Message: "must be positive when the watcher is enabled"}
	case c.Server.Addr == "":
		return &ConfigError{Field: "server.addr", Message: "must not be empty"}
	}

	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
