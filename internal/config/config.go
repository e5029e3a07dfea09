package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/dispatch"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the complete edgeshift configuration
type Config struct {
	Dispatch DispatchConfig   `mapstructure:"dispatch"`
	Scoring  dispatch.Scoring `mapstructure:"scoring"`
	Executor ExecutorConfig   `mapstructure:"executor"`
	Sync     SyncConfig       `mapstructure:"sync"`
	Remote   RemoteConfig     `mapstructure:"remote"`
	Device   DeviceConfig     `mapstructure:"device"`
	Store    StoreConfig      `mapstructure:"store"`
	Logging  LoggingConfig    `mapstructure:"logging"`
}

// DispatchConfig controls the local/remote decision and local retries
type DispatchConfig struct {
	// MaxRetries is the number of local attempts before falling back to remote (default: 3)
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoff is multiplied by the attempt number between attempts (default: 100ms)
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// LocalKinds are glob patterns for task kinds that favor local execution.
	// '*' does not cross '.', so "image.*" matches "image.resize" but not "image.a.b".
	LocalKinds []string `mapstructure:"local_kinds"`
	// RemoteKinds are glob patterns for task kinds that favor remote execution
	RemoteKinds []string `mapstructure:"remote_kinds"`
}

// ExecutorConfig controls local execution and the result cache
type ExecutorConfig struct {
	// MaxConcurrent caps simultaneous local executions; 0 derives it from the
	// device benchmark (>=70: 4, >=30: 2, else 1)
	MaxConcurrent int `mapstructure:"max_concurrent"`
	// CacheTTL is how long a cached result is served (default: 24h)
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// MaxCacheSize bounds the cache and the execution history (default: 100)
	MaxCacheSize int `mapstructure:"max_cache_size"`
	// CleanupInterval is the period of cache cleanup (default: 1h)
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// ResourceCPUCeiling defers new work above this CPU percentage while
	// another task is running; 0 disables (default: 90)
	ResourceCPUCeiling float64 `mapstructure:"resource_cpu_ceiling"`
	// ResourceMemCeiling is the memory counterpart of ResourceCPUCeiling (default: 90)
	ResourceMemCeiling float64 `mapstructure:"resource_mem_ceiling"`
}

// SyncConfig controls pushing offline results to the remote service
type SyncConfig struct {
	// Enabled turns on the periodic and reconnect-triggered sync (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Interval is the timer period (default: 30s)
	Interval time.Duration `mapstructure:"interval"`
}

// RemoteConfig describes the remote service
type RemoteConfig struct {
	// URL is the service root; empty disables remote execution and sync
	URL string `mapstructure:"url"`
	// Timeout bounds each remote call (default: 10s)
	Timeout time.Duration `mapstructure:"timeout"`
	// Token is sent as a bearer token when set. Prefer EDGESHIFT_REMOTE_TOKEN.
	Token string `mapstructure:"token"`
}

// DeviceConfig seeds and refreshes the device status
type DeviceConfig struct {
	// PollHost samples host CPU and memory usage (default: true)
	PollHost bool `mapstructure:"poll_host"`
	// PollInterval is the host sampling period (default: 10s)
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// TelemetryFile is a YAML file watched for network and battery readings
	TelemetryFile string `mapstructure:"telemetry_file"`
	// NetworkKind is the initial network kind: wifi, 4g, 3g, 2g or unknown
	NetworkKind string `mapstructure:"network_kind"`
	// Connected is the initial connectivity (default: true)
	Connected bool `mapstructure:"connected"`
	// NetworkSpeedKbps is the initial link speed (default: 1000)
	NetworkSpeedKbps float64 `mapstructure:"network_speed_kbps"`
	// BatteryPct is the initial battery level (default: 100)
	BatteryPct float64 `mapstructure:"battery_pct"`
	// BenchmarkLevel is the device performance score, 0-100; 0 derives it
	// from the CPU core count when PollHost is on
	BenchmarkLevel float64 `mapstructure:"benchmark_level"`
}

// StoreConfig controls where the cache and pending set are persisted
type StoreConfig struct {
	// Backend is "file" or "memory" (default: "file")
	Backend string `mapstructure:"backend"`
	// Dir is the file store directory. Empty uses <config dir>/state.
	// Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	// Enabled controls whether logs are written to a file (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory. Empty uses <config dir>/logs.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAgeDays removes rotated files older than this; 0 keeps them (default: 0)
	MaxAgeDays int `mapstructure:"max_age_days"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress"`
}

// ResolveDir returns the store directory with ~ expanded and the default applied.
func (s *StoreConfig) ResolveDir() string {
	if s.Dir == "" {
		return filepath.Join(ConfigDir(), "state")
	}
	return expandHome(s.Dir)
}

// ResolveDir returns the log directory with ~ expanded and the default applied.
func (l *LoggingConfig) ResolveDir() string {
	if l.Dir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return expandHome(l.Dir)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			LocalKinds:   []string{},
			RemoteKinds:  []string{},
		},
		Scoring: dispatch.DefaultScoring(),
		Executor: ExecutorConfig{
			MaxConcurrent:      0, // Derived from the benchmark tier
			CacheTTL:           24 * time.Hour,
			MaxCacheSize:       100,
			CleanupInterval:    time.Hour,
			ResourceCPUCeiling: 90,
			ResourceMemCeiling: 90,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
		Remote: RemoteConfig{
			URL:     "",
			Timeout: 10 * time.Second,
		},
		Device: DeviceConfig{
			PollHost:         true,
			PollInterval:     10 * time.Second,
			NetworkKind:      "unknown",
			Connected:        true,
			NetworkSpeedKbps: 1000,
			BatteryPct:       100,
			BenchmarkLevel:   0,
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Store backends
const (
	StoreBackendFile   = "file"
	StoreBackendMemory = "memory"
)

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Dispatch defaults
	viper.SetDefault("dispatch.max_retries", defaults.Dispatch.MaxRetries)
	viper.SetDefault("dispatch.retry_backoff", defaults.Dispatch.RetryBackoff)
	viper.SetDefault("dispatch.local_kinds", defaults.Dispatch.LocalKinds)
	viper.SetDefault("dispatch.remote_kinds", defaults.Dispatch.RemoteKinds)

	// Scoring defaults, one key per weight
	for key, value := range scoringDefaults(defaults.Scoring) {
		viper.SetDefault("scoring."+key, value)
	}

	// Executor defaults
	viper.SetDefault("executor.max_concurrent", defaults.Executor.MaxConcurrent)
	viper.SetDefault("executor.cache_ttl", defaults.Executor.CacheTTL)
	viper.SetDefault("executor.max_cache_size", defaults.Executor.MaxCacheSize)
	viper.SetDefault("executor.cleanup_interval", defaults.Executor.CleanupInterval)
	viper.SetDefault("executor.resource_cpu_ceiling", defaults.Executor.ResourceCPUCeiling)
	viper.SetDefault("executor.resource_mem_ceiling", defaults.Executor.ResourceMemCeiling)

	// Sync defaults
	viper.SetDefault("sync.enabled", defaults.Sync.Enabled)
	viper.SetDefault("sync.interval", defaults.Sync.Interval)

	// Remote defaults
	viper.SetDefault("remote.url", defaults.Remote.URL)
	viper.SetDefault("remote.timeout", defaults.Remote.Timeout)
	viper.SetDefault("remote.token", defaults.Remote.Token)

	// Device defaults
	viper.SetDefault("device.poll_host", defaults.Device.PollHost)
	viper.SetDefault("device.poll_interval", defaults.Device.PollInterval)
	viper.SetDefault("device.telemetry_file", defaults.Device.TelemetryFile)
	viper.SetDefault("device.network_kind", defaults.Device.NetworkKind)
	viper.SetDefault("device.connected", defaults.Device.Connected)
	viper.SetDefault("device.network_speed_kbps", defaults.Device.NetworkSpeedKbps)
	viper.SetDefault("device.battery_pct", defaults.Device.BatteryPct)
	viper.SetDefault("device.benchmark_level", defaults.Device.BenchmarkLevel)

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.dir", defaults.Store.Dir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// scoringDefaults flattens s into its mapstructure keys.
func scoringDefaults(s dispatch.Scoring) map[string]any {
	out := make(map[string]any)
	if err := mapstructure.Decode(s, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "edgeshift")
	}
	// Fall back to ~/.config/edgeshift
	home, err := os.UserHomeDir()
	if err != nil {
		return ".edgeshift"
	}
	return filepath.Join(home, ".config", "edgeshift")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
