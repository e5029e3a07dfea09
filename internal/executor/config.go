package executor

import "time"

// Default executor settings.
const (
	DefaultCacheTTL           = 24 * time.Hour
	DefaultMaxCacheSize       = 100
	DefaultCleanupInterval    = time.Hour
	DefaultResourceCPUCeiling = 90
	DefaultResourceMemCeiling = 90
)

// Config holds executor limits.
type Config struct {
	// MaxConcurrent caps simultaneous executions. Zero derives the cap from
	// the device benchmark tier (see TierLimit).
	MaxConcurrent int
	// CacheTTL is how long a result stays servable from the cache.
	CacheTTL time.Duration
	// MaxCacheSize bounds cache entries and the execution history.
	MaxCacheSize int
	// CleanupInterval is the period of the background cleanup in Run.
	CleanupInterval time.Duration
	// ResourceCPUCeiling and ResourceMemCeiling (percent) defer new work
	// while something is already running and usage is above the ceiling.
	// Zero disables the check.
	ResourceCPUCeiling float64
	ResourceMemCeiling float64
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:           DefaultCacheTTL,
		MaxCacheSize:       DefaultMaxCacheSize,
		CleanupInterval:    DefaultCleanupInterval,
		ResourceCPUCeiling: DefaultResourceCPUCeiling,
		ResourceMemCeiling: DefaultResourceMemCeiling,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.MaxCacheSize <= 0 {
		c.MaxCacheSize = d.MaxCacheSize
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.MaxConcurrent < 0 {
		c.MaxConcurrent = 0
	}
	return c
}

// TierLimit maps a benchmark level to a concurrency limit:
// 70 and above runs 4 tasks, 30 and above runs 2, anything lower runs 1.
func TierLimit(benchmark float64) int {
	switch {
	case benchmark >= 70:
		return 4
	case benchmark >= 30:
		return 2
	}
	return 1
}
