package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "executor.max_cache_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidNetworkKinds returns the list of valid network kinds
func ValidNetworkKinds() []string {
	return []string{"wifi", "4g", "3g", "2g", "unknown"}
}

// ValidStoreBackends returns the list of valid store backends
func ValidStoreBackends() []string {
	return []string{StoreBackendFile, StoreBackendMemory}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateDispatch()...)
	errors = append(errors, c.validateScoring()...)
	errors = append(errors, c.validateExecutor()...)
	errors = append(errors, c.validateSync()...)
	errors = append(errors, c.validateRemote()...)
	errors = append(errors, c.validateDevice()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateDispatch validates the DispatchConfig
func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	if c.Dispatch.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_retries",
			Value:   c.Dispatch.MaxRetries,
			Message: "must be at least 1",
		})
	}
	if c.Dispatch.RetryBackoff < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.retry_backoff",
			Value:   c.Dispatch.RetryBackoff,
			Message: "must be non-negative",
		})
	}

	errors = append(errors, validatePatterns("dispatch.local_kinds", c.Dispatch.LocalKinds)...)
	errors = append(errors, validatePatterns("dispatch.remote_kinds", c.Dispatch.RemoteKinds)...)

	return errors
}

func validatePatterns(field string, patterns []string) []ValidationError {
	var errors []ValidationError
	for i, pat := range patterns {
		if strings.TrimSpace(pat) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Value:   pat,
				Message: "pattern cannot be empty",
			})
			continue
		}
		if _, err := glob.Compile(pat, '.'); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Value:   pat,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}
	return errors
}

// validateScoring validates the scoring thresholds; weights may be any value
func (c *Config) validateScoring() []ValidationError {
	var errors []ValidationError
	s := c.Scoring

	if s.SmallDataKB < 0 {
		errors = append(errors, ValidationError{
			Field:   "scoring.small_data_kb",
			Value:   s.SmallDataKB,
			Message: "must be non-negative",
		})
	}
	if s.MediumDataKB < s.SmallDataKB {
		errors = append(errors, ValidationError{
			Field:   "scoring.medium_data_kb",
			Value:   s.MediumDataKB,
			Message: fmt.Sprintf("must be at least scoring.small_data_kb (%v)", s.SmallDataKB),
		})
	}
	nonNegative := []struct {
		field string
		value float64
	}{
		{"scoring.reference_kbps", s.ReferenceKbps},
		{"scoring.speed_gain", s.SpeedGain},
		{"scoring.speed_penalty_gain", s.SpeedPenaltyGain},
		{"scoring.speed_max_bonus", s.SpeedMaxBonus},
		{"scoring.speed_max_penalty", s.SpeedMaxPenalty},
	}
	for _, n := range nonNegative {
		if n.value < 0 {
			errors = append(errors, ValidationError{
				Field:   n.field,
				Value:   n.value,
				Message: "must be non-negative",
			})
		}
	}

	pcts := []struct {
		field string
		value float64
	}{
		{"scoring.high_priority_min_battery", s.HighPriorityMinBattery},
		{"scoring.high_priority_max_cpu", s.HighPriorityMaxCPU},
		{"scoring.low_battery_pct", s.LowBatteryPct},
		{"scoring.high_battery_pct", s.HighBatteryPct},
		{"scoring.cpu_threshold", s.CPUThreshold},
		{"scoring.mem_threshold", s.MemThreshold},
	}
	for _, p := range pcts {
		if p.value < 0 || p.value > 100 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be between 0 and 100",
			})
		}
	}

	if s.LowBatteryPct > s.HighBatteryPct {
		errors = append(errors, ValidationError{
			Field:   "scoring.low_battery_pct",
			Value:   s.LowBatteryPct,
			Message: fmt.Sprintf("must not exceed scoring.high_battery_pct (%v)", s.HighBatteryPct),
		})
	}

	// Penalties are subtracted; a negative one would reward a low battery.
	if s.LowBatteryPenalty < 0 {
		errors = append(errors, ValidationError{
			Field:   "scoring.low_battery_penalty",
			Value:   s.LowBatteryPenalty,
			Message: "must be non-negative",
		})
	}
	if s.HighBatteryBonus < 0 {
		errors = append(errors, ValidationError{
			Field:   "scoring.high_battery_bonus",
			Value:   s.HighBatteryBonus,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateExecutor validates the ExecutorConfig
func (c *Config) validateExecutor() []ValidationError {
	var errors []ValidationError

	if c.Executor.MaxConcurrent < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_concurrent",
			Value:   c.Executor.MaxConcurrent,
			Message: "must be non-negative (0 derives it from the device benchmark)",
		})
	}
	if c.Executor.MaxCacheSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_cache_size",
			Value:   c.Executor.MaxCacheSize,
			Message: "must be at least 1",
		})
	}
	errors = append(errors, positiveDuration("executor.cache_ttl", c.Executor.CacheTTL)...)
	errors = append(errors, positiveDuration("executor.cleanup_interval", c.Executor.CleanupInterval)...)

	for field, v := range map[string]float64{
		"executor.resource_cpu_ceiling": c.Executor.ResourceCPUCeiling,
		"executor.resource_mem_ceiling": c.Executor.ResourceMemCeiling,
	} {
		if v < 0 || v > 100 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   v,
				Message: "must be between 0 and 100",
			})
		}
	}

	return errors
}

// validateSync validates the SyncConfig
func (c *Config) validateSync() []ValidationError {
	if !c.Sync.Enabled {
		return nil
	}
	return positiveDuration("sync.interval", c.Sync.Interval)
}

// validateRemote validates the RemoteConfig
func (c *Config) validateRemote() []ValidationError {
	var errors []ValidationError

	if c.Remote.URL != "" {
		u, err := url.Parse(c.Remote.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "remote.url",
				Value:   c.Remote.URL,
				Message: "must be an absolute http or https URL",
			})
		}
	}
	errors = append(errors, positiveDuration("remote.timeout", c.Remote.Timeout)...)

	return errors
}

// validateDevice validates the DeviceConfig
func (c *Config) validateDevice() []ValidationError {
	var errors []ValidationError

	if c.Device.NetworkKind != "" && !slices.Contains(ValidNetworkKinds(), strings.ToLower(c.Device.NetworkKind)) {
		errors = append(errors, ValidationError{
			Field:   "device.network_kind",
			Value:   c.Device.NetworkKind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidNetworkKinds(), ", ")),
		})
	}
	if c.Device.NetworkSpeedKbps < 0 {
		errors = append(errors, ValidationError{
			Field:   "device.network_speed_kbps",
			Value:   c.Device.NetworkSpeedKbps,
			Message: "must be non-negative",
		})
	}
	for field, v := range map[string]float64{
		"device.battery_pct":     c.Device.BatteryPct,
		"device.benchmark_level": c.Device.BenchmarkLevel,
	} {
		if v < 0 || v > 100 {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   v,
				Message: "must be between 0 and 100",
			})
		}
	}
	if c.Device.PollHost {
		errors = append(errors, positiveDuration("device.poll_interval", c.Device.PollInterval)...)
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	if c.Store.Backend == "" || slices.Contains(ValidStoreBackends(), c.Store.Backend) {
		return nil
	}
	return []ValidationError{{
		Field:   "store.backend",
		Value:   c.Store.Backend,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreBackends(), ", ")),
	}}
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxAgeDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_age_days",
			Value:   c.Logging.MaxAgeDays,
			Message: "must be non-negative",
		})
	}

	return errors
}

func positiveDuration(field string, d time.Duration) []ValidationError {
	if d > 0 {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Value:   d,
		Message: "must be a positive duration",
	}}
}
