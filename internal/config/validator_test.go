package config

import (
	"strings"
	"testing"
	"time"
)

func hasField(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"max retries zero", func(c *Config) { c.Dispatch.MaxRetries = 0 }, "dispatch.max_retries"},
		{"negative backoff", func(c *Config) { c.Dispatch.RetryBackoff = -time.Second }, "dispatch.retry_backoff"},
		{"bad local kind", func(c *Config) { c.Dispatch.LocalKinds = []string{"[oops"} }, "dispatch.local_kinds[0]"},
		{"empty remote kind", func(c *Config) { c.Dispatch.RemoteKinds = []string{"ml.*", " "} }, "dispatch.remote_kinds[1]"},
		{"medium below small", func(c *Config) { c.Scoring.MediumDataKB = 5 }, "scoring.medium_data_kb"},
		{"negative small", func(c *Config) { c.Scoring.SmallDataKB = -1; c.Scoring.MediumDataKB = 10 }, "scoring.small_data_kb"},
		{"cpu threshold above 100", func(c *Config) { c.Scoring.CPUThreshold = 120 }, "scoring.cpu_threshold"},
		{"battery bands inverted", func(c *Config) { c.Scoring.LowBatteryPct = 90 }, "scoring.low_battery_pct"},
		{"negative battery penalty", func(c *Config) { c.Scoring.LowBatteryPenalty = -5 }, "scoring.low_battery_penalty"},
		{"negative speed penalty gain", func(c *Config) { c.Scoring.SpeedPenaltyGain = -1 }, "scoring.speed_penalty_gain"},
		{"negative speed cap", func(c *Config) { c.Scoring.SpeedMaxPenalty = -40 }, "scoring.speed_max_penalty"},
		{"negative max concurrent", func(c *Config) { c.Executor.MaxConcurrent = -1 }, "executor.max_concurrent"},
		{"zero cache size", func(c *Config) { c.Executor.MaxCacheSize = 0 }, "executor.max_cache_size"},
		{"zero ttl", func(c *Config) { c.Executor.CacheTTL = 0 }, "executor.cache_ttl"},
		{"ceiling above 100", func(c *Config) { c.Executor.ResourceMemCeiling = 101 }, "executor.resource_mem_ceiling"},
		{"zero sync interval", func(c *Config) { c.Sync.Interval = 0 }, "sync.interval"},
		{"relative remote url", func(c *Config) { c.Remote.URL = "edge.example.com" }, "remote.url"},
		{"ftp remote url", func(c *Config) { c.Remote.URL = "ftp://edge.example.com" }, "remote.url"},
		{"zero remote timeout", func(c *Config) { c.Remote.Timeout = 0 }, "remote.timeout"},
		{"unknown network", func(c *Config) { c.Device.NetworkKind = "5g" }, "device.network_kind"},
		{"battery above 100", func(c *Config) { c.Device.BatteryPct = 150 }, "device.battery_pct"},
		{"negative speed", func(c *Config) { c.Device.NetworkSpeedKbps = -1 }, "device.network_speed_kbps"},
		{"zero poll interval", func(c *Config) { c.Device.PollInterval = 0 }, "device.poll_interval"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"huge log size", func(c *Config) { c.Logging.MaxSizeMB = 5000 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"negative max age", func(c *Config) { c.Logging.MaxAgeDays = -1 }, "logging.max_age_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			errs := cfg.Validate()
			if !hasField(errs, tt.field) {
				t.Errorf("Validate() = %v, want an error for %s", errs, tt.field)
			}
		})
	}
}

func TestValidate_ConditionalChecks(t *testing.T) {
	cfg := Default()
	cfg.Sync.Enabled = false
	cfg.Sync.Interval = 0
	cfg.Device.PollHost = false
	cfg.Device.PollInterval = 0
	cfg.Remote.URL = "http://localhost:8080"
	cfg.Device.NetworkKind = "WIFI"

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	if got := ValidationErrors(nil).Error(); got != "" {
		t.Errorf("empty Error() = %q, want empty", got)
	}

	single := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if got, want := single.Error(), "a: bad (got: 1)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	multi := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	got := multi.Error()
	if !strings.HasPrefix(got, "2 validation errors:") {
		t.Errorf("Error() = %q", got)
	}
	if !strings.Contains(got, "  2. b: worse (got: 2)") {
		t.Errorf("Error() = %q, missing second entry", got)
	}
}
