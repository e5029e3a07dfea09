package device

import "time"

// Network kinds with dedicated scoring adjustments.
const (
	NetworkWiFi    = "wifi"
	Network4G      = "4g"
	Network3G      = "3g"
	Network2G      = "2g"
	NetworkUnknown = "unknown"
)

// Status is a snapshot of the device. Percentages are 0-100; BenchmarkLevel
// is a 0-100 capability score.
type Status struct {
	NetworkKind      string    `json:"networkKind" yaml:"networkKind"`
	IsConnected      bool      `json:"isConnected" yaml:"isConnected"`
	NetworkSpeedKbps float64   `json:"networkSpeedKbps" yaml:"networkSpeedKbps"`
	BatteryPct       float64   `json:"batteryPct" yaml:"batteryPct"`
	BenchmarkLevel   float64   `json:"benchmarkLevel" yaml:"benchmarkLevel"`
	CPUPct           float64   `json:"cpuPct" yaml:"cpuPct"`
	MemPct           float64   `json:"memPct" yaml:"memPct"`
	UpdatedAt        time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// DefaultStatus is the assumed snapshot before any telemetry arrives: an
// online mid-range device on an unknown network.
func DefaultStatus() Status {
	return Status{
		NetworkKind:      NetworkUnknown,
		IsConnected:      true,
		NetworkSpeedKbps: 1000,
		BatteryPct:       100,
		BenchmarkLevel:   50,
	}
}

// Reading is a partial telemetry update. Nil fields leave the current value
// unchanged.
type Reading struct {
	NetworkKind      *string  `json:"networkKind,omitempty" yaml:"networkKind,omitempty"`
	IsConnected      *bool    `json:"isConnected,omitempty" yaml:"isConnected,omitempty"`
	NetworkSpeedKbps *float64 `json:"networkSpeedKbps,omitempty" yaml:"networkSpeedKbps,omitempty"`
	BatteryPct       *float64 `json:"batteryPct,omitempty" yaml:"batteryPct,omitempty"`
	BenchmarkLevel   *float64 `json:"benchmarkLevel,omitempty" yaml:"benchmarkLevel,omitempty"`
	CPUPct           *float64 `json:"cpuPct,omitempty" yaml:"cpuPct,omitempty"`
	MemPct           *float64 `json:"memPct,omitempty" yaml:"memPct,omitempty"`
}

// IsEmpty reports whether the reading carries no values.
func (r Reading) IsEmpty() bool {
	return r.NetworkKind == nil && r.IsConnected == nil && r.NetworkSpeedKbps == nil &&
		r.BatteryPct == nil && r.BenchmarkLevel == nil && r.CPUPct == nil && r.MemPct == nil
}

// applyTo merges r into s and returns the result.
func (r Reading) applyTo(s Status) Status {
	if r.NetworkKind != nil {
		s.NetworkKind = *r.NetworkKind
	}
	if r.IsConnected != nil {
		s.IsConnected = *r.IsConnected
	}
	if r.NetworkSpeedKbps != nil {
		s.NetworkSpeedKbps = *r.NetworkSpeedKbps
	}
	if r.BatteryPct != nil {
		s.BatteryPct = clampPct(*r.BatteryPct)
	}
	if r.BenchmarkLevel != nil {
		s.BenchmarkLevel = clampPct(*r.BenchmarkLevel)
	}
	if r.CPUPct != nil {
		s.CPUPct = clampPct(*r.CPUPct)
	}
	if r.MemPct != nil {
		s.MemPct = clampPct(*r.MemPct)
	}
	return s
}

// ReadingFrom returns a Reading that sets every field of s.
func ReadingFrom(s Status) Reading {
	return Reading{
		NetworkKind:      &s.NetworkKind,
		IsConnected:      &s.IsConnected,
		NetworkSpeedKbps: &s.NetworkSpeedKbps,
		BatteryPct:       &s.BatteryPct,
		BenchmarkLevel:   &s.BenchmarkLevel,
		CPUPct:           &s.CPUPct,
		MemPct:           &s.MemPct,
	}
}

// Connected returns a Reading that only sets connectivity.
func Connected(connected bool) Reading {
	return Reading{IsConnected: &connected}
}

func clampPct(v float64) float64 {
	return min(max(v, 0), 100)
}
