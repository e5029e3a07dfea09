package dispatch

import "github.com/Iron-Ham/edgeshift/internal/device"

// Scoring holds every threshold and weight used by the Policy. Penalties are
// stored as positive magnitudes and subtracted.
type Scoring struct {
	// Fast-path thresholds.
	SmallDataKB            float64 `mapstructure:"small_data_kb"`
	MediumDataKB           float64 `mapstructure:"medium_data_kb"`
	WeakNetworkKbps        float64 `mapstructure:"weak_network_kbps"`
	HighPriorityMinBattery float64 `mapstructure:"high_priority_min_battery"`
	HighPriorityMaxCPU     float64 `mapstructure:"high_priority_max_cpu"`

	// Task score.
	KindAffinity   float64 `mapstructure:"kind_affinity"`
	LowComplexity  float64 `mapstructure:"low_complexity"`
	HighComplexity float64 `mapstructure:"high_complexity"`
	SmallPayload   float64 `mapstructure:"small_payload"`
	LargePayload   float64 `mapstructure:"large_payload"`
	HighPriority   float64 `mapstructure:"high_priority"`
	LowPriority    float64 `mapstructure:"low_priority"`

	// Device score.
	LowBatteryPct       float64 `mapstructure:"low_battery_pct"`
	HighBatteryPct      float64 `mapstructure:"high_battery_pct"`
	LowBatteryPenalty   float64 `mapstructure:"low_battery_penalty"`
	HighBatteryBonus    float64 `mapstructure:"high_battery_bonus"`
	LowBenchmark        float64 `mapstructure:"low_benchmark"`
	HighBenchmark       float64 `mapstructure:"high_benchmark"`
	LowBenchmarkPenalty float64 `mapstructure:"low_benchmark_penalty"`
	HighBenchmarkBonus  float64 `mapstructure:"high_benchmark_bonus"`
	CPUThreshold        float64 `mapstructure:"cpu_threshold"`
	CPUPenalty          float64 `mapstructure:"cpu_penalty"`
	MemThreshold        float64 `mapstructure:"mem_threshold"`
	MemPenalty          float64 `mapstructure:"mem_penalty"`

	// Network score.
	NetworkKindBonus map[string]float64 `mapstructure:"network_kind_bonus"`
	ReferenceKbps    float64            `mapstructure:"reference_kbps"`
	// SpeedGain scales the relative deviation above ReferenceKbps and
	// SpeedPenaltyGain the deviation below it.
	SpeedGain        float64            `mapstructure:"speed_gain"`
	SpeedPenaltyGain float64            `mapstructure:"speed_penalty_gain"`
	SpeedMaxBonus    float64            `mapstructure:"speed_max_bonus"`
	SpeedMaxPenalty  float64            `mapstructure:"speed_max_penalty"`

	// Decision threshold = ThresholdBase + (100 - networkScore) * ThresholdSlope.
	ThresholdBase  float64 `mapstructure:"threshold_base"`
	ThresholdSlope float64 `mapstructure:"threshold_slope"`
}

// DefaultScoring returns the stock weights.
func DefaultScoring() Scoring {
	return Scoring{
		SmallDataKB:            10,
		MediumDataKB:           500,
		WeakNetworkKbps:        100,
		HighPriorityMinBattery: 30,
		HighPriorityMaxCPU:     70,

		KindAffinity:   20,
		LowComplexity:  30,
		HighComplexity: 30,
		SmallPayload:   20,
		LargePayload:   30,
		HighPriority:   15,
		LowPriority:    10,

		LowBatteryPct:       20,
		HighBatteryPct:      80,
		LowBatteryPenalty:   30,
		HighBatteryBonus:    10,
		LowBenchmark:        20,
		HighBenchmark:       70,
		LowBenchmarkPenalty: 20,
		HighBenchmarkBonus:  20,
		CPUThreshold:        80,
		CPUPenalty:          30,
		MemThreshold:        80,
		MemPenalty:          20,

		NetworkKindBonus: map[string]float64{
			device.NetworkWiFi: 40,
			device.Network4G:   30,
			device.Network3G:   10,
			device.Network2G:   -30,
		},
		ReferenceKbps:    1000,
		SpeedGain:        30,
		SpeedPenaltyGain: 40,
		SpeedMaxBonus:    30,
		SpeedMaxPenalty:  40,

		ThresholdBase:  50,
		ThresholdSlope: 0.3,
	}
}

func clampScore(v float64) float64 {
	return min(max(v, 0), 100)
}
