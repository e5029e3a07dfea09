package dispatch

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/gobwas/glob"
)

// Fast-path rule names. RuleScore marks a decision made by the composite score.
const (
	RuleOffline       = "offline"
	RuleLowComplexity = "low_complexity"
	RuleSmallPayload  = "small_payload"
	RuleHeavyTask     = "heavy_task"
	RuleWeakNetwork   = "weak_network"
	RuleHighPriority  = "high_priority"
	RuleScore         = "score"
)

// Decision is the outcome of evaluating the policy for one task. Scores are
// only filled in when Rule is RuleScore.
type Decision struct {
	Local        bool    `json:"local"`
	Rule         string  `json:"rule"`
	TaskScore    float64 `json:"taskScore,omitempty"`
	DeviceScore  float64 `json:"deviceScore,omitempty"`
	NetworkScore float64 `json:"networkScore,omitempty"`
	FinalScore   float64 `json:"finalScore,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
}

// String returns a short human-readable description.
func (d Decision) String() string {
	where := "remote"
	if d.Local {
		where = "local"
	}
	if d.Rule != RuleScore {
		return fmt.Sprintf("%s (%s)", where, d.Rule)
	}
	return fmt.Sprintf("%s (score %.1f vs threshold %.1f)", where, d.FinalScore, d.Threshold)
}

// Option configures a Policy.
type Option func(*Policy)

// WithScoring replaces the weights and thresholds.
func WithScoring(s Scoring) Option {
	return func(p *Policy) { p.scoring = s }
}

// WithLocalKinds sets glob patterns for task kinds that favor local execution.
func WithLocalKinds(patterns ...string) Option {
	return func(p *Policy) { p.localPatterns = patterns }
}

// WithRemoteKinds sets glob patterns for task kinds that favor remote execution.
func WithRemoteKinds(patterns ...string) Option {
	return func(p *Policy) { p.remotePatterns = patterns }
}

// Policy decides between local and remote execution. It holds no mutable
// state after construction and is safe for concurrent use.
type Policy struct {
	scoring        Scoring
	localPatterns  []string
	remotePatterns []string
	localKinds     []glob.Glob
	remoteKinds    []glob.Glob
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults. Invalid kind patterns are reported as errors.
func NewPolicy(opts ...Option) (*Policy, error) {
	p := &Policy{scoring: DefaultScoring()}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.localKinds, err = compileKinds(p.localPatterns); err != nil {
		return nil, fmt.Errorf("local kinds: %w", err)
	}
	if p.remoteKinds, err = compileKinds(p.remotePatterns); err != nil {
		return nil, fmt.Errorf("remote kinds: %w", err)
	}
	return p, nil
}

func compileKinds(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '.')
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pat, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Scoring returns the policy's weights.
func (p *Policy) Scoring() Scoring {
	return p.scoring
}

// ShouldProcessLocally evaluates the fast-path rules in order, first match
// wins, then falls back to the composite score.
func (p *Policy) ShouldProcessLocally(t task.Task, s device.Status) Decision {
	sc := p.scoring
	size := t.SizeKB()
	complexity := levelOr(t.Complexity)

	switch {
	case !s.IsConnected:
		return Decision{Local: true, Rule: RuleOffline}
	case complexity == task.LevelLow:
		return Decision{Local: true, Rule: RuleLowComplexity}
	case size < sc.SmallDataKB:
		return Decision{Local: true, Rule: RuleSmallPayload}
	case complexity == task.LevelHigh || size > sc.MediumDataKB:
		return Decision{Local: false, Rule: RuleHeavyTask}
	case p.weakNetwork(s):
		return Decision{Local: true, Rule: RuleWeakNetwork}
	case levelOr(t.Priority) == task.LevelHigh &&
		s.BatteryPct > sc.HighPriorityMinBattery &&
		s.CPUPct < sc.HighPriorityMaxCPU:
		return Decision{Local: true, Rule: RuleHighPriority}
	}

	d := Decision{
		Rule:         RuleScore,
		TaskScore:    p.TaskScore(t),
		DeviceScore:  p.DeviceScore(s),
		NetworkScore: p.NetworkScore(s),
	}
	d.Threshold = sc.ThresholdBase + (100-d.NetworkScore)*sc.ThresholdSlope
	d.FinalScore = d.TaskScore * d.DeviceScore / 100
	d.Local = d.FinalScore > d.Threshold
	return d
}

func (p *Policy) weakNetwork(s device.Status) bool {
	return strings.EqualFold(s.NetworkKind, device.Network2G) || s.NetworkSpeedKbps < p.scoring.WeakNetworkKbps
}

// TaskScore rates how well t suits local execution, 0-100.
func (p *Policy) TaskScore(t task.Task) float64 {
	sc := p.scoring
	score := 50.0

	switch {
	case matchesAny(p.localKinds, t.Kind):
		score += sc.KindAffinity
	case matchesAny(p.remoteKinds, t.Kind):
		score -= sc.KindAffinity
	}

	switch levelOr(t.Complexity) {
	case task.LevelLow:
		score += sc.LowComplexity
	case task.LevelHigh:
		score -= sc.HighComplexity
	}

	size := t.SizeKB()
	switch {
	case size < sc.SmallDataKB:
		score += sc.SmallPayload
	case size > sc.MediumDataKB:
		score -= sc.LargePayload
	}

	switch levelOr(t.Priority) {
	case task.LevelHigh:
		score += sc.HighPriority
	case task.LevelLow:
		score -= sc.LowPriority
	}

	return clampScore(score)
}

// DeviceScore rates the device's capacity for local work, 0-100. It never
// increases as battery drops.
func (p *Policy) DeviceScore(s device.Status) float64 {
	sc := p.scoring
	score := 50.0

	switch {
	case s.BatteryPct < sc.LowBatteryPct:
		score -= sc.LowBatteryPenalty
	case s.BatteryPct > sc.HighBatteryPct:
		score += sc.HighBatteryBonus
	}

	switch {
	case s.BenchmarkLevel < sc.LowBenchmark:
		score -= sc.LowBenchmarkPenalty
	case s.BenchmarkLevel > sc.HighBenchmark:
		score += sc.HighBenchmarkBonus
	}

	if s.CPUPct > sc.CPUThreshold {
		score -= sc.CPUPenalty
	}
	if s.MemPct > sc.MemThreshold {
		score -= sc.MemPenalty
	}

	return clampScore(score)
}

// NetworkScore rates the link to the remote service, 0-100.
func (p *Policy) NetworkScore(s device.Status) float64 {
	if !s.IsConnected {
		return 0
	}
	sc := p.scoring
	score := 50.0 + sc.NetworkKindBonus[strings.ToLower(s.NetworkKind)]

	if sc.ReferenceKbps > 0 {
		dev := (s.NetworkSpeedKbps - sc.ReferenceKbps) / sc.ReferenceKbps
		if dev >= 0 {
			score += min(dev*sc.SpeedGain, sc.SpeedMaxBonus)
		} else {
			score -= min(-dev*sc.SpeedPenaltyGain, sc.SpeedMaxPenalty)
		}
	}

	return clampScore(score)
}

func matchesAny(globs []glob.Glob, kind string) bool {
	for _, g := range globs {
		if g.Match(kind) {
			return true
		}
	}
	return false
}

// levelOr treats unset or unknown levels as medium.
func levelOr(l task.Level) task.Level {
	if l.IsValid() {
		return l
	}
	return task.LevelMedium
}
