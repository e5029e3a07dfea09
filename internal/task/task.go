package task

import (
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

// Level grades complexity and priority.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// IsValid reports whether l is one of the known levels.
func (l Level) IsValid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// ParseLevel converts a case-insensitive string to a Level.
// Unknown or empty values return LevelMedium and false.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return LevelMedium, false
	}
	return l, true
}

// Task is a single unit of work. Identity is ID; a Task is passed by value
// and never modified after submission.
type Task struct {
	ID        string `json:"id" yaml:"id"`
	Kind      string `json:"kind" yaml:"kind"`
	Operation string `json:"operation" yaml:"operation"`
	Payload   any    `json:"payload,omitempty" yaml:"payload,omitempty"`

	Complexity Level `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	Priority   Level `json:"priority,omitempty" yaml:"priority,omitempty"`

	// PayloadSizeKB is optional; nil means "estimate from the payload".
	PayloadSizeKB *float64 `json:"payloadSizeKB,omitempty" yaml:"payloadSizeKB,omitempty"`

	// RequireSync marks results produced offline as needing remote acknowledgement.
	RequireSync bool `json:"requireSync,omitempty" yaml:"requireSync,omitempty"`

	// RemoteEndpoint overrides the default remote path for this task.
	RemoteEndpoint string `json:"remoteEndpoint,omitempty" yaml:"remoteEndpoint,omitempty"`
}

// Key returns the processor registry key "kind.operation".
func (t Task) Key() string {
	return t.Kind + "." + t.Operation
}

// Validate checks the fields required for execution.
func (t Task) Validate() error {
	var field string
	switch {
	case strings.TrimSpace(t.ID) == "":
		field = "id"
	case strings.TrimSpace(t.Kind) == "":
		field = "kind"
	case strings.TrimSpace(t.Operation) == "":
		field = "operation"
	default:
		return nil
	}
	return errors.NewTaskError(field+" is required", errors.ErrInvalidTask).
		WithTaskID(t.ID).
		WithProcessor(t.Kind, t.Operation)
}

// WithDefaults returns a copy with complexity and priority defaulted to medium
// and PayloadSizeKB filled from the encoded payload when absent.
func (t Task) WithDefaults() Task {
	if !t.Complexity.IsValid() {
		t.Complexity = LevelMedium
	}
	if !t.Priority.IsValid() {
		t.Priority = LevelMedium
	}
	if t.PayloadSizeKB == nil {
		size := EstimatePayloadSizeKB(t.Payload)
		t.PayloadSizeKB = &size
	}
	return t
}

// SizeKB returns the declared payload size, or the estimate when absent.
func (t Task) SizeKB() float64 {
	if t.PayloadSizeKB != nil {
		return *t.PayloadSizeKB
	}
	return EstimatePayloadSizeKB(t.Payload)
}

// EstimatePayloadSizeKB returns the JSON-encoded length of payload in KiB.
// Payloads that cannot be encoded fall back to their formatted length.
func EstimatePayloadSizeKB(payload any) float64 {
	if payload == nil {
		return 0
	}
	data, err := json.Marshal(payload)
	if err != nil {
		if s, ok := payload.(string); ok {
			return float64(len(s)) / 1024
		}
		return 0
	}
	return float64(len(data)) / 1024
}

// SizeKB is a helper for building tasks with an explicit payload size.
func SizeKB(kb float64) *float64 {
	return &kb
}
