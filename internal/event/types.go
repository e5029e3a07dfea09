package event

import (
	"time"

	"github.com/Iron-Ham/edgeshift/internal/task"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "device.connectivity_changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeConnectivityChanged = "device.connectivity_changed"
	TypeDeviceUpdated       = "device.updated"
	TypeTaskStateChanged    = "task.state_changed"
	TypeTaskDispatched      = "task.dispatched"
	TypeCacheEvicted        = "cache.evicted"
	TypeSyncCompleted       = "sync.completed"
	TypeSyncFailed          = "sync.failed"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Device Events
// -----------------------------------------------------------------------------

// ConnectivityChangedEvent is emitted when the device goes offline or comes
// back online. Connected == true marks the offline->online transition that
// triggers a sync.
type ConnectivityChangedEvent struct {
	baseEvent
	Connected   bool
	NetworkKind string
}

// NewConnectivityChangedEvent creates a ConnectivityChangedEvent.
func NewConnectivityChangedEvent(connected bool, networkKind string) ConnectivityChangedEvent {
	return ConnectivityChangedEvent{
		baseEvent:   newBaseEvent(TypeConnectivityChanged),
		Connected:   connected,
		NetworkKind: networkKind,
	}
}

// DeviceUpdatedEvent is emitted after any telemetry update is applied.
type DeviceUpdatedEvent struct {
	baseEvent
	Source string // "poll", "push" or "file"
}

// NewDeviceUpdatedEvent creates a DeviceUpdatedEvent.
func NewDeviceUpdatedEvent(source string) DeviceUpdatedEvent {
	return DeviceUpdatedEvent{
		baseEvent: newBaseEvent(TypeDeviceUpdated),
		Source:    source,
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskStateChangedEvent is emitted on every lifecycle transition.
type TaskStateChangedEvent struct {
	baseEvent
	TaskID string
	From   task.State
	To     task.State
	Err    error
}

// NewTaskStateChangedEvent creates a TaskStateChangedEvent.
func NewTaskStateChangedEvent(taskID string, from, to task.State, err error) TaskStateChangedEvent {
	return TaskStateChangedEvent{
		baseEvent: newBaseEvent(TypeTaskStateChanged),
		TaskID:    taskID,
		From:      from,
		To:        to,
		Err:       err,
	}
}

// TaskDispatchedEvent records a local/remote decision.
type TaskDispatchedEvent struct {
	baseEvent
	TaskID     string
	Local      bool
	Rule       string
	FinalScore float64
	Threshold  float64
}

// NewTaskDispatchedEvent creates a TaskDispatchedEvent.
func NewTaskDispatchedEvent(taskID string, local bool, rule string, finalScore, threshold float64) TaskDispatchedEvent {
	return TaskDispatchedEvent{
		baseEvent:  newBaseEvent(TypeTaskDispatched),
		TaskID:     taskID,
		Local:      local,
		Rule:       rule,
		FinalScore: finalScore,
		Threshold:  threshold,
	}
}

// CacheEvictedEvent is emitted after a cleanup pass removed entries.
type CacheEvictedEvent struct {
	baseEvent
	Expired  int
	Overflow int
	Retained int // evicted entries kept because they still await sync
}

// NewCacheEvictedEvent creates a CacheEvictedEvent.
func NewCacheEvictedEvent(expired, overflow, retained int) CacheEvictedEvent {
	return CacheEvictedEvent{
		baseEvent: newBaseEvent(TypeCacheEvicted),
		Expired:   expired,
		Overflow:  overflow,
		Retained:  retained,
	}
}

// -----------------------------------------------------------------------------
// Sync Events
// -----------------------------------------------------------------------------

// SyncCompletedEvent is emitted after the remote side acknowledged a batch.
type SyncCompletedEvent struct {
	baseEvent
	BatchID string
	Acked   []string
	Trigger string // "timer", "reconnect" or "manual"
}

// NewSyncCompletedEvent creates a SyncCompletedEvent.
func NewSyncCompletedEvent(batchID string, acked []string, trigger string) SyncCompletedEvent {
	return SyncCompletedEvent{
		baseEvent: newBaseEvent(TypeSyncCompleted),
		BatchID:   batchID,
		Acked:     acked,
		Trigger:   trigger,
	}
}

// SyncFailedEvent is emitted when a batch push failed; the results stay pending.
type SyncFailedEvent struct {
	baseEvent
	Pending int
	Err     error
	Trigger string
}

// NewSyncFailedEvent creates a SyncFailedEvent.
func NewSyncFailedEvent(pending int, err error, trigger string) SyncFailedEvent {
	return SyncFailedEvent{
		baseEvent: newBaseEvent(TypeSyncFailed),
		Pending:   pending,
		Err:       err,
		Trigger:   trigger,
	}
}
