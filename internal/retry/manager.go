// Package retry provides retry state management for local task execution.
//
// The dispatcher tracks attempts per task here, asks whether another attempt
// is allowed, and waits out a linear backoff between attempts. States live
// only while a task is in flight; Finish removes them and returns the final
// record for logging and statistics.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

// TaskState tracks attempts for a task.
type TaskState struct {
	TaskID      string    `json:"task_id"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
	Succeeded   bool      `json:"succeeded,omitempty"`
	Fatal       bool      `json:"fatal,omitempty"` // last error must not be retried
	StartedAt   time.Time `json:"started_at"`
}

// Retries returns the number of re-attempts made after the first attempt.
func (s TaskState) Retries() int {
	return max(s.Attempts-1, 0)
}

// Exhausted reports whether every allowed attempt failed.
func (s TaskState) Exhausted() bool {
	return !s.Succeeded && !s.Fatal && s.Attempts >= s.MaxAttempts
}

// Manager manages retry state for tasks.
// It is thread-safe and can be used concurrently.
type Manager struct {
	mu     sync.RWMutex
	states map[string]*TaskState
}

// NewManager creates a new retry manager.
func NewManager() *Manager {
	return &Manager{
		states: make(map[string]*TaskState),
	}
}

// GetOrCreateState returns or creates retry state for a task.
// If the state doesn't exist, it creates one allowing maxAttempts attempts
// (at least one).
func (m *Manager) GetOrCreateState(taskID string, maxAttempts int) TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[taskID]
	if !exists {
		state = &TaskState{
			TaskID:      taskID,
			MaxAttempts: max(maxAttempts, 1),
			StartedAt:   time.Now(),
		}
		m.states[taskID] = state
	}
	return *state
}

// GetState returns the retry state for a task and whether it exists.
func (m *Manager) GetState(taskID string) (TaskState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[taskID]
	if !ok {
		return TaskState{}, false
	}
	return *state, true
}

// RecordAttempt records the outcome of one attempt. A nil err marks the task
// as succeeded; a fatal error (see errors.IsFatal) stops further retries.
func (m *Manager) RecordAttempt(taskID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[taskID]
	if !exists {
		return
	}

	state.Attempts++
	if err == nil {
		state.Succeeded = true
		state.LastError = ""
		return
	}
	state.LastError = err.Error()
	if errors.IsFatal(err) {
		state.Fatal = true
	}
}

// ShouldRetry returns whether another attempt is allowed.
func (m *Manager) ShouldRetry(taskID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[taskID]
	if !exists {
		return false
	}
	return !state.Succeeded && !state.Fatal && !state.Exhausted()
}

// Finish removes the state for a task and returns its final value.
func (m *Manager) Finish(taskID string) TaskState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[taskID]
	if !exists {
		return TaskState{TaskID: taskID}
	}
	delete(m.states, taskID)
	return *state
}

// GetRetryingTasks returns the IDs of in-flight tasks that failed at least
// once and are still eligible for another attempt.
func (m *Manager) GetRetryingTasks() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var retrying []string
	for taskID, state := range m.states {
		if state.Attempts > 0 && !state.Succeeded && !state.Fatal && !state.Exhausted() {
			retrying = append(retrying, taskID)
		}
	}
	return retrying
}

// InFlight returns the number of tracked tasks.
func (m *Manager) InFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Backoff returns the delay before the attempt following attempt n
// (1-based): base * n.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 || attempt <= 0 {
		return 0
	}
	return base * time.Duration(attempt)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
