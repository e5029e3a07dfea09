package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// TaskError Tests
// -----------------------------------------------------------------------------

func TestNewTaskError_RetryableFromCause(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		want  bool
	}{
		{"local execution is retryable", ErrLocalExecution, true},
		{"invalid task is not retryable", ErrInvalidTask, false},
		{"processor not found is not retryable", ErrProcessorNotFound, false},
		{"wrapped local execution", fmt.Errorf("boom: %w", ErrLocalExecution), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTaskError("failed", tt.cause)
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TaskError
		want string
	}{
		{
			name: "no context",
			err:  NewTaskError("failed", nil),
			want: "task error: failed",
		},
		{
			name: "full context",
			err: NewTaskError("processor failed", ErrLocalExecution).
				WithTaskID("t-1").WithProcessor("data", "sum").WithAttempt(2),
			want: "task error [task=t-1, processor=data.sum, attempt=2]: processor failed: local execution failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskError_Is(t *testing.T) {
	err := NewTaskError("missing id", ErrInvalidTask).WithTaskID("x")

	if !errors.Is(err, ErrInvalidTask) {
		t.Error("errors.Is(err, ErrInvalidTask) = false, want true")
	}
	if !errors.Is(err, &TaskError{}) {
		t.Error("errors.Is(err, &TaskError{}) = false, want true")
	}
	if errors.Is(err, ErrLocalExecution) {
		t.Error("errors.Is(err, ErrLocalExecution) = true, want false")
	}

	var taskErr *TaskError
	wrapped := fmt.Errorf("dispatch: %w", err)
	if !errors.As(wrapped, &taskErr) {
		t.Fatal("errors.As failed for wrapped TaskError")
	}
	if taskErr.TaskID != "x" {
		t.Errorf("TaskID = %q, want %q", taskErr.TaskID, "x")
	}
}

// -----------------------------------------------------------------------------
// RemoteError / SyncError Tests
// -----------------------------------------------------------------------------

func TestRemoteError(t *testing.T) {
	err := NewRemoteError("unexpected status", nil).
		WithEndpoint("http://remote/tasks").
		WithStatusCode(503)

	if !errors.Is(err, ErrRemoteRequest) {
		t.Error("RemoteError should match ErrRemoteRequest")
	}
	if err.IsRetryable() {
		t.Error("RemoteError should not be retryable by default")
	}
	want := "remote error [endpoint=http://remote/tasks, status=503]: unexpected status"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestRemoteError_WrapsTimeout(t *testing.T) {
	err := NewRemoteError("request failed", NewTimeoutError("remote send", time.Second))
	if !errors.Is(err, ErrTimeout) {
		t.Error("RemoteError wrapping a TimeoutError should match ErrTimeout")
	}
	if !errors.Is(err, ErrRemoteRequest) {
		t.Error("RemoteError should match ErrRemoteRequest")
	}
}

func TestSyncError(t *testing.T) {
	err := NewSyncError("batch push failed", ErrOffline).WithPending(3)
	if !errors.Is(err, ErrSyncFailure) {
		t.Error("SyncError should match ErrSyncFailure")
	}
	if !errors.Is(err, ErrOffline) {
		t.Error("SyncError should match its cause")
	}
	if !err.IsRetryable() {
		t.Error("SyncError should be retryable")
	}
	if !strings.Contains(err.Error(), "pending=3") {
		t.Errorf("Error() = %q, want pending count", err.Error())
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestValidationError(t *testing.T) {
	err := NewValidationError("field is required").WithField("id").WithValue("")

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	want := "validation error [field=id, value=]: field is required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("remote send", 10*time.Second)
	if got, want := err.Error(), "timeout error: remote send (timeout: 10s)"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !err.IsRetryable() {
		t.Error("TimeoutError should be retryable by default")
	}
	if err.WithRetryable(false).IsRetryable() {
		t.Error("WithRetryable(false) should disable retry")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", New("x"), false},
		{"local execution sentinel", ErrLocalExecution, true},
		{"timeout sentinel", ErrTimeout, true},
		{"task error local", NewTaskError("x", ErrLocalExecution), true},
		{"task error invalid", NewTaskError("x", ErrInvalidTask), false},
		{"fatal forced retryable", NewTaskError("x", ErrProcessorNotFound).WithRetryable(true), false},
		{"remote error", NewRemoteError("x", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invalid task", NewTaskError("x", ErrInvalidTask), true},
		{"processor not found", fmt.Errorf("wrap: %w", ErrProcessorNotFound), true},
		{"invalid processor", ErrInvalidProcessor, true},
		{"local execution", ErrLocalExecution, false},
		{"retries exhausted", ErrRetriesExhausted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", got)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}
	if got := GetSeverity(NewSyncError("x", nil)); got != SeverityWarning {
		t.Errorf("GetSeverity(sync) = %v, want warning", got)
	}
	if got := GetSeverity(NewTaskError("x", nil).WithSeverity(SeverityCritical)); got != SeverityCritical {
		t.Errorf("GetSeverity(task) = %v, want critical", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	err := Wrapf(ErrOffline, "sync %d results", 3)
	if !errors.Is(err, ErrOffline) {
		t.Error("Wrapf should preserve the cause")
	}
	if got, want := err.Error(), "sync 3 results: device offline"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
