// Package errors provides centralized error definitions and error handling utilities
// for edgeshift. It defines the task-dispatch error taxonomy, typed errors carrying
// task and transport context, and classification helpers used by the retry logic.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - TaskError: local validation and execution failures for a single task
//   - RemoteError: failures talking to the remote service
//   - SyncError: background synchronization failures (never surfaced to task callers)
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTaskError("processor failed", errors.ErrLocalExecution).
//		WithTaskID("t-1").WithAttempt(2)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrRetriesExhausted) { ... }
//
//	var remoteErr *errors.RemoteError
//	if errors.As(err, &remoteErr) { ... }
//
//	if errors.IsFatal(err) { ... } // never retried, never forwarded
//
// # Propagation
//
// ErrInvalidTask, ErrProcessorNotFound and ErrInvalidProcessor are fatal: they fail
// immediately without retry. ErrLocalExecution is retried by the dispatcher; once
// retries are exhausted the task is forwarded remotely and only a subsequent
// ErrRemoteRequest reaches the caller. ErrSyncFailure and ErrCacheCorrupt are
// logged and handled internally.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task execution sentinel errors
var (
	// ErrInvalidTask indicates a task is missing a required field.
	ErrInvalidTask = New("invalid task")
	// ErrProcessorNotFound indicates no processor is registered for (kind, operation).
	ErrProcessorNotFound = New("processor not found")
	// ErrInvalidProcessor indicates the registered processor cannot be called.
	ErrInvalidProcessor = New("invalid processor")
	// ErrLocalExecution indicates the processor raised or returned a failure.
	ErrLocalExecution = New("local execution failed")
	// ErrRetriesExhausted indicates all local attempts failed.
	ErrRetriesExhausted = New("local retries exhausted")
)

// Remote and synchronization sentinel errors
var (
	// ErrRemoteRequest indicates a network, timeout or non-2xx failure from the remote service.
	ErrRemoteRequest = New("remote request failed")
	// ErrSyncFailure indicates a batch synchronization attempt failed.
	ErrSyncFailure = New("sync failed")
	// ErrOffline indicates the device has no connectivity.
	ErrOffline = New("device offline")
	// ErrNoRemote indicates no remote endpoint is configured.
	ErrNoRemote = New("no remote endpoint configured")
)

// Storage sentinel errors
var (
	// ErrCacheCorrupt indicates a persisted cache entry could not be decoded.
	ErrCacheCorrupt = New("cache entry corrupt")
	// ErrKeyNotFound indicates a key is absent from the persistent store.
	ErrKeyNotFound = New("key not found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrEngineClosed indicates the engine has been destroyed.
	ErrEngineClosed = New("engine closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// EdgeError is the base interface for all edgeshift errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type EdgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func formatContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TaskError represents errors raised while validating or executing a task locally.
// Local execution failures are retryable; validation and processor lookup
// failures are not.
//
// Example:
//
//	err := errors.NewTaskError("processor failed", errors.ErrLocalExecution)
//	err = err.WithTaskID("t-1").WithProcessor("data", "sum")
//	fmt.Println(err) // "task error [task=t-1, processor=data.sum]: processor failed: local execution failed"
type TaskError struct {
	baseError
	TaskID    string
	Kind      string
	Operation string
	Attempt   int
}

// NewTaskError creates a new TaskError. The retryable flag is derived from the
// cause: only ErrLocalExecution failures are retryable by default.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: errors.Is(cause, ErrLocalExecution),
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// WithProcessor adds the (kind, operation) processor key to the error context.
func (e *TaskError) WithProcessor(kind, operation string) *TaskError {
	e.Kind = kind
	e.Operation = operation
	return e
}

// WithAttempt records which attempt produced the error.
func (e *TaskError) WithAttempt(n int) *TaskError {
	e.Attempt = n
	return e
}

// WithSeverity sets the error severity.
func (e *TaskError) WithSeverity(s Severity) *TaskError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TaskError) WithRetryable(r bool) *TaskError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Kind != "" || e.Operation != "" {
		parts = append(parts, fmt.Sprintf("processor=%s.%s", e.Kind, e.Operation))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return formatContext("task error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RemoteError represents failures talking to the remote service: transport
// errors, timeouts and non-2xx responses. It always matches ErrRemoteRequest.
//
// Example:
//
//	err := errors.NewRemoteError("unexpected status", nil).
//		WithEndpoint("https://api.example.com/tasks").WithStatusCode(503)
type RemoteError struct {
	baseError
	Endpoint   string
	StatusCode int
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(message string, cause error) *RemoteError {
	return &RemoteError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
	}
}

// WithEndpoint adds the remote URL to the error context.
func (e *RemoteError) WithEndpoint(url string) *RemoteError {
	e.Endpoint = url
	return e
}

// WithStatusCode adds the HTTP status code to the error context.
func (e *RemoteError) WithStatusCode(code int) *RemoteError {
	e.StatusCode = code
	return e
}

// Error returns the formatted error message.
func (e *RemoteError) Error() string {
	var parts []string
	if e.Endpoint != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", e.Endpoint))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	return formatContext("remote error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *RemoteError) Is(target error) bool {
	if _, ok := target.(*RemoteError); ok {
		return true
	}
	if target == ErrRemoteRequest {
		return true
	}
	return e.baseError.Is(target)
}

// SyncError represents a failed batch synchronization. It is retryable by the
// next sync cycle and always matches ErrSyncFailure.
type SyncError struct {
	baseError
	Pending int
}

// NewSyncError creates a new SyncError for a batch of pending results.
func NewSyncError(message string, cause error) *SyncError {
	return &SyncError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithPending records how many results were in the failed batch.
func (e *SyncError) WithPending(n int) *SyncError {
	e.Pending = n
	return e
}

// Error returns the formatted error message.
func (e *SyncError) Error() string {
	var parts []string
	if e.Pending > 0 {
		parts = append(parts, fmt.Sprintf("pending=%d", e.Pending))
	}
	return formatContext("sync error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *SyncError) Is(target error) bool {
	if _, ok := target.(*SyncError); ok {
		return true
	}
	if target == ErrSyncFailure {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("task id is required").WithField("id")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityWarning,
			retryable: false,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("remote send", 10*time.Second)
//	fmt.Println(err) // "timeout error: remote send (timeout: 10s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing EdgeError with IsRetryable() returning true
//   - Errors wrapping ErrLocalExecution or ErrTimeout
//
// Fatal errors are never retryable, even when wrapped by a retryable type.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var edgeErr EdgeError
	if As(err, &edgeErr) {
		return edgeErr.IsRetryable()
	}

	return Is(err, ErrLocalExecution) || Is(err, ErrTimeout)
}

// IsFatal returns true for errors that must fail a task immediately, without
// retry and without remote fallback: invalid tasks and processor lookup failures.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrInvalidTask) || Is(err, ErrProcessorNotFound) || Is(err, ErrInvalidProcessor)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement EdgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var edgeErr EdgeError
	if As(err, &edgeErr) {
		return edgeErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
