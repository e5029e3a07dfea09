// Package task defines the unit of work dispatched by edgeshift: the immutable
// [Task] submitted by callers, the uniform [Result] outcome returned for both
// local and remote execution, the [Future] handle for asynchronous submission,
// and the [State] values that describe a task's lifecycle.
package task
