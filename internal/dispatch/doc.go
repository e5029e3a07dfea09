// Package dispatch decides where each task runs and carries the decision out.
//
// [Policy] answers "local or remote?" for a task and a device snapshot: a
// short list of fast-path rules first, then a composite of task, device and
// network scores compared against a network-dependent threshold. Every
// weight and threshold is configurable through [Scoring].
//
// [Dispatcher] executes the decision. Local work goes through the executor
// with bounded retries and linear backoff; once retries are exhausted the task
// is forwarded to the remote service once. Fatal errors (invalid tasks,
// unknown or unusable processors) fail immediately. Counters are kept in
// [Stats].
package dispatch
