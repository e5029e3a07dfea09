// Package syncer pushes results produced while offline to the remote service.
//
// A [Coordinator] reads the executor's pending set, sends every pending result
// in one batch, and acknowledges the IDs the service accepted. It runs on a
// timer and whenever the device goes from offline to online. Failures leave
// the pending set untouched; they are logged and retried on the next trigger.
package syncer
