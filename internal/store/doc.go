// Package store provides the persistent key-value storage used to keep the
// executor's result cache and pending-sync set across restarts.
//
// [Store] is the capability interface. [MemoryStore] backs tests and
// ephemeral engines; [FileStore] keeps the whole key space in a single YAML
// state file that is rewritten atomically (temp file + rename) under an
// exclusive flock(2) so that several edgeshift processes sharing a data
// directory never observe a half-written file.
package store
