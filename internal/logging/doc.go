// Package logging provides structured logging for edgeshift.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation for the dispatcher, executor and sync loops. Log files
// are rotated by size through lumberjack.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (component, task ID, arbitrary attributes)
//   - Size-based rotation with optional gzip compression of backups
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/lib/edgeshift", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("task completed", "duration_ms", 150)
//
// # Context Propagation
//
//	execLogger := logger.WithComponent("executor")
//	execLogger.WithTask("t-42").Debug("cache hit")
//
// For tests, use [NopLogger] to discard all output.
package logging
