// Package logger provides structured logging functionality for the engine.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries request-scoped loggers through
// context.Context so that every line written while handling an event can be
// correlated by event_id.
package logger
