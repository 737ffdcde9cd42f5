// Package logger defines the structured logging surface the library uses.
// Implementations exist for the phuslu-style log package, log/slog, and a
// no-op logger for tests.
package logger

// Logger accepts a message plus alternating key/value pairs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
