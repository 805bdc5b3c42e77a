package adapters

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
	LogLevelNone  LogLevel = "NONE"
)

// LoggerAdapter is an interface for structured logging.
// Implement this interface to use custom loggers.
//
// Each method takes a constant message followed by alternating key/value
// pairs, e.g. Warn("queue overflow", "dropped", 3, "capacity", 1000).
type LoggerAdapter interface {
	// Debug logs a debug message
	Debug(message string, keysAndValues ...any)
	// Info logs an info message
	Info(message string, keysAndValues ...any)
	// Warn logs a warning message
	Warn(message string, keysAndValues ...any)
	// Error logs an error message
	Error(message string, keysAndValues ...any)
}
