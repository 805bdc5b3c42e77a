package adapters

// NoOpLoggerAdapter implements LoggerAdapter with no-op methods
type NoOpLoggerAdapter struct{}

var _ LoggerAdapter = (*NoOpLoggerAdapter)(nil)

// NewNoOpLoggerAdapter creates a new no-op logger
func NewNoOpLoggerAdapter() *NoOpLoggerAdapter {
	return &NoOpLoggerAdapter{}
}

func (n *NoOpLoggerAdapter) Debug(message string, keysAndValues ...any) {}
func (n *NoOpLoggerAdapter) Info(message string, keysAndValues ...any)  {}
func (n *NoOpLoggerAdapter) Warn(message string, keysAndValues ...any)  {}
func (n *NoOpLoggerAdapter) Error(message string, keysAndValues ...any) {}
