package logger

// NoOpLogger discards all log messages. Useful for tests and for components
// that accept an optional logger.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Tracef discards the message.
func (n *NoOpLogger) Tracef(format string, args ...interface{}) {}

// Debugf discards the message.
func (n *NoOpLogger) Debugf(format string, args ...interface{}) {}

// Infof discards the message.
func (n *NoOpLogger) Infof(format string, args ...interface{}) {}

// Warnf discards the message.
func (n *NoOpLogger) Warnf(format string, args ...interface{}) {}

// Errorf discards the message.
func (n *NoOpLogger) Errorf(format string, args ...interface{}) {}
