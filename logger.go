package lotterysim

import "go.uber.org/zap"

// DefaultLogger implements Logger on top of a zap SugaredLogger.
// The zero value logs through zap's global logger.
type DefaultLogger struct {
	sugar *zap.SugaredLogger
}

// NewDefaultLogger creates a logger backed by a production zap configuration
func NewDefaultLogger() *DefaultLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &DefaultLogger{sugar: l.Sugar()}
}

// NewZapLogger wraps an existing zap logger
func NewZapLogger(l *zap.Logger) *DefaultLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &DefaultLogger{sugar: l.Sugar()}
}

func (l *DefaultLogger) s() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.S()
	}
	return l.sugar
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) {
	l.s().Infof(msg, args...)
}

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) {
	l.s().Errorf(msg, args...)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) {
	l.s().Debugf(msg, args...)
}

// Sync flushes buffered log entries
func (l *DefaultLogger) Sync() error {
	return l.s().Sync()
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

// Info does nothing (silent)
func (l *SilentLogger) Info(msg string, args ...any) {}

// Error does nothing (silent)
func (l *SilentLogger) Error(msg string, args ...any) {}

// Debug does nothing (silent)
func (l *SilentLogger) Debug(msg string, args ...any) {}

func loggerOrSilent(l Logger) Logger {
	if l == nil {
		return NewSilentLogger()
	}
	return l
}
