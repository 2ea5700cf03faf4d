package core

import "github.com/hupe1980/agentloop/logging"

// scopedLogger binds run identity (run_id, agent, function_call_id, ...) to
// every record. A nil logger becomes a NoOpLogger.
type scopedLogger struct {
	logger logging.Logger
}

func newScopedLogger(l logging.Logger, fields ...any) *scopedLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	return &scopedLogger{logger: logging.With(l, fields...)}
}

func (s *scopedLogger) with(fields ...any) *scopedLogger {
	return &scopedLogger{logger: logging.With(s.logger, fields...)}
}

// Logger returns the scoped logger.
func (s *scopedLogger) Logger() logging.Logger { return s.logger }

// LogDebug logs a debug message.
func (s *scopedLogger) LogDebug(msg string, args ...any) { s.logger.Debug(msg, args...) }

// LogInfo logs an info message.
func (s *scopedLogger) LogInfo(msg string, args ...any) { s.logger.Info(msg, args...) }

// LogWarn logs a warning message.
func (s *scopedLogger) LogWarn(msg string, args ...any) { s.logger.Warn(msg, args...) }

// LogError logs an error message.
func (s *scopedLogger) LogError(msg string, args ...any) { s.logger.Error(msg, args...) }
