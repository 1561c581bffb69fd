package common

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel is one of the standard logrus severities, as a config-friendly
// string.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggerConfig controls how NewLogger formats and filters the process
// logger.
type LoggerConfig struct {
	Level  LogLevel
	Format string // "json" or "text"
}

// NewLogger builds a logger using cfg, routed through OutputSplitter like
// the package-level Logger.
func NewLogger(cfg LoggerConfig) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(&OutputSplitter{})
	return logger
}

// ContextLogger carries a fixed set of fields through a chain of log calls,
// so a request or operation's identifying fields don't need to be repeated
// at every call site.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger wraps logger (or the package Logger, if nil) with a base
// set of fields.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

func (cl *ContextLogger) with(fields map[string]interface{}) *ContextLogger {
	merged := make(logrus.Fields, len(cl.fields)+len(fields))
	for k, v := range cl.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: merged}
}

func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	return cl.with(map[string]interface{}{key: value})
}

func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	return cl.with(fields)
}

func (cl *ContextLogger) WithError(err error) *ContextLogger {
	return cl.with(map[string]interface{}{"error": err.Error()})
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Debugf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}
func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// RequestLogger builds a ContextLogger pre-populated with the identifying
// fields of one HTTP request.
func RequestLogger(method, path, requestID string) *ContextLogger {
	return NewContextLogger(Logger, map[string]interface{}{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})
}

// LogDuration returns a func that, when called, logs operation's elapsed
// time against logger. Intended for `defer LogDuration(logger, "commit")()`.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("operation completed")
	}
}
