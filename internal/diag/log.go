// Package diag owns the engine's single logrus logger, the way
// kanso/internal/errors is the one place that owns diagnostic
// presentation. internal/program and internal/absint log through this
// package rather than constructing their own loggers.
package diag

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	if lvl, err := logrus.ParseLevel(os.Getenv("PANOPTICON_LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

// Logger returns the shared logger instance.
func Logger() *logrus.Logger { return log }

// WithFields is a thin convenience wrapper so callers don't import
// logrus directly for the common case.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}
