// logger.go - Shared structured logging for the billing service.
//
// Usage:
//
//	log := logging.NewLogger("billing")
//	log.WithField("creator_id", id).Info("price created")
package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a logrus logger pre-configured for a named service.
// Output is JSON to stdout. Log level is controlled by LOG_LEVEL env var
// (default: info). The service field is embedded in every log line.
func NewLogger(service string) *logrus.Entry {
	return newLogger(service, os.Getenv("LOG_LEVEL"), os.Stdout)
}

func newLogger(service, levelStr string, out io.Writer) *logrus.Entry {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	log.SetOutput(out)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log.WithField("service", service)
}

// Discard returns an entry that drops everything. Used by tests.
func Discard() *logrus.Entry {
	return newLogger("test", "panic", io.Discard)
}

type contextKey struct{}

// WithContext returns a context carrying the given entry.
func WithContext(ctx context.Context, l *logrus.Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the entry stored by WithContext, or the standard
// logger when none is present.
func FromContext(ctx context.Context) *logrus.Entry {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok && l != nil {
			return l
		}
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
