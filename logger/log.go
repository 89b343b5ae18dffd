// Package logger carries a request-scoped logrus.FieldLogger through a
// context.Context, so every component can attach fields (taskId,
// containerId, connectionId) without threading a logger argument through
// every call.
package logger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// G is a short alias for GetLogger, matching the convention used by the
// rest of this codebase's logging call sites.
var G = GetLogger

type loggerKey struct{}

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, l logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger retrieves the logger attached to ctx, or the standard logrus
// logger if none was attached.
func GetLogger(ctx context.Context) logrus.FieldLogger {
	l := ctx.Value(loggerKey{})
	if l == nil {
		return logrus.StandardLogger()
	}
	return l.(logrus.FieldLogger)
}

// WithField returns a context whose logger has the given field attached.
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithField(key, value))
}

// WithFields returns a context whose logger has the given fields attached.
func WithFields(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}
