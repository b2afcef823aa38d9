// Package klog provides knit's process-wide structured logger: a single
// logrus.Logger configured once at startup and handed out as scoped
// *logrus.Entry values, in the style of distribution-distribution's
// registry.configureLogging/context.GetLogger pairing.
package klog

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	base     = logrus.New()
	initOnce sync.Once
)

// Format selects the log line encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures Init.
type Options struct {
	Level  string // logrus level name; empty defaults to "info"
	Format Format // empty defaults to FormatText
	Output io.Writer
}

// Init configures the process-wide logger. It is idempotent: only the first
// call takes effect, matching the once-at-startup shape of the teacher's
// configureLogging.
func Init(opts Options) error {
	var initErr error
	initOnce.Do(func() {
		level := opts.Level
		if level == "" {
			level = "info"
		}
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			initErr = err
			return
		}
		base.SetLevel(parsed)

		switch opts.Format {
		case FormatJSON:
			base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
		default:
			base.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true})
		}

		if opts.Output != nil {
			base.SetOutput(opts.Output)
		}
	})
	return initErr
}

type ctxKey struct{}

// WithLogger attaches a scoped entry to ctx, for handlers that want to add
// request- or operation-specific fields (package, version, phase, ...).
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry attached by WithLogger, or the root logger's
// entry if none was attached.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(base)
}

// With returns a new entry off the process logger carrying the given
// fields, a convenience wrapper so call sites don't import logrus directly.
func With(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

// Logger returns the underlying process-wide logger, for callers (like
// cmd/knit) that need to wire it into a third-party component expecting a
// *logrus.Logger directly.
func Logger() *logrus.Logger { return base }
