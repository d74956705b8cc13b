package logging

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

type loggerKey struct{}

// discard is returned when a context carries no logger; library code never
// writes to the process-wide default on its own.
var discard = log.NewWithOptions(io.Discard, log.Options{Level: LevelOff})

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context logger, or a silent one.
func FromContext(ctx context.Context) *log.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok && logger != nil {
			return logger
		}
	}
	return discard
}
