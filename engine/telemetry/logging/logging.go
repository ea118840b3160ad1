// Package logging is a thin veneer over log/slog shared by the engine and
// the CLI. It exists so that every component logs with the same handler and
// a stable "component" attribute.
package logging

import (
	"log/slog"
	"os"
)

// Options tunes the root logger.
type Options struct {
	Level   slog.Level
	JSON    bool
	AddTime bool
}

// New builds the root logger. Text output by default; JSON when requested.
func New(opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: opts.Level}
	if !opts.AddTime {
		ho.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(os.Stderr, ho)
	} else {
		h = slog.NewTextHandler(os.Stderr, ho)
	}
	return slog.New(h)
}

// For returns a child logger tagged with the component name. Nil-safe so
// entities can hold a logger without wiring checks.
func For(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(slog.String("component", component))
}
