package glpbr

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all log records. Enabled returns false so callers skip formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for glpbr and its auxiliary packages.
// By default nothing is logged. Pass nil to restore silent behavior.
// SetLogger is safe for concurrent use.
//
// Log levels used:
//   - [slog.LevelDebug]: node cache misses, graph sizes.
//   - [slog.LevelInfo]: completed shader builds, baked atlases and rendered previews.
//
// Example:
//
//	glpbr.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Auxiliary packages call it to share configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
