package framebridge

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/framebridge/backend"
	"github.com/gogpu/framebridge/internal/owner"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures the logger for framebridge and its sub-packages,
// including the owner threads, the GPU backend and the wgpu HAL.
// By default, framebridge produces no log output.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by framebridge:
//   - [slog.LevelDebug]: per-message protocol traces (lock, unlock, bind)
//   - [slog.LevelInfo]: lifecycle events (owner start and exit, backend open)
//   - [slog.LevelWarn]: leaked frames, lost contexts, skipped frames
//
// Example:
//
//	framebridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	owner.SetLogger(l)
	backend.SetLogger(l)
}

// Logger returns the current logger used by framebridge.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
