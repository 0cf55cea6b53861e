// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(newTestHandler(t))
}

func newTestHandler(t testing.TB) slog.Handler {
	return slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// LogRecorder keeps the messages logged through it, in addition to writing
// them to the test log.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is one recorded log call.
type LogEntry struct {
	Level   slog.Level
	Message string
}

// NewRecordingLogger returns a test logger and the recorder that sees its records.
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogRecorder) {
	t.Helper()
	rec := &LogRecorder{}
	return slog.New(&recordingHandler{Handler: newTestHandler(t), rec: rec}), rec
}

// Messages returns the messages logged at level or above, in order.
func (r *LogRecorder) Messages(level slog.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level >= level {
			out = append(out, e.Message)
		}
	}
	return out
}

type recordingHandler struct {
	slog.Handler
	rec *LogRecorder
}

func (h *recordingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.rec.mu.Lock()
	h.rec.entries = append(h.rec.entries, LogEntry{Level: r.Level, Message: r.Message})
	h.rec.mu.Unlock()
	return h.Handler.Handle(ctx, r)
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithAttrs(attrs), rec: h.rec}
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	return &recordingHandler{Handler: h.Handler.WithGroup(name), rec: h.rec}
}
