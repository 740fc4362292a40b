// Package diag wires the pool's internal operational events (worker
// lifecycle, spill-file creation, fatal worker errors) to a structured
// logger. Steals are not logged.
// This is deliberately separate from the exact-format user-visible
// diagnostics spec'd for stderr (see internal/scanner.diagnostic): one is
// a stable, script-scraped line format, the other is an operator-facing
// log that can be rotated and silenced independently.
package diag

import (
	"io"
	"log/slog"

	"github.com/agilira/lethe"
)

// Logger is a no-op-safe wrapper around *slog.Logger. The zero value logs
// nothing, matching the default (no --log-file) CLI configuration.
type Logger struct {
	inner  *slog.Logger
	rotate *lethe.Logger
}

// NewFile creates a Logger that writes structured text records to a
// size-rotated file at path, using lethe's default rotation policy
// (100MB, 5 backups, synchronous writes).
func NewFile(path string) (*Logger, error) {
	rotate, err := lethe.NewWithDefaults(path)
	if err != nil {
		return nil, err
	}
	handler := slog.NewTextHandler(rotate, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{inner: slog.New(handler), rotate: rotate}, nil
}

// Discard returns a Logger that drops every record, for runs started
// without --log-file.
func Discard() *Logger {
	return &Logger{inner: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) WorkerStarted(id int) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Info("worker started", "worker", id)
}

func (l *Logger) WorkerStopped(id int) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Info("worker stopped", "worker", id)
}

func (l *Logger) SpillCreated(worker int) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Warn("queue spilled to disk", "worker", worker)
}

func (l *Logger) FatalWorkerError(worker int, err error) {
	if l == nil || l.inner == nil {
		return
	}
	l.inner.Error("worker exited on fatal error", "worker", worker, "error", err)
}

// Close flushes and closes the underlying rotating file, if any.
func (l *Logger) Close() error {
	if l == nil || l.rotate == nil {
		return nil
	}
	return l.rotate.Close()
}
