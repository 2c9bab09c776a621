// Package reportwriter persists composed reports next to their source crash logs.
package reportwriter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Suffix is appended to the crash log stem to name its report.
const Suffix = "-AUTOSCAN.md"

// Write batching defaults.
const (
	DefaultBatchSize  = 8
	DefaultBatchPause = 10 * time.Millisecond
)

const reportPerm = 0o644

// ErrAutoSaveDisabled is returned by Write when auto-save is off.
var ErrAutoSaveDisabled = errors.New("report auto-save disabled")

// Options configures a Writer.
type Options struct {
	// AutoSave gates every write. When false no file is touched.
	AutoSave bool

	// BatchSize bounds concurrent writes; every BatchSize-th write pauses for BatchPause.
	BatchSize  int
	BatchPause time.Duration

	Logger *slog.Logger
}

// Writer writes one markdown report per crash log with whole-file atomic replace,
// so concurrent writers to the same path leave exactly one complete report.
type Writer struct {
	opts   Options
	sem    *semaphore.Weighted
	writes atomic.Int64
	failed atomic.Int64
	logger *slog.Logger

	writeFile func(path string, data []byte) error
}

// New creates a Writer.
func New(opts Options) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		opts:   opts,
		sem:       semaphore.NewWeighted(int64(opts.BatchSize)),
		logger:    logger,
		writeFile: writeAtomic,
	}
}

// OutputPath returns the report path for a crash log: <dir>/<stem>-AUTOSCAN.md.
func OutputPath(logPath string) string {
	dir := filepath.Dir(logPath)
	base := filepath.Base(logPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(dir, stem+Suffix)
}

// IsReport reports whether path names a generated report.
func IsReport(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// Enabled reports whether auto-save is on.
func (w *Writer) Enabled() bool { return w.opts.AutoSave }

// Written returns the number of reports written successfully.
func (w *Writer) Written() int64 { return w.writes.Load() }

// Failed returns the number of failed writes.
func (w *Writer) Failed() int64 { return w.failed.Load() }

// WriteReport writes text as the report for logPath and reports success.
// It returns false without touching the filesystem when auto-save is off.
// Failures are logged, never returned.
func (w *Writer) WriteReport(ctx context.Context, logPath, text string) bool {
	if !w.opts.AutoSave {
		return false
	}

	_, err := w.Write(ctx, logPath, text)
	if err != nil {
		w.logger.WarnContext(ctx, "report write failed", "log", logPath, "error", err)

		return false
	}

	return true
}

// WriteReportAsync runs WriteReport on its own goroutine.
// The channel receives exactly one value and is then closed.
func (w *Writer) WriteReportAsync(ctx context.Context, logPath, text string) <-chan bool {
	done := make(chan bool, 1)

	go func() {
		defer close(done)

		done <- w.WriteReport(ctx, logPath, text)
	}()

	return done
}

// Write writes the report and returns its path.
func (w *Writer) Write(ctx context.Context, logPath, text string) (string, error) {
	if !w.opts.AutoSave {
		return "", ErrAutoSaveDisabled
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire write slot: %w", err)
	}
	defer w.sem.Release(1)

	out := OutputPath(logPath)

	w.logChanges(ctx, out, text)

	if err := w.writeFile(out, []byte(text)); err != nil {
		w.failed.Add(1)

		return "", err
	}

	n := w.writes.Add(1)
	if w.opts.BatchPause > 0 && n%int64(w.opts.BatchSize) == 0 {
		pause(ctx, w.opts.BatchPause)
	}

	return out, nil
}

func (w *Writer) logChanges(ctx context.Context, out, text string) {
	if !w.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	old, err := os.ReadFile(out)
	if err != nil {
		return
	}

	summary := Summarize(string(old), text)
	if summary.Unchanged() {
		w.logger.DebugContext(ctx, "report unchanged", "path", out)

		return
	}

	w.logger.DebugContext(ctx, "report updated", "path", out,
		"added", summary.Added, "removed", summary.Removed, "changed", summary.Changed)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".autoscan-*.tmp")
	if err != nil {
		return fmt.Errorf("report writer create: %w", err)
	}

	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	if writeErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("report writer write: %w", writeErr)
	}

	syncErr := tmp.Sync()
	if syncErr != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("report writer sync: %w", syncErr)
	}

	closeErr := tmp.Close()
	if closeErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("report writer close: %w", closeErr)
	}

	chmodErr := os.Chmod(tmpPath, reportPerm)
	if chmodErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("report writer chmod: %w", chmodErr)
	}

	renameErr := os.Rename(tmpPath, path)
	if renameErr != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("report writer rename: %w", renameErr)
	}

	return nil
}

func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
