// Package batch drives many crash logs through the scan pipeline concurrently,
// deduplicating repeated paths within one submission and streaming results.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"

	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
	"github.com/Sumatoshi-tech/autoscan/pkg/scan"
)

const spanBatch = "autoscan.batch"

// ErrClosed is reported for batches submitted after Close.
var ErrClosed = errors.New("batch coordinator closed")

// Processor scans one file. *scan.Pipeline implements it.
type Processor interface {
	ProcessSingle(ctx context.Context, path string) scan.Result
}

// Options configures a Coordinator.
type Options struct {
	// Concurrency bounds simultaneous file pipelines across all batches.
	// Zero means GOMAXPROCS.
	Concurrency int

	// ProgressInterval throttles progress callbacks. Zero means DefaultProgressInterval.
	ProgressInterval time.Duration

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Coordinator runs batches. It is safe for concurrent use.
type Coordinator struct {
	proc   Processor
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

// New creates a Coordinator around proc.
func New(proc Processor, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}

	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}

	c := &Coordinator{
		proc:   proc,
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		logger: opts.Logger,
		tracer: opts.Tracer,
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.tracer == nil {
		c.tracer = nooptrace.NewTracerProvider().Tracer("autoscan")
	}

	return c
}

// RunOption configures one ProcessBatch call.
type RunOption func(*batchConfig)

type batchConfig struct {
	progress ProgressFunc
}

// WithProgress registers a progress callback for the batch.
func WithProgress(fn ProgressFunc) RunOption {
	return func(b *batchConfig) { b.progress = fn }
}

// work is one distinct path and the number of times it was submitted.
type work struct {
	path     string
	requests int
}

// dedupe keeps the first occurrence of each normalized path.
func dedupe(paths []string) []work {
	index := make(map[string]int, len(paths))
	out := make([]work, 0, len(paths))

	for _, p := range paths {
		key := fingerprint.NormalizePath(p)

		if i, ok := index[key]; ok {
			out[i].requests++

			continue
		}

		index[key] = len(out)
		out = append(out, work{path: p, requests: 1})
	}

	return out
}

// ProcessBatch scans every distinct path once and streams one result per
// distinct path in completion order. The channel is buffered for the whole
// batch and closed after the last result, so abandoning it leaks nothing.
//
// Duplicate paths are collapsed within this call only; concurrent batches
// containing the same path each run it.
func (c *Coordinator) ProcessBatch(ctx context.Context, paths []string, opts ...RunOption) <-chan scan.Result {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	items := dedupe(paths)
	out := make(chan scan.Result, len(items))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		for _, it := range items {
			out <- rejected(it, scan.StatusFailed, ErrClosed)
		}

		close(out)

		return out
	}

	c.running.Add(1)
	c.mu.Unlock()

	go c.run(ctx, items, cfg, out)

	return out
}

func (c *Coordinator) run(ctx context.Context, items []work, cfg batchConfig, out chan<- scan.Result) {
	defer c.running.Done()
	defer close(out)

	batchID := uuid.NewString()
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, spanBatch, trace.WithAttributes(
		attribute.String("batch_id", batchID),
		attribute.Int("files", len(items)),
	))
	defer span.End()

	var progress *throttle
	if cfg.progress != nil {
		progress = newThrottle(cfg.progress, c.opts.ProgressInterval, len(items))
		defer progress.stop()
	}

	var (
		wg      sync.WaitGroup
		counts  tally
		countMu sync.Mutex
	)

	emit := func(res scan.Result) {
		countMu.Lock()
		counts.add(res.Status)
		countMu.Unlock()

		out <- res

		if progress != nil {
			progress.increment()
		}
	}

	for i, it := range items {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			for _, rest := range items[i:] {
				emit(rejected(rest, scan.StatusCancelled, err))
			}

			break
		}

		wg.Add(1)

		go func() {
			defer wg.Done()
			defer c.sem.Release(1)

			res := c.proc.ProcessSingle(ctx, it.path)
			res.Requests = it.requests

			emit(res)
		}()
	}

	wg.Wait()

	span.SetAttributes(
		attribute.Int("completed", counts.completed),
		attribute.Int("failed", counts.failed),
		attribute.Int("cancelled", counts.cancelled),
	)

	c.logger.InfoContext(ctx, "batch finished",
		"batch_id", batchID,
		"files", len(items),
		"completed", counts.completed,
		"failed", counts.failed,
		"cancelled", counts.cancelled,
		"duration", time.Since(start),
	)
}

func rejected(it work, status scan.Status, err error) scan.Result {
	return scan.Result{
		ScanID:   uuid.NewString(),
		LogPath:  it.path,
		Status:   status,
		Errors:   []string{err.Error()},
		Requests: it.requests,
	}
}

type tally struct {
	completed int
	failed    int
	cancelled int
}

func (t *tally) add(s scan.Status) {
	switch s {
	case scan.StatusCompleted:
		t.completed++
	case scan.StatusCancelled:
		t.cancelled++
	default:
		t.failed++
	}
}

// Close rejects new batches and waits for running ones to drain.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.running.Wait()

	return nil
}

// Collect drains a result stream.
func Collect(results <-chan scan.Result) []scan.Result {
	out := make([]scan.Result, 0, cap(results))

	for r := range results {
		out = append(out, r)
	}

	return out
}
