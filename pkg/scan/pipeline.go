// Package scan runs the per-file scan pipeline: read, parse, fan out the
// analyzer set, aggregate results in priority order and compose the report.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/cache"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
	"github.com/Sumatoshi-tech/autoscan/pkg/report/template"
	"github.com/Sumatoshi-tech/autoscan/pkg/reportwriter"
	"github.com/Sumatoshi-tech/autoscan/pkg/retry"
	"github.com/Sumatoshi-tech/autoscan/pkg/textutil"
)

const (
	spanScanFile    = "autoscan.scan.file"
	spanAnalyzerRun = "autoscan.analyzer.run"
)

// Pipeline errors.
var (
	ErrClosed       = errors.New("scan pipeline closed")
	ErrNoAnalyzers  = errors.New("no analyzers configured")
	ErrFileTooLarge = errors.New("crash log exceeds size limit")
	ErrBinaryFile   = errors.New("crash log is not a text file")
	ErrReportInput  = errors.New("input is a generated report")
)

// Composer builds report text from aggregated results.
type Composer interface {
	Compose(in template.Input) string
	ComposeFailure(source string, errs []string) string
}

// ReportSink persists report text for a crash log.
type ReportSink interface {
	WriteReport(ctx context.Context, logPath, text string) bool
}

// Options configures a Pipeline.
type Options struct {
	// Analyzers is required.
	Analyzers *analyze.Set

	// Parser defaults to a plain SegmentParser.
	Parser crashlog.Parser

	// Cache enables read-through/write-through result caching when non-nil.
	Cache *cache.ResultCache

	// FingerprintMode selects how cached entries are validated.
	FingerprintMode fingerprint.Mode

	// Retry defaults to an executor with retry.DefaultPolicy.
	Retry *retry.Executor

	// Composer defaults to the Full report template.
	Composer Composer

	// Writer is optional; without it no report files are written.
	Writer ReportSink

	// MaxParallelism bounds the parallel analyzer group. Zero means the
	// analyzer count capped by GOMAXPROCS.
	MaxParallelism int

	// MaxFileSize rejects larger crash logs. Zero disables the check.
	MaxFileSize int64

	Logger   *slog.Logger
	Tracer   trace.Tracer
	Recorder Recorder

	// OnTransition observes every state change.
	OnTransition func(path string, state State)
}

// Pipeline processes single crash logs. It is safe for concurrent use.
type Pipeline struct {
	opts     Options
	maxPar   int
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// New validates opts and creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Analyzers == nil || opts.Analyzers.Len() == 0 {
		return nil, ErrNoAnalyzers
	}

	if opts.Parser == nil {
		opts.Parser = &crashlog.SegmentParser{}
	}

	if opts.Retry == nil {
		opts.Retry = retry.NewExecutor(retry.DefaultPolicy())
	}

	if opts.Composer == nil {
		opts.Composer = template.New(template.Options{})
	}

	p := &Pipeline{
		opts:     opts,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		recorder: opts.Recorder,
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	if p.tracer == nil {
		p.tracer = nooptrace.NewTracerProvider().Tracer("autoscan")
	}

	if p.recorder == nil {
		p.recorder = nopRecorder{}
	}

	p.maxPar = opts.MaxParallelism
	if p.maxPar <= 0 {
		p.maxPar = min(opts.Analyzers.Len(), runtime.GOMAXPROCS(0))
	}

	return p, nil
}

// Analyzers returns the analyzer set.
func (p *Pipeline) Analyzers() *analyze.Set { return p.opts.Analyzers }

// Close rejects new work and waits for in-flight files to finish.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.inflight.Wait()

	return nil
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	p.inflight.Add(1)

	return true
}

// run carries the mutable state of one ProcessSingle call.
type run struct {
	p      *Pipeline
	path   string
	result Result
	start  time.Time
	span   trace.Span
}

func (r *run) transition(s State) {
	if r.p.opts.OnTransition != nil {
		r.p.opts.OnTransition(r.path, s)
	}
}

func (r *run) finish(ctx context.Context, status State, errs ...error) Result {
	for _, err := range errs {
		if err != nil {
			r.result.Errors = append(r.result.Errors, err.Error())
		}
	}

	switch status {
	case StateCompleted:
		r.result.Status = StatusCompleted
	case StateCancelled:
		r.result.Status = StatusCancelled
		r.result.Results = nil
		r.result.ReportText = ""
	default:
		r.result.Status = StatusFailed
	}

	r.transition(status)

	r.result.Duration = time.Since(r.start)

	if r.result.Status != StatusCompleted {
		r.span.SetStatus(codes.Error, r.result.Status.String())
	}

	r.span.SetAttributes(attribute.String("status", r.result.Status.String()))
	r.p.recorder.FileScanned(ctx, r.result.Status.String(), r.result.Duration)

	return r.result
}

// ProcessSingle scans one crash log. It never returns an error: every fault
// is reflected in the returned Result's status and error list.
func (p *Pipeline) ProcessSingle(ctx context.Context, path string) Result {
	r := &run{
		p:     p,
		path:  path,
		start: time.Now(),
		result: Result{
			ScanID:   uuid.NewString(),
			LogPath:  path,
			Status:   StatusPending,
			Requests: 1,
		},
	}

	ctx, r.span = p.tracer.Start(ctx, spanScanFile, trace.WithAttributes(attribute.String("file", filepath.Base(path))))
	defer r.span.End()

	r.transition(StateReceived)

	if !p.acquire() {
		return r.finish(ctx, StateFailed, ErrClosed)
	}
	defer p.inflight.Done()

	p.recorder.InflightFiles(ctx, 1)
	defer p.recorder.InflightFiles(ctx, -1)

	p.logger.DebugContext(ctx, "scan started", "path", path, "scan_id", r.result.ScanID)

	res := p.process(ctx, r)

	switch res.Status {
	case StatusFailed:
		p.logger.ErrorContext(ctx, "scan failed", "path", path, "errors", res.Errors)
	case StatusCancelled:
		p.logger.DebugContext(ctx, "scan cancelled", "path", path)
	default:
		p.logger.DebugContext(ctx, "scan finished", "path", path,
			"duration", res.Duration, "cache_hits", res.CacheHits, "written", res.Written)
	}

	return res
}

func (p *Pipeline) process(ctx context.Context, r *run) Result {
	if err := ctx.Err(); err != nil {
		return r.finish(ctx, StateCancelled, err)
	}

	// Neither case gets an error report: a report of a report, or one next
	// to a path that does not exist, is noise.
	if reportwriter.IsReport(r.path) {
		return r.finish(ctx, StateFailed, ErrReportInput)
	}

	info, err := os.Stat(r.path)
	if err != nil {
		if p.opts.Cache != nil {
			p.opts.Cache.Invalidate(fingerprint.NormalizePath(r.path))
		}

		return r.finish(ctx, StateFailed, fmt.Errorf("stat crash log: %w", err))
	}

	log, id, err := p.load(r.path, info)
	if err != nil {
		return p.fail(ctx, r, err)
	}

	r.transition(StateParsed)

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, StateCancelled, err)
	}

	r.transition(StateAnalyzing)

	results, hits, faults, aborted := p.analyze(ctx, log, id)

	if err := ctx.Err(); err != nil {
		return r.finish(ctx, StateCancelled, err)
	}

	if aborted != nil {
		return p.fail(ctx, r, multierr.Errors(faults)...)
	}

	r.result.Errors = append(r.result.Errors, errorStrings(faults)...)

	r.transition(StateAggregating)

	r.result.Results = results
	r.result.CacheHits = hits
	r.result.ReportText = p.opts.Composer.Compose(template.Input{
		Source:  r.path,
		Log:     log,
		Results: results,
		ScanID:  r.result.ScanID,
	})

	if hits == len(results) {
		r.transition(StateCached)
	}

	if p.write(ctx, r) {
		r.transition(StateReported)
	}

	return r.finish(ctx, StateCompleted)
}

// fail marks the file failed and still produces an error report.
func (p *Pipeline) fail(ctx context.Context, r *run, errs ...error) Result {
	for _, err := range errs {
		r.result.Errors = append(r.result.Errors, err.Error())
	}

	r.result.ReportText = p.opts.Composer.ComposeFailure(r.path, r.result.Errors)
	r.result.Results = nil

	p.write(ctx, r)

	return r.finish(ctx, StateFailed)
}

func (p *Pipeline) write(ctx context.Context, r *run) bool {
	if p.opts.Writer == nil {
		return false
	}

	if ctx.Err() != nil {
		return false
	}

	r.result.OutputPath = reportwriter.OutputPath(r.path)
	r.result.Written = p.opts.Writer.WriteReport(ctx, r.path, r.result.ReportText)

	if !r.result.Written {
		r.result.OutputPath = ""
	}

	p.recorder.ReportWritten(ctx, r.result.Written)

	return r.result.Written
}

// load reads, fingerprints and parses the crash log.
func (p *Pipeline) load(path string, info fs.FileInfo) (*crashlog.CrashLog, fingerprint.FileID, error) {
	if info.IsDir() {
		return nil, fingerprint.FileID{}, fmt.Errorf("read crash log: %s is a directory", path)
	}

	if p.opts.MaxFileSize > 0 && info.Size() > p.opts.MaxFileSize {
		return nil, fingerprint.FileID{}, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fingerprint.FileID{}, fmt.Errorf("read crash log: %w", err)
	}

	if textutil.IsBinary(data) {
		return nil, fingerprint.FileID{}, ErrBinaryFile
	}

	id := fingerprint.FileID{
		Path:        fingerprint.NormalizePath(path),
		Fingerprint: fingerprint.FromContent(info, data, p.opts.FingerprintMode),
	}

	log, err := p.opts.Parser.Parse(path, string(data))
	if err != nil {
		return nil, id, err
	}

	return log, id, nil
}

// analyze runs the parallel group, then the sequential group in priority order.
// Results land in their set slot so completion order never matters.
func (p *Pipeline) analyze(
	ctx context.Context, log *crashlog.CrashLog, id fingerprint.FileID,
) (results []analyze.Result, hits int, faults, aborted error) {
	set := p.opts.Analyzers
	results = make([]analyze.Result, set.Len())
	parallel, sequential := set.Partition()

	var (
		mu     sync.Mutex
		hitCnt int
	)

	record := func(slot int, res analyze.Result, hit bool, err error) {
		mu.Lock()
		defer mu.Unlock()

		results[slot] = res

		if hit {
			hitCnt++
		}

		if err == nil {
			return
		}

		if isAbort(err) && aborted == nil {
			aborted = err
		}

		faults = multierr.Append(faults, err)
	}

	if len(parallel) > 0 {
		var g errgroup.Group

		g.SetLimit(p.maxPar)

		for _, slot := range parallel {
			if ctx.Err() != nil {
				break
			}

			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				res, hit, err := p.runAnalyzer(ctx, set.At(slot), log, id)
				record(slot, res, hit, err)

				return nil
			})
		}

		_ = g.Wait()
	}

	for _, slot := range sequential {
		if ctx.Err() != nil || aborted != nil {
			break
		}

		res, hit, err := p.runAnalyzer(ctx, set.At(slot), log, id)
		record(slot, res, hit, err)
	}

	return results, hitCnt, faults, aborted
}

func isAbort(err error) bool {
	var ex *retry.ExhaustedError

	return errors.As(err, &ex) && ex.Action == retry.ActionAbort
}

// runAnalyzer is the only place analyzers are invoked. Panics are recovered
// here and become AnalyzerErrors with a failed result for that analyzer.
func (p *Pipeline) runAnalyzer(
	ctx context.Context, a analyze.Analyzer, log *crashlog.CrashLog, id fingerprint.FileID,
) (res analyze.Result, hit bool, err error) {
	name := a.Name()

	if p.opts.Cache != nil {
		cached, ok := p.opts.Cache.Get(id, name)
		p.recorder.CacheLookup(ctx, ok)

		if ok {
			p.recorder.AnalyzerRun(ctx, name, OutcomeCached, 0)

			return cached, true, nil
		}
	}

	ctx, span := p.tracer.Start(ctx, spanAnalyzerRun, trace.WithAttributes(attribute.String("analyzer", name)))
	defer span.End()

	start := time.Now()
	attempts := 0

	defer func() {
		if rec := recover(); rec != nil {
			err = &analyze.AnalyzerError{Analyzer: name, Err: fmt.Errorf("%v", rec), Panicked: true}
			res = analyze.FailedResult(name, err)
			res.Duration = time.Since(start)
			hit = false

			span.SetStatus(codes.Error, "panic")
			p.recorder.AnalyzerRun(ctx, name, OutcomePanicked, res.Duration)
			p.logger.WarnContext(ctx, "analyzer panicked", "analyzer", name, "path", log.Path, "panic", rec)
		}
	}()

	res, err = retry.Execute(ctx, p.opts.Retry, func(ctx context.Context) (analyze.Result, error) {
		attempts++

		return a.Analyze(ctx, log)
	})

	if attempts > 1 {
		p.recorder.Retried(ctx, name, attempts-1)
	}

	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return analyze.Result{}, false, ctx.Err()
		}

		outcome, msg := OutcomeFailed, "analyzer failed"
		if retry.Degraded(err) {
			outcome, msg = OutcomeDegraded, "analyzer degraded"
		}

		err = &analyze.AnalyzerError{Analyzer: name, Err: err}
		res = analyze.FailedResult(name, err)
		res.Duration = elapsed

		span.SetStatus(codes.Error, err.Error())
		p.recorder.AnalyzerRun(ctx, name, outcome, elapsed)
		p.logger.WarnContext(ctx, msg, "analyzer", name, "path", log.Path, "error", err)

		return res, false, err
	}

	if res.AnalyzerName == "" {
		res.AnalyzerName = name
	}

	if res.Duration == 0 {
		res.Duration = elapsed
	}

	p.recorder.AnalyzerRun(ctx, name, OutcomeOK, elapsed)

	if p.opts.Cache != nil && res.Success {
		p.opts.Cache.Put(id, name, res)
	}

	return res, false, nil
}

func errorStrings(err error) []string {
	errs := multierr.Errors(err)
	if len(errs) == 0 {
		return nil
	}

	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}

	return out
}
