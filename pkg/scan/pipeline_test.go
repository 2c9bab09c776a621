package scan_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/cache"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/report"
	"github.com/Sumatoshi-tech/autoscan/pkg/reportwriter"
	"github.com/Sumatoshi-tech/autoscan/pkg/retry"
	"github.com/Sumatoshi-tech/autoscan/pkg/scan"
)

var errBroken = errors.New("rule table missing")

func newPipeline(t *testing.T, opts scan.Options) *scan.Pipeline {
	t.Helper()

	p, err := scan.New(opts)
	require.NoError(t, err)

	t.Cleanup(func() { _ = p.Close() })

	return p
}

func TestNew_RequiresAnalyzers(t *testing.T) {
	t.Parallel()

	_, err := scan.New(scan.Options{})
	require.ErrorIs(t, err, scan.ErrNoAnalyzers)
}

func TestProcessSingle_CompletesInPriorityOrder(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash-1.log", sampleLog)

	var (
		states []scan.State
		mu     sync.Mutex
	)

	p := newPipeline(t, scan.Options{
		Analyzers: analyze.MustSet(
			newFake("late", 30, true),
			newFake("early", 10, true),
			newFake("middle", 20, false),
		),
		OnTransition: func(_ string, s scan.State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	res := p.ProcessSingle(context.Background(), path)

	require.Equal(t, scan.StatusCompleted, res.Status, res.Errors)
	assert.NotEmpty(t, res.ScanID)
	assert.Equal(t, path, res.LogPath)
	assert.Empty(t, res.Errors)
	assert.Positive(t, res.Duration)

	names := make([]string, len(res.Results))
	for i, r := range res.Results {
		names[i] = r.AnalyzerName
	}

	assert.Equal(t, []string{"early", "middle", "late"}, names)
	assert.Contains(t, res.ReportText, "early looked at Fallout 4 v1.10.163")

	assert.Equal(t, []scan.State{
		scan.StateReceived, scan.StateParsed, scan.StateAnalyzing, scan.StateAggregating, scan.StateCompleted,
	}, states)
	assert.False(t, res.Written)
}

func TestProcessSingle_SequentialGroupRunsInPriorityOrderAfterParallel(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	var (
		mu    sync.Mutex
		order []string
	)

	track := func(name string, delay time.Duration) *fakeAnalyzer {
		f := newFake(name, 0, false)
		f.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			time.Sleep(delay)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()

			return analyze.Result{AnalyzerName: name, Success: true}, nil
		}

		return f
	}

	seqB := track("seq-b", 0)
	seqB.priority = 5
	seqA := track("seq-a", 0)
	seqA.priority = 1
	par := track("par", 20*time.Millisecond)
	par.priority = 9
	par.parallel = true

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(seqB, par, seqA)})

	res := p.ProcessSingle(context.Background(), path)
	require.Equal(t, scan.StatusCompleted, res.Status)

	assert.Equal(t, []string{"par", "seq-a", "seq-b"}, order)
}

func TestProcessSingle_AnalyzerFaultIsIsolated(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	broken := newFake("broken", 10, true)
	broken.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
		return analyze.Result{}, errBroken
	}

	healthy := newFake("healthy", 20, true)

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(broken, healthy)})

	res := p.ProcessSingle(context.Background(), path)

	require.Equal(t, scan.StatusCompleted, res.Status)
	require.Len(t, res.Results, 2)

	assert.False(t, res.Results[0].Success)
	assert.Equal(t, analyze.SeverityError, res.Results[0].Severity)
	assert.True(t, res.Results[1].Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "rule table missing")
	assert.Equal(t, int64(1), healthy.calls.Load())
}

func TestProcessSingle_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	panicky := newFake("panicky", 10, true)
	panicky.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
		panic("index out of range")
	}

	seqPanicky := newFake("seq-panicky", 15, false)
	seqPanicky.fn = panicky.fn

	healthy := newFake("healthy", 20, false)

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(panicky, seqPanicky, healthy)})

	res := p.ProcessSingle(context.Background(), path)

	require.Equal(t, scan.StatusCompleted, res.Status)
	assert.False(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.True(t, res.Results[2].Success)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "panicked")
	assert.Contains(t, res.ReportText, "could not complete")
}

func TestProcessSingle_DeterministicUnderRandomDelays(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	analyzers := make([]analyze.Analyzer, 0, 8)

	for i := range 8 {
		f := newFake(string(rune('a'+i)), 8-i, true)
		f.fn = func(_ context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
			time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)

			sev := analyze.Severity(i % 4)

			return analyze.Result{
				AnalyzerName: f.name,
				Success:      true,
				Severity:     sev,
				Lines:        []string{f.name + ": " + log.MainError},
			}, nil
		}
		analyzers = append(analyzers, f)
	}

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(analyzers...), MaxParallelism: 8})

	first := p.ProcessSingle(context.Background(), path)
	require.Equal(t, scan.StatusCompleted, first.Status)

	for range 5 {
		again := p.ProcessSingle(context.Background(), path)
		assert.Equal(t, first.ReportText, again.ReportText)
	}
}

func TestProcessSingle_CacheIsTransparent(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	a := newFake("a", 1, true)
	b := newFake("b", 2, false)
	c := cache.New()

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(a, b), Cache: c})

	cold := p.ProcessSingle(context.Background(), path)
	warm := p.ProcessSingle(context.Background(), path)

	require.Equal(t, scan.StatusCompleted, warm.Status)
	assert.Equal(t, 0, cold.CacheHits)
	assert.Equal(t, 2, warm.CacheHits)
	assert.Equal(t, int64(1), a.calls.Load())
	assert.Equal(t, int64(1), b.calls.Load())

	if diff := cmp.Diff(cold.Results, warm.Results, cmpopts.IgnoreUnexported(report.Fragment{})); diff != "" {
		t.Errorf("warm results differ from cold (-cold +warm):\n%s", diff)
	}

	assert.Equal(t, cold.ReportText, warm.ReportText)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestProcessSingle_EditedFileMissesCache(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	a := newFake("a", 1, true)
	c := cache.New()
	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(a), Cache: c})

	p.ProcessSingle(context.Background(), path)

	require.NoError(t, os.WriteFile(path, []byte(sampleLog+"\t[02] Another.esp\n"), 0o600))

	res := p.ProcessSingle(context.Background(), path)
	require.Equal(t, scan.StatusCompleted, res.Status)

	assert.Equal(t, int64(2), a.calls.Load())
	assert.Equal(t, int64(1), c.Stats().Stale)
}

func TestProcessSingle_FailedAnalyzerIsNotCached(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	broken := newFake("broken", 1, true)
	broken.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
		return analyze.Result{}, errBroken
	}

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(broken), Cache: cache.New()})

	p.ProcessSingle(context.Background(), path)
	p.ProcessSingle(context.Background(), path)

	assert.Equal(t, int64(2), broken.calls.Load())
}

func TestProcessSingle_ParseFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeLog(t, dir, "crash-empty.log", "  \n")

	a := newFake("a", 1, true)
	p := newPipeline(t, scan.Options{
		Analyzers: analyze.MustSet(a),
		Writer:    reportwriter.New(reportwriter.Options{AutoSave: true}),
	})

	res := p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "empty input")
	assert.Empty(t, res.Results)
	assert.Zero(t, a.calls.Load())
	assert.Contains(t, res.ReportText, "Scan Failed")
	assert.True(t, res.Written)
	assert.Equal(t, filepath.Join(dir, "crash-empty-AUTOSCAN.md"), res.OutputPath)
}

func TestProcessSingle_MissingFile(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(newFake("a", 1, true))})

	res := p.ProcessSingle(context.Background(), filepath.Join(t.TempDir(), "nope.log"))

	assert.Equal(t, scan.StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "stat crash log")
}

func TestProcessSingle_MissingFileWritesNoReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := newPipeline(t, scan.Options{
		Analyzers: analyze.MustSet(newFake("a", 1, true)),
		Writer:    reportwriter.New(reportwriter.Options{AutoSave: true}),
	})

	res := p.ProcessSingle(context.Background(), filepath.Join(dir, "crash-typo.log"))

	assert.Equal(t, scan.StatusFailed, res.Status)
	assert.False(t, res.Written)
	assert.Empty(t, res.OutputPath)
	assert.NoFileExists(t, filepath.Join(dir, "crash-typo-AUTOSCAN.md"))
}

func TestProcessSingle_RejectsReportInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeLog(t, dir, "crash-x-AUTOSCAN.md", sampleLog)

	a := newFake("a", 1, true)
	p := newPipeline(t, scan.Options{
		Analyzers: analyze.MustSet(a),
		Writer:    reportwriter.New(reportwriter.Options{AutoSave: true}),
	})

	res := p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], scan.ErrReportInput.Error())
	assert.False(t, res.Written)
	assert.Zero(t, a.calls.Load())
	assert.NoFileExists(t, filepath.Join(dir, "crash-x-AUTOSCAN-AUTOSCAN.md"))
}

func TestProcessSingle_FileTooLarge(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)
	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(newFake("a", 1, true)), MaxFileSize: 10})

	res := p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	assert.Contains(t, res.Errors[0], scan.ErrFileTooLarge.Error())
}

func TestProcessSingle_BinaryFile(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", "MZ\x00\x00"+sampleLog)
	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(newFake("a", 1, true))})

	res := p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], scan.ErrBinaryFile.Error())
}

func TestProcessSingle_Cancelled(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	t.Run("before start", func(t *testing.T) {
		t.Parallel()

		a := newFake("a", 1, true)
		p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(a)})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := p.ProcessSingle(ctx, path)

		assert.Equal(t, scan.StatusCancelled, res.Status)
		assert.Zero(t, a.calls.Load())
		assert.Empty(t, res.ReportText)
	})

	t.Run("between analyzers", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		first := newFake("first", 1, false)
		first.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			cancel()

			return analyze.Result{AnalyzerName: "first", Success: true}, nil
		}

		second := newFake("second", 2, false)

		p := newPipeline(t, scan.Options{
			Analyzers: analyze.MustSet(first, second),
			Writer:    reportwriter.New(reportwriter.Options{AutoSave: true}),
		})

		res := p.ProcessSingle(ctx, path)

		assert.Equal(t, scan.StatusCancelled, res.Status)
		assert.Zero(t, second.calls.Load())
		assert.False(t, res.Written)
	})
}

func TestProcessSingle_RetryPolicy(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	t.Run("transient then success", func(t *testing.T) {
		t.Parallel()

		flaky := newFake("flaky", 1, true)
		flaky.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			if flaky.calls.Load() < 2 {
				return analyze.Result{}, retry.Transient(errBroken)
			}

			return analyze.Result{AnalyzerName: "flaky", Success: true}, nil
		}

		policy := retry.BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, ContinueOnError: true}
		p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(flaky), Retry: retry.NewExecutor(policy)})

		res := p.ProcessSingle(context.Background(), path)

		require.Equal(t, scan.StatusCompleted, res.Status)
		assert.True(t, res.Results[0].Success)
		assert.Equal(t, int64(2), flaky.calls.Load())
	})

	t.Run("continue past exhausted retries is degraded", func(t *testing.T) {
		t.Parallel()

		flaky := newFake("flaky", 1, true)
		flaky.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			return analyze.Result{}, retry.Transient(errBroken)
		}

		broken := newFake("broken", 2, true)
		broken.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			return analyze.Result{}, errBroken
		}

		rec := &outcomeRecorder{}
		policy := retry.BackoffPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, ContinueOnError: true}
		p := newPipeline(t, scan.Options{
			Analyzers: analyze.MustSet(flaky, broken, newFake("ok", 3, true)),
			Retry:     retry.NewExecutor(policy),
			Recorder:  rec,
		})

		res := p.ProcessSingle(context.Background(), path)

		require.Equal(t, scan.StatusCompleted, res.Status)
		assert.Equal(t, scan.OutcomeDegraded, rec.outcome("flaky"))
		assert.Equal(t, scan.OutcomeDegraded, rec.outcome("broken"))
		assert.Equal(t, scan.OutcomeOK, rec.outcome("ok"))
	})

	t.Run("abort fails the file", func(t *testing.T) {
		t.Parallel()

		broken := newFake("broken", 1, false)
		broken.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
			return analyze.Result{}, errBroken
		}

		after := newFake("after", 2, false)

		rec := &outcomeRecorder{}
		p := newPipeline(t, scan.Options{
			Analyzers: analyze.MustSet(broken, after),
			Retry:     retry.NewExecutor(retry.Never{}),
			Recorder:  rec,
		})

		res := p.ProcessSingle(context.Background(), path)

		assert.Equal(t, scan.StatusFailed, res.Status)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "rule table missing")
		assert.Zero(t, after.calls.Load())
		assert.Contains(t, res.ReportText, "Scan Failed")
		assert.Equal(t, scan.OutcomeFailed, rec.outcome("broken"))
	})
}

func TestProcessSingle_MissingFileInvalidatesCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeLog(t, dir, "crash.log", sampleLog)

	c := cache.New()
	p := newPipeline(t, scan.Options{Analyzers: analyze.MustSet(newFake("a", 1, true)), Cache: c})

	res := p.ProcessSingle(context.Background(), path)
	require.Equal(t, scan.StatusCompleted, res.Status)
	require.Equal(t, 1, c.Stats().Files)

	require.NoError(t, os.Remove(path))

	res = p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	assert.Zero(t, c.Stats().Files)
}

func TestProcessSingle_WritesReport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeLog(t, dir, "crash-7.log", sampleLog)

	var states []scan.State

	p := newPipeline(t, scan.Options{
		Analyzers:    analyze.MustSet(newFake("a", 1, false)),
		Writer:       reportwriter.New(reportwriter.Options{AutoSave: true}),
		OnTransition: func(_ string, s scan.State) { states = append(states, s) },
	})

	res := p.ProcessSingle(context.Background(), path)

	require.True(t, res.Written)
	assert.Equal(t, filepath.Join(dir, "crash-7-AUTOSCAN.md"), res.OutputPath)
	assert.Contains(t, states, scan.StateReported)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.ReportText, string(data))
}

func TestPipeline_CloseRejectsNewWork(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	p, err := scan.New(scan.Options{Analyzers: analyze.MustSet(newFake("a", 1, true))})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	res := p.ProcessSingle(context.Background(), path)

	assert.Equal(t, scan.StatusFailed, res.Status)
	assert.Contains(t, res.Errors, scan.ErrClosed.Error())
}

func TestPipeline_CloseWaitsForInflight(t *testing.T) {
	t.Parallel()

	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	release := make(chan struct{})
	started := make(chan struct{})

	slow := newFake("slow", 1, true)
	slow.fn = func(context.Context, *crashlog.CrashLog) (analyze.Result, error) {
		close(started)
		<-release

		return analyze.Result{AnalyzerName: "slow", Success: true}, nil
	}

	p, err := scan.New(scan.Options{Analyzers: analyze.MustSet(slow)})
	require.NoError(t, err)

	done := make(chan scan.Result, 1)

	go func() { done <- p.ProcessSingle(context.Background(), path) }()

	<-started

	closed := make(chan struct{})

	go func() {
		_ = p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a file was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-closed

	assert.Equal(t, scan.StatusCompleted, (<-done).Status)
}

//nolint:paralleltest // counts process-wide goroutines.
func TestPipeline_NoGoroutineGrowthAcrossCycles(t *testing.T) {
	path := writeLog(t, t.TempDir(), "crash.log", sampleLog)

	cycle := func() {
		p, err := scan.New(scan.Options{
			Analyzers: analyze.MustSet(newFake("a", 1, true), newFake("b", 2, true), newFake("c", 3, false)),
			Cache:     cache.New(),
		})
		require.NoError(t, err)

		p.ProcessSingle(context.Background(), path)
		require.NoError(t, p.Close())
	}

	cycle()

	runtime.GC()

	before := runtime.NumGoroutine()

	for range 50 {
		cycle()
	}

	// Allow stragglers from the runtime to settle.
	time.Sleep(10 * time.Millisecond)
	runtime.GC()

	assert.LessOrEqual(t, runtime.NumGoroutine(), before+2)
}

func TestStatusAndStateStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cancelled", scan.StatusCancelled.String())
	assert.Equal(t, "aggregating", scan.StateAggregating.String())
	assert.True(t, scan.StateFailed.Terminal())
	assert.False(t, scan.StateCached.Terminal())

	text, err := scan.StatusCompleted.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "completed", string(text))

	r := scan.Result{Results: []analyze.Result{{Severity: analyze.SeverityWarning}, {Severity: analyze.SeverityInfo}}}
	assert.Equal(t, analyze.SeverityWarning, r.MaxSeverity())
}
