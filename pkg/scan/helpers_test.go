package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyze"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
)

const sampleLog = `Fallout 4 v1.10.163
Buffout 4 v1.28.6

Unhandled exception "EXCEPTION_ACCESS_VIOLATION" at 0x7FF6A1B2C3D4 Fallout4.exe+1B938F0

	[Fixes]
		MemoryManager: true

PROBABLE CALL STACK:
	[0] 0x7FF6A1B2C3D4 Fallout4.exe+1B938F0

PLUGINS:
	[00] Fallout4.esm
	[01] SomeMod.esp
`

type fakeAnalyzer struct {
	name     string
	priority int
	parallel bool
	calls    atomic.Int64
	fn       func(ctx context.Context, log *crashlog.CrashLog) (analyze.Result, error)
}

func (f *fakeAnalyzer) Name() string        { return f.name }
func (f *fakeAnalyzer) Description() string { return "fake " + f.name }
func (f *fakeAnalyzer) Priority() int       { return f.priority }
func (f *fakeAnalyzer) ParallelSafe() bool  { return f.parallel }

func (f *fakeAnalyzer) Analyze(ctx context.Context, log *crashlog.CrashLog) (analyze.Result, error) {
	f.calls.Add(1)

	if f.fn != nil {
		return f.fn(ctx, log)
	}

	return analyze.Result{
		AnalyzerName: f.name,
		Success:      true,
		Severity:     analyze.SeverityInfo,
		Lines:        []string{f.name + " looked at " + log.GameVersion},
	}, nil
}

func newFake(name string, priority int, parallel bool) *fakeAnalyzer {
	return &fakeAnalyzer{name: name, priority: priority, parallel: parallel}
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

// outcomeRecorder keeps the analyzer outcomes the pipeline reports.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]string
}

func (r *outcomeRecorder) FileScanned(context.Context, string, time.Duration) {}
func (r *outcomeRecorder) CacheLookup(context.Context, bool)                  {}
func (r *outcomeRecorder) Retried(context.Context, string, int)               {}
func (r *outcomeRecorder) ReportWritten(context.Context, bool)                {}
func (r *outcomeRecorder) InflightFiles(context.Context, int64)               {}

func (r *outcomeRecorder) AnalyzerRun(_ context.Context, analyzer, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outcomes == nil {
		r.outcomes = make(map[string]string)
	}

	r.outcomes[analyzer] = outcome
}

func (r *outcomeRecorder) outcome(analyzer string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.outcomes[analyzer]
}
