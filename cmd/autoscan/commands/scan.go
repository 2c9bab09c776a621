// Package commands implements the autoscan CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/autoscan/internal/config"
	"github.com/Sumatoshi-tech/autoscan/internal/observability"
	"github.com/Sumatoshi-tech/autoscan/pkg/analyzers"
	"github.com/Sumatoshi-tech/autoscan/pkg/batch"
	"github.com/Sumatoshi-tech/autoscan/pkg/crashlog"
	"github.com/Sumatoshi-tech/autoscan/pkg/discovery"
	"github.com/Sumatoshi-tech/autoscan/pkg/messages"
	"github.com/Sumatoshi-tech/autoscan/pkg/report/template"
	"github.com/Sumatoshi-tech/autoscan/pkg/reportwriter"
	"github.com/Sumatoshi-tech/autoscan/pkg/retry"
	"github.com/Sumatoshi-tech/autoscan/pkg/rules"
	"github.com/Sumatoshi-tech/autoscan/pkg/scan"
	"github.com/Sumatoshi-tech/autoscan/pkg/version"
)

// Output formats for the scan command.
const (
	FormatText = "text"
	FormatJSON = "json"
)

const progressWidth = 30

var (
	// ErrScanFailed is returned when at least one crash log failed.
	ErrScanFailed = errors.New("one or more crash logs failed")
	// ErrNoCrashLogs is returned when discovery finds nothing to scan.
	ErrNoCrashLogs = errors.New("no crash logs found")
	// ErrUnknownFormat is returned for an unsupported --format value.
	ErrUnknownFormat = errors.New("unknown output format")
)

// flagKeys binds scan flags to configuration keys. Flags set on the command
// line take precedence over the config file and environment.
var flagKeys = map[string]string{
	"template":       "scan.template",
	"fcx":            "scan.fcx_mode",
	"simplify":       "scan.simplify_logs",
	"concurrency":    "scan.concurrency_limit",
	"verbose-report": "scan.verbose_report",
	"analyzers":      "scan.analyzers",
	"recursive":      "scan.recursive",
	"timings":        "scan.timings",
	"game-root":      "game.root_path",
	"metrics-addr":   "telemetry.metrics_addr",
}

// ScanCommand holds flags for the scan command.
type ScanCommand struct {
	configPath string
	format     string
	noSave     bool
	noCache    bool
	noColor    bool
	quiet      bool
	verbose    bool

	v *viper.Viper
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	sc := &ScanCommand{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Diagnose crash logs and write a report next to each one",
		Long: `Scan crash logs and write a markdown diagnosis next to each one.

Paths may be crash log files or folders. Folders are searched for files
matching scan.log_pattern (default crash-*.log). With no path the current
folder is scanned.`,
		RunE: sc.run,
	}

	flags := cmd.Flags()
	flags.StringVar(&sc.configPath, "config", "", "Config file (default: .autoscan.yaml in the current folder or $HOME)")
	flags.StringVar(&sc.format, "format", FormatText, "Output format: text, json")
	flags.BoolVar(&sc.noSave, "no-save", false, "Do not write report files")
	flags.BoolVar(&sc.noCache, "no-cache", false, "Disable the analyzer result cache")
	flags.BoolVar(&sc.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&sc.quiet, "quiet", "q", false, "Only print errors")
	flags.BoolVarP(&sc.verbose, "verbose", "v", false, "Print debug messages and logs")

	flags.String("template", config.DefaultScanTemplate, "Report template: "+joinNames(template.Names()))
	flags.Bool("fcx", false, "Check game settings files on disk")
	flags.Bool("simplify", false, "Drop noise lines from crash logs before analysis")
	flags.Int("concurrency", 0, "Crash logs scanned at once (0 = CPU count)")
	flags.Bool("verbose-report", false, "Include passing analyzers and technical details in reports")
	flags.StringSliceP("analyzers", "a", nil, "Analyzer names or glob patterns (default: all)")
	flags.BoolP("recursive", "r", false, "Search folders recursively")
	flags.Bool("timings", false, "Include analyzer timings in reports")
	flags.String("game-root", "", "Game install folder for --fcx checks")
	flags.String("metrics-addr", "", "Serve /metrics, /healthz and /readyz on this address while scanning")

	for flag, key := range flagKeys {
		// Lookup cannot fail for flags defined above.
		_ = sc.v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command, args []string) error {
	if sc.format != FormatText && sc.format != FormatJSON {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, sc.format)
	}

	cfg, err := config.LoadWith(sc.v, sc.configPath)
	if err != nil {
		return err
	}

	if sc.noSave {
		cfg.Scan.AutoSave = false
	}

	if sc.noCache {
		cfg.Cache.Enabled = false
	}

	if len(args) == 0 {
		args = []string{"."}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	providers, err := observability.Init(ctx, sc.observabilityConfig(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		if shutdownErr := providers.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			providers.Logger.Warn("telemetry shutdown", "error", shutdownErr)
		}
	}()

	out := cmd.OutOrStdout()
	msgs, closeMessages := sc.messenger(cmd.ErrOrStderr(), providers.Logger)

	defer closeMessages()

	s, err := sc.build(ctx, cfg, providers)
	if err != nil {
		return err
	}

	defer s.close(ctx)

	paths, err := s.finder.Find(ctx, args)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		return fmt.Errorf("%w in %v", ErrNoCrashLogs, args)
	}

	msgs.Info("Scanning %d crash log(s) with %d analyzer(s)", len(paths), s.pipeline.Analyzers().Len())

	var opts []batch.RunOption

	if sc.format == FormatText && !sc.quiet {
		line := messages.NewProgressLine(cmd.ErrOrStderr(), "crash logs", progressWidth)
		opts = append(opts, batch.WithProgress(func(p batch.Progress) { line.Update(p.Processed, p.Total) }))
	}

	var results []scan.Result

	for r := range s.coordinator.ProcessBatch(ctx, paths, opts...) {
		results = append(results, r)
	}

	sortResults(results)

	if sc.format == FormatJSON {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	} else {
		announce(msgs, results)
		writeSummary(out, results)
	}

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrScanFailed, failed, len(results))
	}

	return nil
}

func (sc *ScanCommand) observabilityConfig(cfg *config.Config, logOut io.Writer) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obs.LogLevel = cfg.LogLevel()
	obs.LogJSON = cfg.Logging.JSON
	obs.LogWriter = logOut

	if sc.verbose {
		obs.LogLevel = slog.LevelDebug
	}

	return obs
}

func (sc *ScanCommand) messenger(errOut io.Writer, logger *slog.Logger) (*messages.Messenger, func()) {
	minLevel := messages.LevelInfo

	switch {
	case sc.quiet:
		minLevel = messages.LevelError
	case sc.verbose:
		minLevel = messages.LevelDebug
	}

	console := messages.NewConsole(errOut, messages.ConsoleOptions{NoColor: sc.noColor, MinLevel: minLevel})

	// Console lines stay synchronous so they keep their order relative to
	// the progress line. The log copy is fire-and-forget.
	logged := messages.NewAsync(messages.Filter(messages.NewSlogSink(logger), messages.LevelWarning), messages.DefaultAsyncBuffer)

	return messages.New(messages.Multi(console, logged)), logged.Close
}

// session is the wired scan stack for one command invocation.
type session struct {
	finder      *discovery.Finder
	pipeline    *scan.Pipeline
	coordinator *batch.Coordinator
	diagnostics *observability.DiagnosticsServer
	logger      *slog.Logger
	unobserve   func() error
}

func (sc *ScanCommand) build(ctx context.Context, cfg *config.Config, providers observability.Providers) (*session, error) {
	logger := providers.Logger

	db, err := rules.Default()
	if err != nil {
		return nil, err
	}

	builtinOpts := cfg.BuiltinOptions()
	builtinOpts.Rules = db

	registry, err := analyzers.Builtin(builtinOpts)
	if err != nil {
		return nil, err
	}

	set, err := registry.Select(cfg.Scan.Analyzers)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.Lookup(cfg.Scan.Template)
	if err != nil {
		return nil, err
	}

	maxSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	finder, err := discovery.New(cfg.DiscoveryOptions())
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	s := &session{finder: finder, logger: logger, unobserve: func() error { return nil }}

	resultCache := cfg.NewCache()
	if resultCache != nil {
		reg, observeErr := observability.ObserveCache(providers.Meter, resultCache)
		if observeErr != nil {
			return nil, observeErr
		}

		s.unobserve = reg.Unregister
	}

	executor := retry.NewExecutor(cfg.RetryPolicy(), retry.WithObserver(func(attempt int, err error, delay time.Duration) {
		logger.Debug("retrying analyzer", "attempt", attempt, "delay", delay, "error", err)
	}))

	s.pipeline, err = scan.New(scan.Options{
		Analyzers:       set,
		Parser:          &crashlog.SegmentParser{Simplify: cfg.Scan.SimplifyLogs, NoisePatterns: db.Noise},
		Cache:           resultCache,
		FingerprintMode: cfg.FingerprintMode(),
		Retry:           executor,
		Composer: template.New(template.Options{
			Template: tmpl,
			Verbose:  cfg.Scan.VerboseReport,
			Timings:  cfg.Scan.Timings,
			Version:  version.Version,
		}),
		Writer:         reportwriter.New(cfg.WriterOptions(logger)),
		MaxParallelism: cfg.Scan.AnalyzerParallelism,
		MaxFileSize:    maxSize,
		Logger:         logger,
		Tracer:         providers.Tracer,
		Recorder:       metrics,
	})
	if err != nil {
		return nil, err
	}

	s.coordinator = batch.New(s.pipeline, batch.Options{
		Concurrency: cfg.Scan.ConcurrencyLimit,
		Logger:      logger,
		Tracer:      providers.Tracer,
	})

	if cfg.Telemetry.MetricsAddr != "" {
		s.diagnostics, err = observability.NewDiagnosticsServer(ctx, cfg.Telemetry.MetricsAddr, providers.MetricsHandler, logger,
			observability.ReadyCheck{Name: "rules", Check: func(context.Context) error {
				_, rulesErr := rules.Default()

				return rulesErr
			}},
		)
		if err != nil {
			s.close(ctx)

			return nil, err
		}
	}

	return s, nil
}

func (s *session) close(ctx context.Context) {
	if s.coordinator != nil {
		if err := s.coordinator.Close(); err != nil {
			s.logger.Warn("close batch coordinator", "error", err)
		}
	}

	if s.pipeline != nil {
		if err := s.pipeline.Close(); err != nil {
			s.logger.Warn("close scan pipeline", "error", err)
		}
	}

	if s.diagnostics != nil {
		if err := s.diagnostics.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("close diagnostics server", "error", err)
		}
	}

	if err := s.unobserve(); err != nil {
		s.logger.Warn("unregister cache metrics", "error", err)
	}
}
