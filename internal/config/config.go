// Package config loads autoscan settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/autoscan/pkg/report/template"
	"github.com/Sumatoshi-tech/autoscan/pkg/safeconv"
)

// Config is the top-level configuration struct for autoscan.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Game      GameConfig      `mapstructure:"game"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GameConfig locates the game install for file check mode.
type GameConfig struct {
	RootPath      string `mapstructure:"root_path"`
	PluginsFolder string `mapstructure:"plugins_folder"`
	INIFolder     string `mapstructure:"ini_folder"`
}

// ScanConfig holds scan pipeline and batch knobs.
type ScanConfig struct {
	Analyzers           []string      `mapstructure:"analyzers"`
	FCXMode             bool          `mapstructure:"fcx_mode"`
	SimplifyLogs        bool          `mapstructure:"simplify_logs"`
	AutoSave            bool          `mapstructure:"auto_save"`
	ConcurrencyLimit    int           `mapstructure:"concurrency_limit"`
	AnalyzerParallelism int           `mapstructure:"analyzer_parallelism"`
	WriteBatchSize      int           `mapstructure:"write_batch_size"`
	WriteBatchPause     time.Duration `mapstructure:"write_batch_pause"`
	LogPattern          []string      `mapstructure:"log_pattern"`
	Recursive           bool          `mapstructure:"recursive"`
	Template            string        `mapstructure:"template"`
	VerboseReport       bool          `mapstructure:"verbose_report"`
	Timings             bool          `mapstructure:"timings"`
	MaxFileSize         string        `mapstructure:"max_file_size"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Shards      int  `mapstructure:"shards"`
	MaxEntries  int  `mapstructure:"max_entries"`
	ContentHash bool `mapstructure:"content_hash"`
}

// RetryConfig holds the analyzer retry policy.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds tracing and metrics export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidConcurrency indicates a negative concurrency limit.
	ErrInvalidConcurrency = errors.New("scan.concurrency_limit must be non-negative")
	// ErrInvalidParallelism indicates a negative analyzer parallelism.
	ErrInvalidParallelism = errors.New("scan.analyzer_parallelism must be non-negative")
	// ErrInvalidWriteBatch indicates a negative write batch size or pause.
	ErrInvalidWriteBatch = errors.New("scan.write_batch_size and scan.write_batch_pause must be non-negative")
	// ErrInvalidTemplate indicates an unknown report template.
	ErrInvalidTemplate = errors.New("scan.template is not a known template")
	// ErrInvalidMaxFileSize indicates an unparseable size.
	ErrInvalidMaxFileSize = errors.New("scan.max_file_size must be a size such as 16MiB")
	// ErrInvalidCacheSize indicates negative cache sizing.
	ErrInvalidCacheSize = errors.New("cache.shards and cache.max_entries must be non-negative")
	// ErrInvalidRetryAttempts indicates max_attempts below one.
	ErrInvalidRetryAttempts = errors.New("retry.max_attempts must be at least 1")
	// ErrInvalidRetryDelay indicates negative or inverted delays.
	ErrInvalidRetryDelay = errors.New("retry.base_delay must be non-negative and not exceed retry.max_delay")
	// ErrInvalidLogLevel indicates an unknown log level.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	scanErr := c.validateScan()
	if scanErr != nil {
		return scanErr
	}

	if c.Cache.Shards < 0 || c.Cache.MaxEntries < 0 {
		return ErrInvalidCacheSize
	}

	retryErr := c.validateRetry()
	if retryErr != nil {
		return retryErr
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.ConcurrencyLimit < 0 {
		return ErrInvalidConcurrency
	}

	if c.Scan.AnalyzerParallelism < 0 {
		return ErrInvalidParallelism
	}

	if c.Scan.WriteBatchSize < 0 || c.Scan.WriteBatchPause < 0 {
		return ErrInvalidWriteBatch
	}

	if _, err := template.Lookup(c.Scan.Template); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTemplate, c.Scan.Template)
	}

	if _, err := c.MaxFileSizeBytes(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidRetryAttempts
	}

	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return ErrInvalidRetryDelay
	}

	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		return ErrInvalidRetryDelay
	}

	return nil
}

// MaxFileSizeBytes parses scan.max_file_size. Empty or "0" disables the limit.
func (c *Config) MaxFileSizeBytes() (int64, error) {
	if c.Scan.MaxFileSize == "" || c.Scan.MaxFileSize == "0" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.Scan.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxFileSize, err)
	}

	size, err := safeconv.Uint64ToInt64(n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMaxFileSize, err)
	}

	return size, nil
}
