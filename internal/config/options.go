package config

import (
	"log/slog"

	"github.com/Sumatoshi-tech/autoscan/pkg/analyzers"
	"github.com/Sumatoshi-tech/autoscan/pkg/cache"
	"github.com/Sumatoshi-tech/autoscan/pkg/discovery"
	"github.com/Sumatoshi-tech/autoscan/pkg/fingerprint"
	"github.com/Sumatoshi-tech/autoscan/pkg/reportwriter"
	"github.com/Sumatoshi-tech/autoscan/pkg/retry"
)

// positive constrains types eligible for skip-on-zero option application.
type positive interface {
	~int | ~int64
}

// applyPositive returns value when positive, otherwise fallback.
// Zero values mean "use the component default".
func applyPositive[T positive](value, fallback T) T {
	if value > 0 {
		return value
	}

	return fallback
}

// RetryPolicy builds the analyzer retry policy.
func (c *Config) RetryPolicy() retry.BackoffPolicy {
	def := retry.DefaultPolicy()

	return retry.BackoffPolicy{
		MaxAttempts:     applyPositive(c.Retry.MaxAttempts, def.MaxAttempts),
		BaseDelay:       applyPositive(c.Retry.BaseDelay, def.BaseDelay),
		MaxDelay:        applyPositive(c.Retry.MaxDelay, def.MaxDelay),
		Multiplier:      def.Multiplier,
		ContinueOnError: c.Retry.ContinueOnError,
	}
}

// NewCache returns the result cache, or nil when caching is disabled.
func (c *Config) NewCache() *cache.ResultCache {
	if !c.Cache.Enabled {
		return nil
	}

	return cache.New(
		cache.WithShards(applyPositive(c.Cache.Shards, cache.DefaultShards)),
		cache.WithMaxEntries(applyPositive(c.Cache.MaxEntries, cache.DefaultMaxEntries)),
	)
}

// FingerprintMode selects content hashing when cache.content_hash is set.
func (c *Config) FingerprintMode() fingerprint.Mode {
	if c.Cache.ContentHash {
		return fingerprint.ModeContent
	}

	return fingerprint.ModeStat
}

// WriterOptions builds report writer options.
func (c *Config) WriterOptions(logger *slog.Logger) reportwriter.Options {
	return reportwriter.Options{
		AutoSave:   c.Scan.AutoSave,
		BatchSize:  applyPositive(c.Scan.WriteBatchSize, reportwriter.DefaultBatchSize),
		BatchPause: c.Scan.WriteBatchPause,
		Logger:     logger,
	}
}

// DiscoveryOptions builds crash log discovery options.
func (c *Config) DiscoveryOptions() discovery.Options {
	return discovery.Options{
		Patterns:  c.Scan.LogPattern,
		Recursive: c.Scan.Recursive,
	}
}

// BuiltinOptions builds the built-in analyzer options.
func (c *Config) BuiltinOptions() analyzers.BuiltinOptions {
	return analyzers.BuiltinOptions{
		FCX:           c.Scan.FCXMode,
		GameRoot:      c.Game.RootPath,
		INIFolder:     c.Game.INIFolder,
		PluginsFolder: c.Game.PluginsFolder,
	}
}

// LogLevel maps logging.level to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
