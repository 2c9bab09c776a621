package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".autoscan"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for autoscan settings.
const envPrefix = "AUTOSCAN"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	return load(viperCfg, configPath)
}

// LoadWith is LoadConfig over a caller-supplied viper instance, so command
// line flags bound to it take precedence over file and environment values.
func LoadWith(viperCfg *viper.Viper, configPath string) (*Config, error) {
	return load(viperCfg, configPath)
}

func load(viperCfg *viper.Viper, configPath string) (*Config, error) {
	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		// An explicit path must exist.
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	viperCfg := viper.New()
	applyDefaults(viperCfg)

	var cfg Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&cfg)

	return &cfg
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("game.root_path", "")
	viperCfg.SetDefault("game.plugins_folder", "")
	viperCfg.SetDefault("game.ini_folder", "")

	viperCfg.SetDefault("scan.analyzers", []string{})
	viperCfg.SetDefault("scan.fcx_mode", DefaultScanFCXMode)
	viperCfg.SetDefault("scan.simplify_logs", DefaultScanSimplifyLogs)
	viperCfg.SetDefault("scan.auto_save", DefaultScanAutoSave)
	viperCfg.SetDefault("scan.concurrency_limit", DefaultScanConcurrencyLimit)
	viperCfg.SetDefault("scan.analyzer_parallelism", DefaultScanAnalyzerParallelism)
	viperCfg.SetDefault("scan.write_batch_size", DefaultScanWriteBatchSize)
	viperCfg.SetDefault("scan.write_batch_pause", DefaultScanWriteBatchPause)
	viperCfg.SetDefault("scan.log_pattern", []string{DefaultScanLogPattern})
	viperCfg.SetDefault("scan.recursive", DefaultScanRecursive)
	viperCfg.SetDefault("scan.template", DefaultScanTemplate)
	viperCfg.SetDefault("scan.verbose_report", DefaultScanVerboseReport)
	viperCfg.SetDefault("scan.timings", DefaultScanTimings)
	viperCfg.SetDefault("scan.max_file_size", DefaultScanMaxFileSize)

	viperCfg.SetDefault("cache.enabled", DefaultCacheEnabled)
	viperCfg.SetDefault("cache.shards", DefaultCacheShards)
	viperCfg.SetDefault("cache.max_entries", DefaultCacheMaxEntries)
	viperCfg.SetDefault("cache.content_hash", DefaultCacheContentHash)

	viperCfg.SetDefault("retry.max_attempts", DefaultRetryMaxAttempts)
	viperCfg.SetDefault("retry.base_delay", DefaultRetryBaseDelay)
	viperCfg.SetDefault("retry.max_delay", DefaultRetryMaxDelay)
	viperCfg.SetDefault("retry.continue_on_error", DefaultRetryContinueOnError)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.json", DefaultLoggingJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_addr", "")
}
