package config

import "time"

// Scan defaults.
const (
	DefaultScanFCXMode             = false
	DefaultScanSimplifyLogs        = false
	DefaultScanAutoSave            = true
	DefaultScanConcurrencyLimit    = 0
	DefaultScanAnalyzerParallelism = 0
	DefaultScanWriteBatchSize      = 8
	DefaultScanWriteBatchPause     = 10 * time.Millisecond
	DefaultScanLogPattern          = "crash-*.log"
	DefaultScanRecursive           = false
	DefaultScanTemplate            = "full"
	DefaultScanVerboseReport       = false
	DefaultScanTimings             = false
	DefaultScanMaxFileSize         = "16MiB"
)

// Cache defaults.
const (
	DefaultCacheEnabled     = true
	DefaultCacheShards      = 32
	DefaultCacheMaxEntries  = 16384
	DefaultCacheContentHash = false
)

// Retry defaults.
const (
	DefaultRetryMaxAttempts     = 3
	DefaultRetryBaseDelay       = 50 * time.Millisecond
	DefaultRetryMaxDelay        = 2 * time.Second
	DefaultRetryContinueOnError = true
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)
