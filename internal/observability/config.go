// Package observability wires OpenTelemetry tracing and metrics, slog
// logging, and the optional diagnostics HTTP endpoint for autoscan.
package observability

import (
	"io"
	"log/slog"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

// ModeCLI is the only mode autoscan runs in today.
const ModeCLI AppMode = "cli"

const (
	defaultServiceName     = "autoscan"
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the version of the running binary.
	ServiceVersion string

	// Mode identifies how the binary was launched.
	Mode AppMode

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables OTLP export.
	OTLPEndpoint string

	// OTLPHeaders are additional gRPC metadata headers for the OTLP exporters.
	OTLPHeaders map[string]string

	// OTLPInsecure disables TLS for the OTLP gRPC connection.
	OTLPInsecure bool

	// Prometheus attaches a Prometheus exporter to the meter provider and
	// exposes its scrape handler on Providers.MetricsHandler.
	Prometheus bool

	// DebugTrace forces 100% sampling and logs attributes dropped by the filter.
	DebugTrace bool

	// SampleRatio is the root sampling ratio when DebugTrace is false.
	SampleRatio float64

	// TraceVerbose keeps per-analyzer spans. When false only file and batch
	// spans reach the exporter.
	TraceVerbose bool

	LogLevel  slog.Level
	LogJSON   bool
	LogWriter io.Writer

	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config for zero-config startup: text logs at info
// on stderr and no telemetry export.
func DefaultConfig() Config {
	return Config{
		ServiceName:     defaultServiceName,
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}
