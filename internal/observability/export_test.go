package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// BuildResource exposes buildResource for testing.
func BuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(context.Background(), cfg)
}

// Sampled reports whether a root span started under the sampler
// resolved from cfg would be recorded.
func Sampled(cfg Config) bool {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(selectSampler(cfg)),
	)

	_, span := tp.Tracer("sampler").Start(context.Background(), "root")
	span.End()

	// Shutdown clears the exporter.
	sampled := len(exporter.GetSpans()) > 0
	_ = tp.Shutdown(context.Background())

	return sampled
}
