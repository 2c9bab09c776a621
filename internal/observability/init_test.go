package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sumatoshi-tech/autoscan/internal/observability"
)

func TestInit_NoopByDefault(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogWriter = io.Discard

	providers, err := observability.Init(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	ctx, span := providers.Tracer.Start(context.Background(), "autoscan.scan.file")
	span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_PrometheusServesScanMetrics(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogWriter = io.Discard
	cfg.Prometheus = true

	providers, err := observability.Init(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })
	require.NotNil(t, providers.MetricsHandler)

	sm, err := observability.NewScanMetrics(providers.Meter)
	require.NoError(t, err)

	sm.FileScanned(context.Background(), "completed", 0)

	rec := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autoscan_scan_files_total")
}

func TestInit_LoggerWritesJSONWithServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogWriter = &buf
	cfg.LogJSON = true

	providers, err := observability.Init(context.Background(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	providers.Logger.Info("batch finished", "files", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "batch finished", record["msg"])
	assert.Equal(t, "autoscan", record["service"])
	assert.Equal(t, "cli", record["mode"])
	assert.InDelta(t, 3, record["files"], 0)
}

func TestBuildResource(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = "0.4.0"

	res, err := observability.BuildResource(cfg)
	require.NoError(t, err)

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}

	assert.Equal(t, "autoscan", got["service.name"])
	assert.Equal(t, "0.4.0", got["service.version"])
	assert.Equal(t, "cli", got["app.mode"])
}

func TestSelectSampler(t *testing.T) {
	t.Parallel()

	debug := observability.DefaultConfig()
	debug.DebugTrace = true
	assert.True(t, observability.Sampled(debug))

	assert.True(t, observability.Sampled(observability.DefaultConfig()))

	tiny := observability.DefaultConfig()
	tiny.SampleRatio = 1e-12
	assert.False(t, observability.Sampled(tiny))
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "api-key=abc", want: map[string]string{"api-key": "abc"}},
		{name: "spaces", raw: " a = 1 , b=2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "no pairs", raw: "junk,more", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseOTLPHeaders(tt.raw))
		})
	}
}
