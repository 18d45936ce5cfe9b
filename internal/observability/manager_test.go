package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableorder/internal/config"
)

func TestPrometheusHandlerServesRecordedCounters(t *testing.T) {
	ctx := context.Background()
	mgr, err := newManager(ctx, config.Observability{
		ServiceName:     "tableorder-test",
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Shutdown(ctx) })

	require.False(t, mgr.TracingEnabled())
	require.True(t, mgr.MetricsEnabled())

	counter, err := mgr.meterProvider.Meter("test").Int64Counter("orders.admissions")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "orders_admissions_total")
}

func TestUnsupportedExportersDisableProviders(t *testing.T) {
	mgr, err := newManager(context.Background(), config.Observability{
		EnableTracing:   true,
		TraceExporter:   "zipkin",
		EnableMetrics:   true,
		MetricsExporter: "none",
		TraceSampling:   1,
	}, zap.NewNop())
	require.NoError(t, err)

	require.False(t, mgr.TracingEnabled())
	require.False(t, mgr.MetricsEnabled())
	require.Nil(t, mgr.MetricsHandler())
	require.NoError(t, mgr.Shutdown(context.Background()))
}

func TestOTLPRequiresEndpoint(t *testing.T) {
	_, err := newManager(context.Background(), config.Observability{
		EnableTracing: true,
		TraceExporter: "otlp",
	}, zap.NewNop())
	require.ErrorContains(t, err, "OBS_OTLP_ENDPOINT")
}
