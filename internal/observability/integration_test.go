package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sarahrileyjo/adaptivegc/internal/observability"
)

func TestEndToEnd_TraceExported(t *testing.T) {
	t.Parallel()
	// Set up an in-memory span exporter to capture spans.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("adaptivegc")

	// Simulate a collection: root span with child phase spans.
	ctx, rootSpan := tracer.Start(context.Background(), "adaptivegc.run")

	_, initSpan := tracer.Start(ctx, "adaptivegc.init")
	initSpan.End()

	_, collectionSpan := tracer.Start(ctx, "adaptivegc.collection")
	collectionSpan.End()

	_, reportSpan := tracer.Start(ctx, "adaptivegc.report")
	reportSpan.End()

	rootSpan.End()

	// Verify spans were captured.
	spans := exporter.GetSpans()
	require.Len(t, spans, 4)

	// All child spans should share the root's trace ID.
	rootTraceID := spans[3].SpanContext.TraceID()
	for _, span := range spans[:3] {
		assert.Equal(t, rootTraceID, span.SpanContext.TraceID(),
			"child span %q should share root trace ID", span.Name)
	}

	// Verify span names.
	spanNames := make([]string, len(spans))
	for i, span := range spans {
		spanNames[i] = span.Name
	}

	assert.Contains(t, spanNames, "adaptivegc.run")
	assert.Contains(t, spanNames, "adaptivegc.init")
	assert.Contains(t, spanNames, "adaptivegc.collection")
	assert.Contains(t, spanNames, "adaptivegc.report")

	// Verify parent-child relationship: init/collection/report have root as parent.
	rootSpanID := spans[3].SpanContext.SpanID()
	for _, span := range spans[:3] {
		assert.Equal(t, rootSpanID, span.Parent.SpanID(),
			"child span %q should have root as parent", span.Name)
	}
}

func TestEndToEnd_MetricsExported(t *testing.T) {
	t.Parallel()
	// Set up an in-memory metric reader.
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("adaptivegc")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	ctx := context.Background()

	// Simulate a CLI run recording.
	red.RecordRequest(ctx, "cli.simulate", "ok", time.Second)

	// Simulate a minor-collection callback recording.
	red.RecordRequest(ctx, "policy.on_collection_end", "ok", time.Millisecond*500)

	// Simulate an error.
	red.RecordRequest(ctx, "cli.simulate", "error", time.Second*2)

	// Collect metrics.
	var rm metricdata.ResourceMetrics

	err = reader.Collect(ctx, &rm)
	require.NoError(t, err)

	// Verify request counter exists and has recordings.
	reqTotal := findMetric(rm, "adaptivegc.requests.total")
	require.NotNil(t, reqTotal, "adaptivegc.requests.total metric not found")

	// Verify duration histogram exists.
	reqDuration := findMetric(rm, "adaptivegc.request.duration.seconds")
	require.NotNil(t, reqDuration, "adaptivegc.request.duration.seconds metric not found")

	// Verify error counter exists.
	errTotal := findMetric(rm, "adaptivegc.errors.total")
	require.NotNil(t, errTotal, "adaptivegc.errors.total metric not found")
}

func TestEndToEnd_MiddlewareProducesSpans(t *testing.T) {
	t.Parallel()
	// Full integration: diagnostics-server-like setup with an in-memory
	// exporter, HTTP middleware creates spans, spans are captured.
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("adaptivegc")

	// Wire middleware around a handler that creates a child span.
	inner := http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		_, child := tracer.Start(hr.Context(), "adaptivegc.simulate")
		child.End()

		rw.WriteHeader(http.StatusOK)
	})

	mw := observability.HTTPMiddleware(tracer, discardLogger, inner)

	req := httptest.NewRequest(http.MethodPost, "/v1/simulate", http.NoBody)
	rec := httptest.NewRecorder()

	mw.ServeHTTP(rec, req)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	// Verify parent-child: simulate is child of middleware span.
	middlewareSpan := spans[1] // middleware span ends last.
	simulateSpan := spans[0]

	assert.Equal(t, "POST /v1/simulate", middlewareSpan.Name)
	assert.Equal(t, "adaptivegc.simulate", simulateSpan.Name)
	assert.Equal(t, middlewareSpan.SpanContext.SpanID(), simulateSpan.Parent.SpanID())
}
