package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
)

// acceptanceSpanCount is the expected number of spans in the acceptance test
// (root + wave + engine call).
const acceptanceSpanCount = 3

// acceptanceBlocksAppended is the simulated block count used in log assertions.
const acceptanceBlocksAppended = 42

// TestAcceptance_EndToEnd verifies all three observability signals (traces,
// metrics, structured logs with trace context) work together across a
// simulated pull run.
func TestAcceptance_EndToEnd(t *testing.T) {
	t.Parallel()

	// Setup: in-memory trace exporter.
	spanExporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("odfcore")

	// Setup: in-memory metric reader.
	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	meter := mp.Meter("odfcore")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	pull, err := observability.NewPullMetrics(meter)
	require.NoError(t, err)

	// Setup: structured logger with trace context.
	var logBuf bytes.Buffer

	innerHandler := slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	tracingHandler := observability.NewTracingHandler(innerHandler, "odfcore", "test", observability.ModeCLI)
	logger := slog.New(tracingHandler)

	// Simulate a pull run: root span, child spans, metrics, logs.
	ctx, rootSpan := tracer.Start(context.Background(), "odfcore.pull")

	_, waveSpan := tracer.Start(ctx, "odfcore.pull.wave")
	waveSpan.End()

	_, engineSpan := tracer.Start(ctx, "odfcore.engine.transform")
	engineSpan.End()

	// Record metrics within the trace context.
	red.RecordRequest(ctx, "pull.run", "ok", time.Second)

	pull.RecordWave(ctx, 2)
	pull.RecordBlockAppended(ctx, "ingest")
	pull.RecordBlockAppended(ctx, "transform")
	pull.RecordEngineCall(ctx, "spark", 500*time.Millisecond, nil)

	// Emit a log line within the trace context.
	logger.InfoContext(ctx, "pull.complete", "blocks_appended", acceptanceBlocksAppended)

	rootSpan.End()

	// Assert: Traces.
	spans := spanExporter.GetSpans()
	require.Len(t, spans, acceptanceSpanCount, "expected root + wave + engine spans")

	spanNames := make(map[string]bool, len(spans))
	for _, s := range spans {
		spanNames[s.Name] = true
	}

	assert.True(t, spanNames["odfcore.pull"], "root span should exist")
	assert.True(t, spanNames["odfcore.pull.wave"], "wave span should exist")
	assert.True(t, spanNames["odfcore.engine.transform"], "engine span should exist")

	// All spans share the same trace ID.
	traceID := spans[0].SpanContext.TraceID()
	for _, s := range spans[1:] {
		assert.Equal(t, traceID, s.SpanContext.TraceID(),
			"span %q should share trace ID", s.Name)
	}

	// Assert: Metrics.
	var rm metricdata.ResourceMetrics

	err = metricReader.Collect(ctx, &rm)
	require.NoError(t, err)

	reqTotal := findMetric(rm, "odfcore.pull.requests.total")
	require.NotNil(t, reqTotal, "request counter should be recorded")

	reqDuration := findMetric(rm, "odfcore.pull.request.duration.seconds")
	require.NotNil(t, reqDuration, "duration histogram should be recorded")

	// Assert: pull metrics.
	blocksTotal := findMetric(rm, "odfcore.pull.blocks_appended.total")
	require.NotNil(t, blocksTotal, "blocks appended counter should be recorded")

	wavesTotal := findMetric(rm, "odfcore.pull.waves_run.total")
	require.NotNil(t, wavesTotal, "waves run counter should be recorded")

	engineDuration := findMetric(rm, "odfcore.pull.engine_call.duration.seconds")
	require.NotNil(t, engineDuration, "engine call duration histogram should be recorded")

	// Assert: Logs contain trace_id.
	var logRecord map[string]any

	err = json.Unmarshal(logBuf.Bytes(), &logRecord)
	require.NoError(t, err)

	assert.Equal(t, traceID.String(), logRecord["trace_id"],
		"log line should contain the active trace_id")
	assert.Contains(t, logRecord, "span_id",
		"log line should contain span_id")
	assert.Equal(t, "odfcore", logRecord["service"],
		"log line should contain service name")

	blocks, ok := logRecord["blocks_appended"].(float64)
	require.True(t, ok, "blocks_appended should be a number")
	assert.InDelta(t, acceptanceBlocksAppended, blocks, 0,
		"log line should contain custom attributes")
}
