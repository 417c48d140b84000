package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBlocksAppended = "odfcore.pull.blocks_appended.total"
	metricWavesRun       = "odfcore.pull.waves_run.total"
	metricEngineCallDur  = "odfcore.pull.engine_call.duration.seconds"
	metricEngineErrors   = "odfcore.pull.engine_call.errors.total"

	attrEngine   = "engine"
	attrKind     = "kind"
	attrWaveSize = "wave_size"
)

// PullMetrics holds OTel instruments for the pull planner/executor: how many
// blocks each run appends, how many waves it dispatches, and
// how long engine subprocess calls take.
type PullMetrics struct {
	blocksAppended metric.Int64Counter
	wavesRun       metric.Int64Counter
	engineCallDur  metric.Float64Histogram
	engineErrors   metric.Int64Counter
}

// NewPullMetrics creates pull metric instruments from the given meter.
func NewPullMetrics(mt metric.Meter) (*PullMetrics, error) {
	blocks, err := mt.Int64Counter(metricBlocksAppended,
		metric.WithDescription("Metadata blocks appended across all chains"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBlocksAppended, err)
	}

	waves, err := mt.Int64Counter(metricWavesRun,
		metric.WithDescription("Dependency-depth waves dispatched by a pull run"),
		metric.WithUnit("{wave}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricWavesRun, err)
	}

	engineDur, err := mt.Float64Histogram(metricEngineCallDur,
		metric.WithDescription("Engine subprocess call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEngineCallDur, err)
	}

	engineErrs, err := mt.Int64Counter(metricEngineErrors,
		metric.WithDescription("Engine subprocess call failures by engine name"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEngineErrors, err)
	}

	return &PullMetrics{
		blocksAppended: blocks,
		wavesRun:       waves,
		engineCallDur:  engineDur,
		engineErrors:   engineErrs,
	}, nil
}

// RecordBlockAppended records one metadata block appended to a dataset's
// chain, tagged "ingest" or "transform" by who appended it.
// Safe to call on a nil receiver (no-op).
func (pm *PullMetrics) RecordBlockAppended(ctx context.Context, kind string) {
	if pm == nil {
		return
	}

	pm.blocksAppended.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordWave records one wave of a pull run completing, tagged by how many
// datasets it dispatched.
func (pm *PullMetrics) RecordWave(ctx context.Context, size int) {
	if pm == nil {
		return
	}

	pm.wavesRun.Add(ctx, 1, metric.WithAttributes(attribute.Int(attrWaveSize, size)))
}

// RecordEngineCall records one engine subprocess round trip.
func (pm *PullMetrics) RecordEngineCall(ctx context.Context, engine string, duration time.Duration, err error) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrEngine, engine))
	pm.engineCallDur.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		pm.engineErrors.Add(ctx, 1, attrs)
	}
}
