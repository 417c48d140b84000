package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
)

// Engine is the contract every engine implementation (process-backed
// or otherwise) satisfies.
type Engine interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error)
	Transform(ctx context.Context, req ExecuteQueryRequest) (ExecuteQueryResponse, error)
}

// Factory constructs a new Engine handle for a given engine name, e.g.
// spawning its subprocess. The broker calls it at most once per name.
type Factory func(name string) (Engine, error)

// handle serializes every call made through one engine, because engine
// subprocesses hold non-reentrant state.
type handle struct {
	mu      sync.Mutex
	name    string
	engine  Engine
	metrics *observability.PullMetrics
	tracer  trace.Tracer
}

func (h *handle) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, span := h.tracer.Start(ctx, "engine.ingest", trace.WithAttributes(attribute.String("engine", h.name)))
	defer span.End()

	start := time.Now()
	resp, err := h.engine.Ingest(ctx, req)
	h.metrics.RecordEngineCall(ctx, h.name, time.Since(start), err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return resp, err
}

func (h *handle) Transform(ctx context.Context, req ExecuteQueryRequest) (ExecuteQueryResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx, span := h.tracer.Start(ctx, "engine.transform", trace.WithAttributes(attribute.String("engine", h.name)))
	defer span.End()

	start := time.Now()
	resp, err := h.engine.Transform(ctx, req)
	h.metrics.RecordEngineCall(ctx, h.name, time.Since(start), err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return resp, err
}

// Broker hands out shared, per-engine-serialized handles. It is
// itself shared across pull workers; map access is guarded separately
// from the per-engine call lock so that calls to two different engines
// never block each other.
type Broker struct {
	factory Factory
	metrics *observability.PullMetrics
	tracer  trace.Tracer

	mu      sync.Mutex
	handles map[string]*handle
}

// NewBroker constructs a Broker that builds engines on demand via factory.
func NewBroker(factory Factory) *Broker {
	return &Broker{
		factory: factory,
		tracer:  nooptrace.NewTracerProvider().Tracer(""),
		handles: make(map[string]*handle),
	}
}

// SetObservability wires the pull-run metrics and tracer every engine
// call made through this Broker reports through. Safe to leave unset;
// metrics recording is then a no-op and spans are never exported.
func (b *Broker) SetObservability(metrics *observability.PullMetrics, tracer trace.Tracer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics = metrics
	if tracer != nil {
		b.tracer = tracer
	}
}

// GetEngine returns the shared handle for name, constructing it via the
// factory on first use. A construction failure is reported as
// EngineError.NotFound.
func (b *Broker) GetEngine(name string) (Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.handles[name]; ok {
		return h, nil
	}

	built, err := b.factory(name)
	if err != nil {
		return nil, domainerrors.NewEngineError(domainerrors.EngineNotFound, name, err)
	}

	h := &handle{name: name, engine: built, metrics: b.metrics, tracer: b.tracer}
	b.handles[name] = h

	return h, nil
}
