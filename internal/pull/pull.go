// Package pull implements the pull planner/executor: it
// resolves a requested set of dataset ids into a dependency-ordered
// sequence of waves, then dispatches each wave's ingest/transform
// calls concurrently, joining before the next wave begins.
package pull

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/internal/progress"
	"github.com/Sumatoshi-tech/odfcore/internal/repository"
	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
	"github.com/Sumatoshi-tech/odfcore/pkg/toposort"
)

// Ingester runs the ingest pipeline for one root dataset.
type Ingester interface {
	Ingest(ctx context.Context, dsID id.DatasetID, listener progress.IngestListener) (metadata.PullResult, error)
}

// Transformer runs the transform pipeline for one derivative dataset.
type Transformer interface {
	Transform(ctx context.Context, dsID id.DatasetID, listener progress.TransformListener) (metadata.PullResult, error)
}

// Request is the parsed form of the pull CLI's argument surface.
type Request struct {
	IDs       []id.DatasetID
	Recursive bool
	All       bool
}

// Result pairs a dataset id with the outcome of pulling it.
type Result struct {
	ID     id.DatasetID
	Pull   metadata.PullResult
	Err    error
}

// Service plans and executes pulls.
type Service struct {
	repo      *repository.Repository
	ingester  Ingester
	transform Transformer
	metrics   *observability.PullMetrics
	tracer    trace.Tracer
}

// NewService constructs a pull Service.
func NewService(repo *repository.Repository, ingester Ingester, transform Transformer) *Service {
	return &Service{
		repo:      repo,
		ingester:  ingester,
		transform: transform,
		tracer:    nooptrace.NewTracerProvider().Tracer(""),
	}
}

// SetObservability wires the pull-run metrics and tracer this Service
// reports waves through. Safe to leave unset; metrics recording is
// then a no-op and spans are never exported.
func (s *Service) SetObservability(metrics *observability.PullMetrics, tracer trace.Tracer) {
	s.metrics = metrics
	if tracer != nil {
		s.tracer = tracer
	}
}

// PullMulti resolves req into waves and executes them in order,
// returning one Result per dataset touched, in no particular order
// (within a wave, order of completion is nondeterministic).
func (s *Service) PullMulti(ctx context.Context, req Request, listeners progress.IngestMultiListener, transformListeners progress.TransformMultiListener) ([]Result, error) {
	ids, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	waves, err := s.planWaves(ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))

	for _, wave := range waves {
		waveResults := s.runWave(ctx, wave, listeners, transformListeners)
		results = append(results, waveResults...)
	}

	return results, nil
}

// resolve applies the argument-combination table, expanding to
// every transitive input when Recursive is set.
func (s *Service) resolve(req Request) ([]id.DatasetID, error) {
	switch {
	case len(req.IDs) == 0 && !req.Recursive && !req.All:
		return nil, domainerrors.NewUsageError("Specify a dataset or pass --all")
	case len(req.IDs) == 0 && req.All:
		return s.repo.ListDatasets()
	case len(req.IDs) == 0 && req.Recursive && !req.All:
		// No seeds to expand from: a legal but degenerate request that
		// touches nothing (mirrors the original CLI's argument parser).
		return nil, nil
	case len(req.IDs) > 0 && !req.All:
		if !req.Recursive {
			return req.IDs, nil
		}

		return s.expandTransitiveInputs(req.IDs)
	default:
		return nil, domainerrors.NewUsageError("Invalid combination of arguments")
	}
}

// expandTransitiveInputs returns ids plus every dataset reachable by
// following dependency edges backward from them.
func (s *Service) expandTransitiveInputs(ids []id.DatasetID) ([]id.DatasetID, error) {
	seen := make(map[string]bool)
	order := make([]id.DatasetID, 0, len(ids))

	var visit func(id.DatasetID) error
	visit = func(dsID id.DatasetID) error {
		if seen[dsID.String()] {
			return nil
		}

		seen[dsID.String()] = true

		summary, err := s.repo.GetSummary(dsID)
		if err != nil {
			return err
		}

		for _, dep := range summary.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}

		order = append(order, dsID)

		return nil
	}

	for _, dsID := range ids {
		if err := visit(dsID); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// planWaves groups ids into depth-ordered waves: a dataset's wave is
// one past the deepest wave of any of its dependencies — each wave
// groups same-depth datasets after topological sorting. Built on
// pkg/toposort to obtain a dependency-respecting order and detect
// cycles (not expected here — the repository never admits one — but
// checked defensively).
func (s *Service) planWaves(ids []id.DatasetID) ([][]id.DatasetID, error) {
	graph := toposort.NewGraph()

	dependenciesOf := make(map[string][]id.DatasetID, len(ids))

	for _, dsID := range ids {
		graph.AddNode(dsID.String())

		summary, err := s.repo.GetSummary(dsID)
		if err != nil {
			return nil, err
		}

		dependenciesOf[dsID.String()] = summary.Dependencies

		for _, dep := range summary.Dependencies {
			graph.AddNode(dep.String())
			graph.AddEdge(dep.String(), dsID.String())
		}
	}

	order, ok := graph.Toposort()
	if !ok {
		return nil, fmt.Errorf("pull: dependency graph among requested datasets contains a cycle")
	}

	depth := make(map[string]int, len(order))
	maxDepth := 0

	for _, name := range order {
		d := 0

		for _, parent := range dependenciesOf[name] {
			if pd, ok := depth[parent.String()]; ok && pd+1 > d {
				d = pd + 1
			}
		}

		depth[name] = d

		if d > maxDepth {
			maxDepth = d
		}
	}

	requested := make(map[string]bool, len(ids))
	for _, dsID := range ids {
		requested[dsID.String()] = true
	}

	waves := make([][]id.DatasetID, maxDepth+1)

	for _, name := range order {
		if !requested[name] {
			continue
		}

		parsed := id.MustParse(name)
		waves[depth[name]] = append(waves[depth[name]], parsed)
	}

	nonEmpty := make([][]id.DatasetID, 0, len(waves))

	for _, wave := range waves {
		if len(wave) > 0 {
			nonEmpty = append(nonEmpty, wave)
		}
	}

	return nonEmpty, nil
}

// runWave spawns one worker per dataset in wave, joins them all, and
// collects every result — a worker's failure never aborts its
// siblings (failure containment).
func (s *Service) runWave(ctx context.Context, wave []id.DatasetID, listeners progress.IngestMultiListener, transformListeners progress.TransformMultiListener) []Result {
	ctx, span := s.tracer.Start(ctx, "pull.wave")
	defer span.End()

	s.metrics.RecordWave(ctx, len(wave))

	results := make([]Result, len(wave))

	var g errgroup.Group

	for i, dsID := range wave {
		i, dsID := i, dsID

		g.Go(func() error {
			results[i] = s.pullOne(ctx, dsID, listeners, transformListeners)

			return nil
		})
	}

	_ = g.Wait()

	for _, r := range results {
		if r.Err != nil {
			span.SetStatus(codes.Error, "wave had per-dataset failures")

			break
		}
	}

	return results
}

func (s *Service) pullOne(ctx context.Context, dsID id.DatasetID, listeners progress.IngestMultiListener, transformListeners progress.TransformMultiListener) Result {
	summary, err := s.repo.GetSummary(dsID)
	if err != nil {
		return Result{ID: dsID, Err: err}
	}

	if summary.Kind == metadata.DatasetKindDerivative {
		listener := transformListeners.BeginTransform(dsID)

		res, err := s.transform.Transform(ctx, dsID, listener)

		return Result{ID: dsID, Pull: res, Err: err}
	}

	listener := listeners.BeginIngest(dsID)

	res, err := s.ingester.Ingest(ctx, dsID, listener)

	return Result{ID: dsID, Pull: res, Err: err}
}
