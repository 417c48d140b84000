// Package transform drives the derivative-dataset transform pipeline
// for each input, compute the slice of records not yet
// processed, decide whether the dataset is up to date, and — if not —
// invoke the declared engine and commit its result.
package transform

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/internal/chain"
	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/interval"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/internal/engine"
	"github.com/Sumatoshi-tech/odfcore/internal/progress"
	"github.com/Sumatoshi-tech/odfcore/internal/repository"
	"github.com/Sumatoshi-tech/odfcore/pkg/checkpoint"
	"github.com/Sumatoshi-tech/odfcore/pkg/clock"
	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
)

// Service drives the transform pipeline for derivative datasets.
type Service struct {
	fs      afero.Fs
	repo    *repository.Repository
	broker  *engine.Broker
	layout  repository.WorkspaceLayout
	clock   clock.Clock
	metrics *observability.PullMetrics
}

// NewService constructs a transform Service.
func NewService(fs afero.Fs, repo *repository.Repository, broker *engine.Broker, layout repository.WorkspaceLayout) *Service {
	return &Service{fs: fs, repo: repo, broker: broker, layout: layout, clock: clock.SystemClock{}}
}

// SetClock overrides the Service's time source, letting tests stamp
// commits with a fixed time instead of the real clock.
func (s *Service) SetClock(c clock.Clock) {
	s.clock = c
}

// SetMetrics wires the pull-run metrics this Service reports block
// appends through. Safe to leave unset; recording is a no-op then.
func (s *Service) SetMetrics(metrics *observability.PullMetrics) {
	s.metrics = metrics
}

// Transform brings dsID up to date, reporting progress on listener.
// A dataset with nothing new to process reports UpToDate without
// invoking an engine.
func (s *Service) Transform(ctx context.Context, dsID id.DatasetID, listener progress.TransformListener) (metadata.PullResult, error) {
	listener.Begin()

	result, err := s.transform(ctx, dsID)
	if err != nil {
		wrapped := wrapTransformError(dsID, err)
		listener.Error(wrapped)

		return metadata.PullResult{}, wrapped
	}

	listener.Success(result)

	return result, nil
}

func (s *Service) transform(ctx context.Context, dsID id.DatasetID) (metadata.PullResult, error) {
	req, err := s.nextOperation(dsID)
	if err != nil {
		return metadata.PullResult{}, err
	}

	if req == nil {
		return metadata.UpToDate(), nil
	}

	c, err := s.repo.GetMetadataChain(dsID)
	if err != nil {
		return metadata.PullResult{}, err
	}

	result, err := s.doTransform(ctx, *req, c)
	if err != nil {
		return metadata.PullResult{}, err
	}

	if err := s.updateSummary(dsID, result); err != nil {
		return metadata.PullResult{}, err
	}

	return result, nil
}

// doTransform invokes the engine named by req.Source.Transform.Engine
// and appends its result to c. Safe to call from multiple goroutines
// concurrently for distinct datasets — the broker serializes calls
// made against the same engine name, and c is this dataset's
// own chain.
func (s *Service) doTransform(ctx context.Context, req engine.ExecuteQueryRequest, c *chain.Chain) (metadata.PullResult, error) {
	prevHash, err := c.ReadRef(chain.HeadRef)
	if err != nil {
		return metadata.PullResult{}, fmt.Errorf("transform: read HEAD: %w", err)
	}

	engineName := req.Source.Transform.Engine

	eng, err := s.broker.GetEngine(engineName)
	if err != nil {
		return metadata.PullResult{}, err
	}

	cp := checkpoint.NewManager(s.fs, req.CheckpointsDir)
	if cp.Exists() && (cp.Validate(req.DatasetID, engineName) != nil || cp.Stale(s.clock.Now())) {
		if err := cp.Clear(); err != nil {
			return metadata.PullResult{}, fmt.Errorf("transform: clear stale checkpoint: %w", err)
		}
	}

	resp, err := eng.Transform(ctx, req)
	if err != nil {
		return metadata.PullResult{}, err
	}

	block := resp.Block
	block.PrevBlockHash = prevHash
	block.SystemTime = s.clock.Now()

	hash, err := c.Append(block)
	if err != nil {
		return metadata.PullResult{}, fmt.Errorf("transform: append block: %w", err)
	}

	s.metrics.RecordBlockAppended(ctx, "transform")

	if err := cp.Save(req.DatasetID, engineName, hash); err != nil {
		return metadata.PullResult{}, fmt.Errorf("transform: save checkpoint metadata: %w", err)
	}

	return metadata.Updated(hash), nil
}

// nextOperation computes the ExecuteQueryRequest for dsID's next
// transform run, or nil if every input is already fully processed.
func (s *Service) nextOperation(dsID id.DatasetID) (*engine.ExecuteQueryRequest, error) {
	outputChain, err := s.repo.GetMetadataChain(dsID)
	if err != nil {
		return nil, err
	}

	source, err := soleSource(outputChain)
	if err != nil {
		return nil, err
	}

	if source.Derivative == nil {
		return nil, fmt.Errorf("transform: %s is not a derivative dataset", dsID)
	}

	deriv := *source.Derivative

	inputSlices := make(map[string]engine.InputDataSlice, len(deriv.Inputs))
	nonEmpty := 0

	for index, inputID := range deriv.Inputs {
		slice, empty, err := s.inputSlice(index, inputID, outputChain)
		if err != nil {
			return nil, err
		}

		inputSlices[inputID.String()] = slice

		if !empty {
			nonEmpty++
		}
	}

	if nonEmpty == 0 {
		return nil, nil
	}

	vocabs := make(map[string]metadata.DatasetVocab, len(deriv.Inputs)+1)
	dataDirs := make(map[string]string, len(deriv.Inputs)+1)

	for _, inputID := range deriv.Inputs {
		summary, err := s.repo.GetSummary(inputID)
		if err != nil {
			return nil, err
		}

		vocabs[inputID.String()] = vocabOrZero(summary.Vocab)
		dataDirs[inputID.String()] = s.layout.DataDirFor(inputID)
	}

	outputSummary, err := s.repo.GetSummary(dsID)
	if err != nil {
		return nil, err
	}

	vocabs[dsID.String()] = vocabOrZero(outputSummary.Vocab)
	dataDirs[dsID.String()] = s.layout.DataDirFor(dsID)

	return &engine.ExecuteQueryRequest{
		DatasetID:      dsID.String(),
		Source:         deriv,
		DatasetVocabs:  vocabs,
		InputSlices:    inputSlices,
		DataDirs:       dataDirs,
		CheckpointsDir: s.layout.CheckpointsDirFor(dsID),
	}, nil
}

// soleSource returns dsID's one-and-only declared source. A chain in
// which more than one block declares a source is transform evolution,
// which this pipeline does not support (at most one non-null source).
func soleSource(c *chain.Chain) (metadata.DatasetSource, error) {
	it, err := c.IterBlocks()
	if err != nil {
		return metadata.DatasetSource{}, fmt.Errorf("transform: read chain: %w", err)
	}

	var found *metadata.DatasetSource

	count := 0

	for {
		block, ok := it.Next()
		if !ok {
			break
		}

		if block.Source != nil {
			count++
			found = block.Source
		}
	}

	if it.Err() != nil {
		return metadata.DatasetSource{}, fmt.Errorf("transform: iterate chain: %w", it.Err())
	}

	if count > 1 {
		return metadata.DatasetSource{}, fmt.Errorf("transform: evolution not implemented: %d blocks declare a source", count)
	}

	if found == nil {
		return metadata.DatasetSource{}, fmt.Errorf("transform: dataset has no declared source")
	}

	return *found, nil
}

// inputSlice computes one input's contribution to the next transform
// request: the interval of records still unprocessed,
// intersected with what the input actually has available, plus any
// watermarks the input has explicitly declared within that span.
//
// empty reports whether this input contributes nothing new: no output
// slice and no watermark within the unprocessed range.
func (s *Service) inputSlice(index int, inputID id.DatasetID, outputChain *chain.Chain) (engine.InputDataSlice, bool, error) {
	ivProcessed, err := processedInterval(index, outputChain)
	if err != nil {
		return engine.InputDataSlice{}, false, err
	}

	ivUnprocessed := interval.RightComplement(ivProcessed)

	inputChain, err := s.repo.GetMetadataChain(inputID)
	if err != nil {
		return engine.InputDataSlice{}, false, err
	}

	it, err := inputChain.IterBlocks()
	if err != nil {
		return engine.InputDataSlice{}, false, fmt.Errorf("transform: read input chain %s: %w", inputID, err)
	}

	var unprocessed []metadata.Block

	for {
		block, ok := it.Next()
		if !ok {
			break
		}

		if !ivUnprocessed.ContainsPoint(block.SystemTime) {
			break
		}

		unprocessed = append(unprocessed, block)
	}

	if it.Err() != nil {
		return engine.InputDataSlice{}, false, fmt.Errorf("transform: iterate input chain %s: %w", inputID, it.Err())
	}

	ivAvailable := interval.Empty()
	if len(unprocessed) > 0 {
		ivAvailable = interval.UnboundedClosedRight(unprocessed[0].SystemTime)
	}

	ivToProcess := interval.Intersect(ivAvailable, ivUnprocessed)

	var watermarks []metadata.Watermark

	hasOutputSlice := false

	for i := len(unprocessed) - 1; i >= 0; i-- {
		block := unprocessed[i]

		if block.OutputWatermark != nil {
			watermarks = append(watermarks, metadata.Watermark{
				SystemTime: block.SystemTime,
				EventTime:  *block.OutputWatermark,
			})
		}

		if block.OutputSlice != nil {
			hasOutputSlice = true
		}
	}

	empty := !hasOutputSlice && len(watermarks) == 0

	return engine.InputDataSlice{
		Interval:           ivToProcess,
		ExplicitWatermarks: watermarks,
	}, empty, nil
}

// processedInterval finds the most recent interval this output chain
// has already recorded for the given input index: the empty interval
// if no block has processed this input yet, otherwise the first
// non-empty interval found walking HEAD toward genesis.
func processedInterval(index int, outputChain *chain.Chain) (interval.Interval, error) {
	it, err := outputChain.IterBlocks()
	if err != nil {
		return interval.Interval{}, fmt.Errorf("transform: read output chain: %w", err)
	}

	for {
		block, ok := it.Next()
		if !ok {
			break
		}

		if block.InputSlices == nil || index >= len(block.InputSlices) {
			continue
		}

		iv := block.InputSlices[index].Interval
		if !iv.IsEmpty() {
			return iv, nil
		}
	}

	if it.Err() != nil {
		return interval.Interval{}, fmt.Errorf("transform: iterate output chain: %w", it.Err())
	}

	return interval.Empty(), nil
}

// updateSummary applies the post-commit summary update.
// UpToDate is a no-op; Updated recomputes record count and data size
// from the newly appended block.
func (s *Service) updateSummary(dsID id.DatasetID, result metadata.PullResult) error {
	if !result.IsUpdated() {
		return nil
	}

	c, err := s.repo.GetMetadataChain(dsID)
	if err != nil {
		return err
	}

	block, err := c.GetBlock(result.BlockHash)
	if err != nil {
		return fmt.Errorf("transform: load committed block: %w", err)
	}

	summary, err := s.repo.GetSummary(dsID)
	if err != nil {
		return err
	}

	if block.OutputSlice != nil {
		summary.NumRecords += block.OutputSlice.NumRecords
	} else {
		summary.NumRecords = 0
	}

	lastPulled := block.SystemTime
	summary.LastPulled = &lastPulled

	if size, err := dirSize(s.fs, s.layout.DataDirFor(dsID), s.layout.CheckpointsDirFor(dsID)); err == nil {
		summary.DataSize = size
	}

	return s.repo.UpdateSummary(dsID, summary)
}

func vocabOrZero(v *metadata.DatasetVocab) metadata.DatasetVocab {
	if v == nil {
		return metadata.DatasetVocab{}
	}

	return *v
}

func wrapTransformError(dsID id.DatasetID, cause error) error {
	return &domainerrors.TransformError{DatasetID: dsID.String(), Cause: cause}
}

// dirSize sums the on-disk size of every regular file under the given
// directories, recomputing data_size afterward.
func dirSize(fs afero.Fs, dirs ...string) (int64, error) {
	var total int64

	for _, dir := range dirs {
		exists, err := afero.DirExists(fs, dir)
		if err != nil || !exists {
			continue
		}

		walkErr := afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if !info.IsDir() {
				total += info.Size()
			}

			return nil
		})
		if walkErr != nil {
			return 0, fmt.Errorf("transform: walk %s: %w", dir, walkErr)
		}
	}

	return total, nil
}
