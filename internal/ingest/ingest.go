// Package ingest drives the root-dataset ingest pipeline:
// CheckCache, Fetch, Prepare, Read, Preprocess, Merge, Commit. Prepare
// through Merge are delegated to a single engine call (the engine owns
// the actual parse/transform logic); this service is responsible for
// the surrounding cache lifecycle and the chain commit.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/internal/chain"
	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/internal/engine"
	"github.com/Sumatoshi-tech/odfcore/internal/progress"
	"github.com/Sumatoshi-tech/odfcore/internal/repository"
	"github.com/Sumatoshi-tech/odfcore/pkg/checkpoint"
	"github.com/Sumatoshi-tech/odfcore/pkg/clock"
	"github.com/Sumatoshi-tech/odfcore/pkg/observability"
)

// ingestEngineName is the broker key every root dataset's engine call
// is made under. Unlike DerivativeSource, RootSource does not name an
// engine of its own — ingestion always goes through the same built-in
// fetch/prepare/read/preprocess/merge engine.
const ingestEngineName = "ingest"

const cacheDirPerm = 0o750

// Fetcher retrieves the raw bytes for a root dataset's Fetch step and
// writes them to dest. It reports whether the fetched data is safe to
// cache for subsequent runs (special case).
type Fetcher interface {
	Fetch(ctx context.Context, step metadata.FetchStep, dest io.Writer) (cacheable bool, err error)
}

// Service drives the ingest pipeline for root datasets.
type Service struct {
	fs      afero.Fs
	repo    *repository.Repository
	broker  *engine.Broker
	layout  repository.WorkspaceLayout
	fetcher Fetcher
	clock   clock.Clock
	metrics *observability.PullMetrics
}

// NewService constructs an ingest Service.
func NewService(
	fs afero.Fs,
	repo *repository.Repository,
	broker *engine.Broker,
	layout repository.WorkspaceLayout,
	fetcher Fetcher,
) *Service {
	return &Service{fs: fs, repo: repo, broker: broker, layout: layout, fetcher: fetcher, clock: clock.SystemClock{}}
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

// Ingest runs the full pipeline for dsID and reports each stage to
// listener in order.
func (s *Service) Ingest(ctx context.Context, dsID id.DatasetID, listener progress.IngestListener) (metadata.PullResult, error) {
	c, err := s.repo.GetMetadataChain(dsID)
	if err != nil {
		return metadata.PullResult{}, err
	}

	source, err := latestSource(c)
	if err != nil {
		return metadata.PullResult{}, wrapIngestError(dsID, err)
	}

	if source == nil || source.Root == nil {
		return metadata.PullResult{}, wrapIngestError(dsID, fmt.Errorf("dataset has no root source"))
	}

	listener.OnStageProgress(progress.StageCheckCache, 1, 1)

	hit, ingestPath, err := s.checkCache(dsID, *source.Root)
	if err != nil {
		listener.Error(progress.StageCheckCache, err)

		return metadata.PullResult{}, wrapIngestError(dsID, err)
	}

	listener.OnStageProgress(progress.StageFetch, 0, 1)

	if !hit {
		cacheable, fetchErr := s.fetch(ctx, *source.Root, ingestPath)
		if fetchErr != nil {
			listener.Error(progress.StageFetch, fetchErr)

			return metadata.PullResult{}, wrapIngestError(dsID, fetchErr)
		}

		if !cacheable {
			listener.WarnUncacheable()
		}
	}

	listener.OnStageProgress(progress.StageFetch, 1, 1)

	for _, stage := range []progress.IngestStage{
		progress.StagePrepare, progress.StageRead, progress.StagePreprocess, progress.StageMerge,
	} {
		listener.OnStageProgress(stage, 1, 1)
	}

	eng, err := s.broker.GetEngine(ingestEngineName)
	if err != nil {
		listener.Error(progress.StageMerge, err)

		return metadata.PullResult{}, wrapIngestError(dsID, err)
	}

	checkpointsDir := s.layout.CheckpointsDirFor(dsID)

	cp := checkpoint.NewManager(s.fs, checkpointsDir)
	if cp.Exists() && (cp.Validate(dsID.String(), ingestEngineName) != nil || cp.Stale(s.clock.Now())) {
		if clearErr := cp.Clear(); clearErr != nil {
			listener.Error(progress.StageMerge, clearErr)

			return metadata.PullResult{}, wrapIngestError(dsID, clearErr)
		}
	}

	resp, err := eng.Ingest(ctx, engine.IngestRequest{
		DatasetID:      dsID.String(),
		IngestPath:     ingestPath,
		Source:         *source.Root,
		DatasetVocab:   vocabOrZero(source.Root.Vocab),
		CheckpointsDir: checkpointsDir,
		DataDir:        s.layout.DataDirFor(dsID),
	})
	if err != nil {
		listener.Error(progress.StageMerge, err)

		return metadata.PullResult{}, wrapIngestError(dsID, err)
	}

	listener.OnStageProgress(progress.StageCommit, 0, 1)

	result, err := s.commit(ctx, dsID, c, resp.Block)
	if err != nil {
		listener.Error(progress.StageCommit, err)

		return metadata.PullResult{}, wrapIngestError(dsID, err)
	}

	if result.Kind == metadata.PullResultUpdated {
		if saveErr := cp.Save(dsID.String(), ingestEngineName, result.BlockHash); saveErr != nil {
			listener.Error(progress.StageCommit, saveErr)

			return metadata.PullResult{}, wrapIngestError(dsID, saveErr)
		}
	}

	listener.OnStageProgress(progress.StageCommit, 1, 1)
	listener.Success(result)

	return result, nil
}

// latestSource scans c from HEAD toward genesis for the most recent
// declared source. Today's chains carry at most one non-null source
// along a chain, so the genesis block's is always the one found.
func latestSource(c *chain.Chain) (*metadata.DatasetSource, error) {
	it, err := c.IterBlocks()
	if err != nil {
		return nil, fmt.Errorf("ingest: read chain: %w", err)
	}

	for {
		block, ok := it.Next()
		if !ok {
			break
		}

		if block.Source != nil {
			return block.Source, nil
		}
	}

	if it.Err() != nil {
		return nil, fmt.Errorf("ingest: iterate chain: %w", it.Err())
	}

	return nil, nil
}

func (s *Service) cacheKey(root metadata.RootSource) (string, error) {
	data, err := json.Marshal(root.Fetch)
	if err != nil {
		return "", fmt.Errorf("ingest: hash fetch step: %w", err)
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:8]), nil
}

// checkCache reports whether a compressed cache blob already exists
// for root's fetch step, and the path the (decompressed) ingest file
// should live at either way.
func (s *Service) checkCache(dsID id.DatasetID, root metadata.RootSource) (hit bool, ingestPath string, err error) {
	cacheDir := s.layout.CacheDirFor(dsID)
	if err := s.fs.MkdirAll(cacheDir, cacheDirPerm); err != nil {
		return false, "", fmt.Errorf("ingest: create cache dir: %w", err)
	}

	key, err := s.cacheKey(root)
	if err != nil {
		return false, "", err
	}

	ingestPath = filepath.Join(cacheDir, key+".raw")
	compressedPath := filepath.Join(cacheDir, key+".lz4")

	exists, err := afero.Exists(s.fs, compressedPath)
	if err != nil {
		return false, ingestPath, fmt.Errorf("ingest: stat cache blob: %w", err)
	}

	if !exists {
		return false, ingestPath, nil
	}

	if err := s.decompressCache(compressedPath, ingestPath); err != nil {
		return false, ingestPath, err
	}

	return true, ingestPath, nil
}

// fetch runs the Fetcher, tee-ing raw bytes to ingestPath and an
// lz4-compressed copy alongside it. The compressed copy is discarded
// when the source declares itself non-cacheable.
func (s *Service) fetch(ctx context.Context, root metadata.RootSource, ingestPath string) (cacheable bool, err error) {
	key, err := s.cacheKey(root)
	if err != nil {
		return false, err
	}

	compressedPath := filepath.Join(filepath.Dir(ingestPath), key+".lz4")

	raw, err := s.fs.Create(ingestPath)
	if err != nil {
		return false, fmt.Errorf("ingest: create ingest file: %w", err)
	}
	defer raw.Close()

	compressed, err := s.fs.Create(compressedPath)
	if err != nil {
		return false, fmt.Errorf("ingest: create cache blob: %w", err)
	}
	defer compressed.Close()

	lzw := lz4.NewWriter(compressed)

	cacheable, fetchErr := s.fetcher.Fetch(ctx, root.Fetch, io.MultiWriter(raw, lzw))
	if fetchErr != nil {
		return false, fmt.Errorf("ingest: fetch: %w", fetchErr)
	}

	if err := lzw.Close(); err != nil {
		return false, fmt.Errorf("ingest: finalize cache blob: %w", err)
	}

	if !cacheable {
		_ = s.fs.Remove(compressedPath)
	}

	return cacheable, nil
}

func (s *Service) decompressCache(compressedPath, destPath string) error {
	src, err := s.fs.Open(compressedPath)
	if err != nil {
		return fmt.Errorf("ingest: open cache blob: %w", err)
	}
	defer src.Close()

	dst, err := s.fs.Create(destPath)
	if err != nil {
		return fmt.Errorf("ingest: create ingest file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, lz4.NewReader(src)); err != nil {
		return fmt.Errorf("ingest: decompress cache blob: %w", err)
	}

	return nil
}

// commit stitches block.PrevBlockHash to HEAD, appends it, and — when
// the block carries new data or a watermark — updates the summary.
func (s *Service) commit(ctx context.Context, dsID id.DatasetID, c *chain.Chain, block metadata.Block) (metadata.PullResult, error) {
	head, err := c.ReadRef(chain.HeadRef)
	if err != nil {
		return metadata.PullResult{}, fmt.Errorf("ingest: read HEAD: %w", err)
	}

	block.PrevBlockHash = head
	block.SystemTime = s.clock.Now()

	hash, err := c.Append(block)
	if err != nil {
		return metadata.PullResult{}, fmt.Errorf("ingest: append block: %w", err)
	}

	s.metrics.RecordBlockAppended(ctx, "ingest")

	if block.OutputSlice == nil && block.OutputWatermark == nil {
		return metadata.UpToDate(), nil
	}

	summary, err := s.repo.GetSummary(dsID)
	if err != nil {
		return metadata.PullResult{}, err
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

	if err := s.repo.UpdateSummary(dsID, summary); err != nil {
		return metadata.PullResult{}, err
	}

	return metadata.Updated(hash), nil
}

func vocabOrZero(v *metadata.DatasetVocab) metadata.DatasetVocab {
	if v == nil {
		return metadata.DatasetVocab{}
	}

	return *v
}

func wrapIngestError(dsID id.DatasetID, cause error) error {
	return &domainerrors.IngestError{DatasetID: dsID.String(), Cause: cause}
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
			return 0, fmt.Errorf("ingest: walk %s: %w", dir, walkErr)
		}
	}

	return total, nil
}
