// Package repository implements the metadata repository: the
// catalog of every dataset's chain and summary sidecar, backed by an
// afero.Fs workspace tree. It is modeled as a single owned authority
// accessed through serialized calls — concurrent workers hold it
// behind one shared handle and every public method takes the
// repository-wide lock.
package repository

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/internal/chain"
	domainerrors "github.com/Sumatoshi-tech/odfcore/internal/domain/errors"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
	"github.com/Sumatoshi-tech/odfcore/pkg/clock"
	"github.com/Sumatoshi-tech/odfcore/pkg/manifest"
)

const summaryFileName = "summary"

// WorkspaceLayout names the directories a repository reads and writes,
// mirroring the teacher's config-driven path layout and the persisted
// layout: datasets/<id>/ for chain storage plus a summary sidecar, and
// <volume>/{data,checkpoints,cache}/<id>/ for bulk artifacts.
type WorkspaceLayout struct {
	DatasetsDir    string
	DataDir        string
	CheckpointsDir string
	CacheDir       string
}

// ChainDir returns the directory a dataset's chain and summary live in.
func (w WorkspaceLayout) ChainDir(dsID id.DatasetID) string {
	return filepath.Join(w.DatasetsDir, dsID.String())
}

// SummaryPath returns the path of a dataset's summary sidecar.
func (w WorkspaceLayout) SummaryPath(dsID id.DatasetID) string {
	return filepath.Join(w.ChainDir(dsID), summaryFileName)
}

// DataDirFor returns a dataset's bulk data directory.
func (w WorkspaceLayout) DataDirFor(dsID id.DatasetID) string {
	return filepath.Join(w.DataDir, dsID.String())
}

// CheckpointsDirFor returns a dataset's checkpoints directory.
func (w WorkspaceLayout) CheckpointsDirFor(dsID id.DatasetID) string {
	return filepath.Join(w.CheckpointsDir, dsID.String())
}

// CacheDirFor returns a dataset's cache directory.
func (w WorkspaceLayout) CacheDirFor(dsID id.DatasetID) string {
	return filepath.Join(w.CacheDir, dsID.String())
}

// Repository is the metadata repository: the exclusive owner of the
// mapping from dataset id to chain location and summary.
type Repository struct {
	fs     afero.Fs
	layout WorkspaceLayout
	clock  clock.Clock

	mu sync.Mutex
}

// New constructs a Repository rooted at layout on fs.
func New(fs afero.Fs, layout WorkspaceLayout) *Repository {
	return &Repository{fs: fs, layout: layout, clock: clock.SystemClock{}}
}

// SetClock overrides the Repository's time source, letting tests stamp
// genesis blocks with a fixed time instead of the real clock.
func (r *Repository) SetClock(c clock.Clock) {
	r.clock = c
}

// ListDatasets enumerates every dataset directory under the workspace.
func (r *Repository) ListDatasets() ([]id.DatasetID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listDatasetsLocked()
}

func (r *Repository) listDatasetsLocked() ([]id.DatasetID, error) {
	exists, err := afero.DirExists(r.fs, r.layout.DatasetsDir)
	if err != nil {
		return nil, fmt.Errorf("repository: stat datasets dir: %w", err)
	}

	if !exists {
		return nil, nil
	}

	entries, err := afero.ReadDir(r.fs, r.layout.DatasetsDir)
	if err != nil {
		return nil, fmt.Errorf("repository: list datasets: %w", err)
	}

	ids := make([]id.DatasetID, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		parsed, err := id.Parse(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("repository: %w", err)
		}

		ids = append(ids, parsed)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })

	return ids, nil
}

func (r *Repository) datasetExistsLocked(dsID id.DatasetID) (bool, error) {
	return afero.DirExists(r.fs, r.layout.ChainDir(dsID))
}

// AddDataset creates a dataset's chain (genesis block holding
// snapshot.Source) and a fresh summary. For a derivative snapshot,
// every input must already exist or this fails with MissingReference.
func (r *Repository) AddDataset(snapshot metadata.DatasetSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.addDatasetLocked(snapshot)
}

func (r *Repository) addDatasetLocked(snapshot metadata.DatasetSnapshot) error {
	exists, err := r.datasetExistsLocked(snapshot.ID)
	if err != nil {
		return err
	}

	if exists {
		return domainerrors.NewAlreadyExists(domainerrors.ResourceKindDataset, snapshot.ID.String())
	}

	kind := metadata.DatasetKindRoot

	var dependencies []id.DatasetID

	if snapshot.Source.Derivative != nil {
		kind = metadata.DatasetKindDerivative
		dependencies = snapshot.Source.Derivative.Inputs

		for _, inputID := range dependencies {
			inputExists, err := r.datasetExistsLocked(inputID)
			if err != nil {
				return err
			}

			if !inputExists {
				return domainerrors.NewMissingReference(
					domainerrors.ResourceKindDataset, snapshot.ID.String(),
					domainerrors.ResourceKindDataset, inputID.String(),
				)
			}
		}
	}

	genesis := metadata.Block{
		SystemTime: r.clock.Now(),
		Source:     &snapshot.Source,
	}

	if _, err := chain.Create(r.fs, r.layout.ChainDir(snapshot.ID), genesis); err != nil {
		return fmt.Errorf("repository: create chain for %s: %w", snapshot.ID, err)
	}

	summary := metadata.Summary{
		ID:           snapshot.ID,
		Kind:         kind,
		Dependencies: dependencies,
		Vocab:        snapshot.Vocab,
	}

	return r.updateSummaryLocked(snapshot.ID, summary)
}

// AddResult is the outcome of adding one snapshot from a batch.
type AddResult struct {
	ID  id.DatasetID
	Err error
}

// AddDatasets reorders a batch by dependency (every derivative after
// its inputs) and adds each in turn. A batch containing a
// dependency cycle cannot be fully ordered; once a full pass of the
// queue makes no progress, every still-pending snapshot is failed with
// CircularDependencyError instead of looping forever.
func (r *Repository) AddDatasets(snapshots []metadata.DatasetSnapshot) []AddResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered, circular := sortByDependencyOrder(snapshots)

	results := make([]AddResult, 0, len(snapshots))

	for _, snapshot := range ordered {
		results = append(results, AddResult{ID: snapshot.ID, Err: r.addDatasetLocked(snapshot)})
	}

	if len(circular) > 0 {
		ids := make([]string, len(circular))
		for i, s := range circular {
			ids[i] = s.ID.String()
		}

		err := domainerrors.NewCircularDependencyError(ids)
		for _, s := range circular {
			results = append(results, AddResult{ID: s.ID, Err: err})
		}
	}

	return results
}

// sortByDependencyOrder implements the queue/requeue algorithm:
// repeatedly dequeue the head; emit it if it is a root or none
// of its inputs are still pending in this batch, otherwise requeue at
// the tail. A streak of requeues equal to the current queue length
// means every remaining entry was requeued once without anything being
// emitted — a full pass with no progress, which can only happen if the
// remaining entries form a cycle.
func sortByDependencyOrder(snapshots []metadata.DatasetSnapshot) (ordered, circular []metadata.DatasetSnapshot) {
	queue := make([]metadata.DatasetSnapshot, len(snapshots))
	copy(queue, snapshots)

	pending := make(map[string]struct{}, len(queue))
	for _, s := range queue {
		pending[s.ID.String()] = struct{}{}
	}

	noProgressStreak := 0

	for len(queue) > 0 {
		if noProgressStreak >= len(queue) {
			circular = append(circular, queue...)

			return ordered, circular
		}

		head := queue[0]
		queue = queue[1:]

		hasPendingDep := false

		if head.Source.Derivative != nil {
			for _, inputID := range head.Source.Derivative.Inputs {
				if _, stillPending := pending[inputID.String()]; stillPending {
					hasPendingDep = true

					break
				}
			}
		}

		if !hasPendingDep {
			delete(pending, head.ID.String())
			ordered = append(ordered, head)
			noProgressStreak = 0
		} else {
			queue = append(queue, head)
			noProgressStreak++
		}
	}

	return ordered, circular
}

// DeleteDataset removes a dataset's chain plus its cache, checkpoints,
// and data directories. It fails with DanglingReference if any other
// dataset's summary still lists it as a dependency. Missing bulk
// directories are tolerated.
func (r *Repository) DeleteDataset(dsID id.DatasetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.datasetExistsLocked(dsID)
	if err != nil {
		return err
	}

	if !exists {
		return domainerrors.NewDoesNotExist(domainerrors.ResourceKindDataset, dsID.String())
	}

	allIDs, err := r.listDatasetsLocked()
	if err != nil {
		return err
	}

	var dependents []domainerrors.FromIDs

	for _, other := range allIDs {
		if other.Equal(dsID) {
			continue
		}

		summary, err := r.getSummaryLocked(other)
		if err != nil {
			return err
		}

		for _, dep := range summary.Dependencies {
			if dep.Equal(dsID) {
				dependents = append(dependents, domainerrors.FromIDs{
					Kind: domainerrors.ResourceKindDataset,
					ID:   other.String(),
				})

				break
			}
		}
	}

	if len(dependents) > 0 {
		return domainerrors.NewDanglingReference(dependents, domainerrors.ResourceKindDataset, dsID.String())
	}

	paths := []string{
		r.layout.CacheDirFor(dsID),
		r.layout.CheckpointsDirFor(dsID),
		r.layout.DataDirFor(dsID),
		r.layout.ChainDir(dsID),
	}

	for _, p := range paths {
		if err := r.fs.RemoveAll(p); err != nil {
			return fmt.Errorf("repository: remove %s: %w", p, err)
		}
	}

	return nil
}

// GetMetadataChain returns a handle to dsID's chain, or DoesNotExist.
func (r *Repository) GetMetadataChain(dsID id.DatasetID) (*chain.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := r.datasetExistsLocked(dsID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, domainerrors.NewDoesNotExist(domainerrors.ResourceKindDataset, dsID.String())
	}

	return chain.Open(r.fs, r.layout.ChainDir(dsID)), nil
}

// GetSummary loads dsID's summary sidecar.
func (r *Repository) GetSummary(dsID id.DatasetID) (metadata.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getSummaryLocked(dsID)
}

func (r *Repository) getSummaryLocked(dsID id.DatasetID) (metadata.Summary, error) {
	exists, err := afero.Exists(r.fs, r.layout.SummaryPath(dsID))
	if err != nil {
		return metadata.Summary{}, fmt.Errorf("repository: stat summary for %s: %w", dsID, err)
	}

	if !exists {
		// An existing dataset with no summary is corruption, not a
		// user-facing condition (repository inconsistencies are
		// fatal asserts).
		return metadata.Summary{}, domainerrors.Internal(
			fmt.Sprintf("dataset %s has no summary sidecar", dsID),
			fmt.Errorf("missing %s", r.layout.SummaryPath(dsID)),
		)
	}

	var summary metadata.Summary

	err = manifest.Load(r.fs, r.layout.SummaryPath(dsID), manifest.KindDatasetSummary, &summary)
	if err != nil {
		return metadata.Summary{}, domainerrors.Internal("load summary for "+dsID.String(), err)
	}

	return summary, nil
}

// UpdateSummary overwrites dsID's summary sidecar.
func (r *Repository) UpdateSummary(dsID id.DatasetID, summary metadata.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updateSummaryLocked(dsID, summary)
}

func (r *Repository) updateSummaryLocked(dsID id.DatasetID, summary metadata.Summary) error {
	if err := r.fs.MkdirAll(r.layout.ChainDir(dsID), 0o750); err != nil {
		return fmt.Errorf("repository: create chain dir for %s: %w", dsID, err)
	}

	if err := manifest.Save(r.fs, r.layout.SummaryPath(dsID), manifest.KindDatasetSummary, summary); err != nil {
		return fmt.Errorf("repository: update summary for %s: %w", dsID, err)
	}

	return nil
}
