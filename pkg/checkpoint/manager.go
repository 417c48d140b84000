package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/odfcore/pkg/persist"
)

const metadataStateName = "checkpoint"

// MetadataVersion is the current checkpoint metadata format version.
const MetadataVersion = 1

// Sentinel errors for checkpoint validation.
var (
	ErrDatasetMismatch = errors.New("checkpoint dataset mismatch")
	ErrEngineMismatch  = errors.New("checkpoint engine mismatch")
)

// DefaultDir returns ~/.odfcore/checkpoints (./.odfcore/checkpoints
// when the home directory cannot be resolved). Workspace config does
// not use it: an unset workspace.checkpoints_dir resolves under
// workspace.root.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".odfcore", "checkpoints")
}

// Default retention values: past MaxAge or MaxSize, a checkpoint is
// considered not worth resuming from and is cleared before the next
// engine run rather than handed to it.
const (
	DefaultMaxAge  = 7 * 24 * time.Hour // 7 days.
	DefaultMaxSize = 1 << 30            // 1GB.
)

const dirPerm = 0o750

// Manager governs one dataset's checkpoint directory on fs. Dir is
// normally repository.WorkspaceLayout.CheckpointsDirFor(dsID) — the
// same directory path handed to the engine as IngestRequest/
// ExecuteQueryRequest's CheckpointsDir.
type Manager struct {
	fs afero.Fs

	Dir     string
	MaxAge  time.Duration
	MaxSize int64
}

// NewManager constructs a Manager over dir on fs with default retention.
func NewManager(fs afero.Fs, dir string) *Manager {
	return &Manager{
		fs:      fs,
		Dir:     dir,
		MaxAge:  DefaultMaxAge,
		MaxSize: DefaultMaxSize,
	}
}

// MetadataPath returns the path to the provenance sidecar file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.Dir, metadataStateName+".json")
}

// Exists reports whether a provenance sidecar is present.
func (m *Manager) Exists() bool {
	exists, err := afero.Exists(m.fs, m.MetadataPath())

	return err == nil && exists
}

// Clear removes the entire checkpoint directory, sidecar included.
func (m *Manager) Clear() error {
	exists, err := afero.DirExists(m.fs, m.Dir)
	if err != nil {
		return fmt.Errorf("checkpoint: stat dir: %w", err)
	}

	if !exists {
		return nil
	}

	if err := m.fs.RemoveAll(m.Dir); err != nil {
		return fmt.Errorf("checkpoint: remove dir: %w", err)
	}

	return nil
}

// Save writes the provenance sidecar recording that engineName
// produced the checkpoint bytes currently on disk for dsID, against
// blockHash. It does not touch the engine's own checkpoint bytes —
// those are written directly by the engine subprocess into Dir as
// part of the ingest/transform call this follows.
func (m *Manager) Save(datasetID, engineName, blockHash string) error {
	if err := m.fs.MkdirAll(m.Dir, dirPerm); err != nil {
		return fmt.Errorf("checkpoint: create dir: %w", err)
	}

	meta := Metadata{
		Version:    MetadataVersion,
		DatasetID:  datasetID,
		EngineName: engineName,
		BlockHash:  blockHash,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Checksums:  map[string]string{},
	}

	if err := persist.SaveState(m.fs, m.Dir, metadataStateName, persist.NewJSONCodec(), meta); err != nil {
		return fmt.Errorf("checkpoint: save metadata: %w", err)
	}

	return nil
}

// LoadMetadata reads the provenance sidecar.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	var meta Metadata

	if err := persist.LoadState(m.fs, m.Dir, metadataStateName, persist.NewJSONCodec(), &meta); err != nil {
		return nil, fmt.Errorf("checkpoint: load metadata: %w", err)
	}

	return &meta, nil
}

// Validate checks that an existing checkpoint was produced by
// engineName for datasetID — a checkpoint left behind by a different
// engine, or carried over after the dataset's source changed engines,
// is not safe to resume from.
func (m *Manager) Validate(datasetID, engineName string) error {
	meta, err := m.LoadMetadata()
	if err != nil {
		return err
	}

	if meta.DatasetID != datasetID {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrDatasetMismatch, meta.DatasetID, datasetID)
	}

	if meta.EngineName != engineName {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrEngineMismatch, meta.EngineName, engineName)
	}

	return nil
}

// Stale reports whether the checkpoint at Dir is older than MaxAge or
// larger than MaxSize and should be cleared rather than handed to the
// engine for resumption.
func (m *Manager) Stale(now time.Time) bool {
	meta, err := m.LoadMetadata()
	if err != nil {
		return false
	}

	createdAt, err := time.Parse(time.RFC3339, meta.CreatedAt)
	if err == nil && now.Sub(createdAt) > m.MaxAge {
		return true
	}

	size, err := dirSize(m.fs, m.Dir)

	return err == nil && size > m.MaxSize
}

func dirSize(fs afero.Fs, dir string) (int64, error) {
	var total int64

	err := afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			total += info.Size()
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("checkpoint: walk dir: %w", err)
	}

	return total, nil
}
