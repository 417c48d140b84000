// Package metadata holds the core data model: dataset sources and
// snapshots, metadata blocks, slices, watermarks, and the derived
// summary sidecar. These types are the content wrapped by the
// manifest envelope (pkg/manifest) and the payload hashed by the
// metadata chain (internal/chain).
package metadata

import (
	"time"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/interval"
)

// DatasetKind distinguishes a root dataset (external data enters here)
// from a derivative dataset (computed from other datasets).
type DatasetKind string

// DatasetKind values.
const (
	DatasetKindRoot       DatasetKind = "Root"
	DatasetKindDerivative DatasetKind = "Derivative"
)

// DatasetVocab names the system-time and event-time columns a dataset
// uses. A zero value means "use the engine's defaults".
type DatasetVocab struct {
	SystemTimeColumn string `yaml:"systemTimeColumn,omitempty" json:"systemTimeColumn,omitempty"`
	EventTimeColumn  string `yaml:"eventTimeColumn,omitempty" json:"eventTimeColumn,omitempty"`
}

// FetchStep describes how raw bytes are obtained for a root dataset.
// Its shape is engine/source-specific, so properties are carried as an
// opaque map rather than a closed struct — the same approach the
// engine takes with transform Properties.
type FetchStep struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// PrepareStep describes an optional pre-read transformation of the raw
// fetched bytes (e.g. decompression, archive extraction).
type PrepareStep struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// ReadStep describes how prepared bytes are parsed into records.
type ReadStep struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// PreprocessStep describes an optional post-read query applied before merge.
type PreprocessStep struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// MergeStrategy describes how newly read records are reconciled against
// previously ingested ones (append, ledger, snapshot).
type MergeStrategy struct {
	Kind       string         `yaml:"kind" json:"kind"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// RootSource describes how external data enters a root dataset.
type RootSource struct {
	Fetch      FetchStep       `yaml:"fetch" json:"fetch"`
	Prepare    *PrepareStep    `yaml:"prepare,omitempty" json:"prepare,omitempty"`
	Read       ReadStep        `yaml:"read" json:"read"`
	Preprocess *PreprocessStep `yaml:"preprocess,omitempty" json:"preprocess,omitempty"`
	Merge      MergeStrategy   `yaml:"merge" json:"merge"`
	Vocab      *DatasetVocab   `yaml:"vocab,omitempty" json:"vocab,omitempty"`
}

// Transform names the engine that computes a derivative dataset and
// the (engine-specific) query it runs.
type Transform struct {
	Engine     string         `yaml:"engine" json:"engine"`
	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// DerivativeSource describes a dataset computed from other datasets.
// Inputs order is significant and stable: it indexes InputSlices
// positionally throughout the transform algorithm.
type DerivativeSource struct {
	Inputs    []id.DatasetID `yaml:"inputs" json:"inputs"`
	Transform Transform      `yaml:"transform" json:"transform"`
}

// DatasetSource is the tagged union of how a dataset's records come to
// exist. Exactly one of Root or Derivative is set.
type DatasetSource struct {
	Root       *RootSource       `yaml:"root,omitempty" json:"root,omitempty"`
	Derivative *DerivativeSource `yaml:"derivative,omitempty" json:"derivative,omitempty"`
}

// Kind reports whether this source describes a root or derivative dataset.
func (s DatasetSource) Kind() DatasetKind {
	if s.Derivative != nil {
		return DatasetKindDerivative
	}

	return DatasetKindRoot
}

// DatasetSnapshot is the user-declared description consumed once at
// dataset creation time by repository.Repository.AddDataset.
type DatasetSnapshot struct {
	ID     id.DatasetID   `yaml:"id" json:"id"`
	Source DatasetSource  `yaml:"source" json:"source"`
	Vocab  *DatasetVocab  `yaml:"vocab,omitempty" json:"vocab,omitempty"`
}

// Slice is a contiguous portion of records identified by a time
// interval and a content hash, shared by OutputSlice and InputSlice.
type Slice struct {
	Hash       string            `yaml:"hash" json:"hash"`
	Interval   interval.Interval `yaml:"interval" json:"interval"`
	NumRecords uint64            `yaml:"numRecords" json:"numRecords"`
}

// Watermark is an event-time bound declared by a block, used by
// downstream transforms to close temporal windows.
type Watermark struct {
	SystemTime time.Time `yaml:"systemTime" json:"systemTime"`
	EventTime  time.Time `yaml:"eventTime" json:"eventTime"`
}

// Block is an immutable record appended to a metadata chain. BlockHash
// is assigned at append time and is excluded from the content that is
// hashed to compute it; PrevBlockHash is empty only for the genesis
// block of a chain.
type Block struct {
	BlockHash       string          `yaml:"blockHash" json:"blockHash"`
	PrevBlockHash   string          `yaml:"prevBlockHash" json:"prevBlockHash"`
	SystemTime      time.Time       `yaml:"systemTime" json:"systemTime"`
	Source          *DatasetSource  `yaml:"source,omitempty" json:"source,omitempty"`
	OutputSlice     *Slice          `yaml:"outputSlice,omitempty" json:"outputSlice,omitempty"`
	OutputWatermark *time.Time      `yaml:"outputWatermark,omitempty" json:"outputWatermark,omitempty"`
	InputSlices     []Slice         `yaml:"inputSlices,omitempty" json:"inputSlices,omitempty"`
}

// IsGenesis reports whether b is a chain's first block.
func (b Block) IsGenesis() bool {
	return b.PrevBlockHash == ""
}

// Summary is the derived, eagerly maintained sidecar kept alongside a
// dataset's chain. It is not part of the chain and can be regenerated
// from it at any time.
type Summary struct {
	ID         id.DatasetID   `yaml:"id" json:"id"`
	Kind       DatasetKind    `yaml:"kind" json:"kind"`
	Dependencies []id.DatasetID `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	LastPulled *time.Time     `yaml:"lastPulled,omitempty" json:"lastPulled,omitempty"`
	NumRecords uint64         `yaml:"numRecords" json:"numRecords"`
	DataSize   int64          `yaml:"dataSize" json:"dataSize"`
	Vocab      *DatasetVocab  `yaml:"vocab,omitempty" json:"vocab,omitempty"`
}
