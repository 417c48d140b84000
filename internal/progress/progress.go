// Package progress defines the ingest/transform progress listener
// interfaces and a terminal renderer for them. It plays the
// role indicatif::MultiProgress/ProgressBar play for the original
// PrettyPullProgress: a shared multi-bar display fed by worker
// goroutines and redrawn by one dedicated render loop.
package progress

import (
	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

// IngestStage enumerates the seven stages of the ingest pipeline,
// reported to the listener in this order.
type IngestStage int

// IngestStage values, in pipeline order.
const (
	StageCheckCache IngestStage = iota
	StageFetch
	StagePrepare
	StageRead
	StagePreprocess
	StageMerge
	StageCommit
)

// String names a stage the way the terminal renderer displays it.
func (s IngestStage) String() string {
	switch s {
	case StageCheckCache:
		return "Checking cache"
	case StageFetch:
		return "Fetching"
	case StagePrepare:
		return "Preparing"
	case StageRead:
		return "Reading"
	case StagePreprocess:
		return "Preprocessing"
	case StageMerge:
		return "Merging"
	case StageCommit:
		return "Committing"
	default:
		return "Unknown stage"
	}
}

// IsBarStyle reports whether a stage should render as a determinate
// progress bar (Fetch) rather than a spinner (every other stage).
func (s IngestStage) IsBarStyle() bool {
	return s == StageFetch
}

// IngestListener receives progress notifications for one dataset's
// ingest run.
type IngestListener interface {
	OnStageProgress(stage IngestStage, n, outOf int)
	WarnUncacheable()
	Success(result metadata.PullResult)
	Error(stage IngestStage, err error)
}

// TransformListener receives progress notifications for one dataset's
// transform run.
type TransformListener interface {
	Begin()
	Success(result metadata.PullResult)
	Error(err error)
}

// IngestMultiListener returns a fresh per-dataset IngestListener for
// each dataset a pull wave ingests. The returned listener is used as
// is, so declining to listen means returning a NullIngestListener,
// not nil.
type IngestMultiListener interface {
	BeginIngest(dsID id.DatasetID) IngestListener
}

// TransformMultiListener returns a fresh per-dataset TransformListener
// for each dataset a pull wave transforms. The returned listener is
// used as is, so declining to listen means returning a
// NullTransformListener, not nil.
type TransformMultiListener interface {
	BeginTransform(dsID id.DatasetID) TransformListener
}

// NullIngestListener discards every notification.
type NullIngestListener struct{}

// OnStageProgress implements IngestListener.
func (NullIngestListener) OnStageProgress(IngestStage, int, int) {}

// WarnUncacheable implements IngestListener.
func (NullIngestListener) WarnUncacheable() {}

// Success implements IngestListener.
func (NullIngestListener) Success(metadata.PullResult) {}

// Error implements IngestListener.
func (NullIngestListener) Error(IngestStage, error) {}

// NullTransformListener discards every notification.
type NullTransformListener struct{}

// Begin implements TransformListener.
func (NullTransformListener) Begin() {}

// Success implements TransformListener.
func (NullTransformListener) Success(metadata.PullResult) {}

// Error implements TransformListener.
func (NullTransformListener) Error(error) {}

// NullMultiListener declines to listen to any dataset by handing out
// the null listeners above.
type NullMultiListener struct{}

// BeginIngest implements IngestMultiListener.
func (NullMultiListener) BeginIngest(id.DatasetID) IngestListener { return NullIngestListener{} }

// BeginTransform implements TransformMultiListener.
func (NullMultiListener) BeginTransform(id.DatasetID) TransformListener {
	return NullTransformListener{}
}
