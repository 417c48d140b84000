package progress

import (
	"fmt"
	"sync"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/Sumatoshi-tech/odfcore/internal/domain/id"
	"github.com/Sumatoshi-tech/odfcore/internal/domain/metadata"
)

// TerminalMultiListener renders every in-flight dataset's progress as
// one line in a shared multi-tracker display, redrawn by a dedicated
// goroutine (progress rendering runs on a dedicated thread). It
// implements both IngestMultiListener and TransformMultiListener so
// one instance can back a whole pull.
type TerminalMultiListener struct {
	writer progress.Writer

	mu      sync.Mutex
	started bool
}

// NewTerminalMultiListener constructs a renderer. Call Start before the
// first dataset begins and Stop once the pull completes.
func NewTerminalMultiListener() *TerminalMultiListener {
	pw := progress.NewWriter()
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.Style().Visibility.Percentage = true
	pw.Style().Visibility.Value = true
	pw.Style().Visibility.ETA = false

	return &TerminalMultiListener{writer: pw}
}

// Start launches the dedicated render goroutine.
func (t *TerminalMultiListener) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return
	}

	t.started = true

	go t.writer.Render()
}

// Stop signals the render goroutine to finish drawing pending frames.
func (t *TerminalMultiListener) Stop() {
	t.writer.Stop()
}

// BeginIngest implements IngestMultiListener.
func (t *TerminalMultiListener) BeginIngest(dsID id.DatasetID) IngestListener {
	return &terminalIngestListener{dsID: dsID, writer: t.writer}
}

// BeginTransform implements TransformMultiListener.
func (t *TerminalMultiListener) BeginTransform(dsID id.DatasetID) TransformListener {
	return &terminalTransformListener{dsID: dsID, writer: t.writer}
}

type terminalIngestListener struct {
	dsID    id.DatasetID
	writer  progress.Writer
	tracker *progress.Tracker
}

func (l *terminalIngestListener) trackerFor(stage IngestStage, outOf int) *progress.Tracker {
	if l.tracker != nil {
		l.tracker.MarkAsDone()
	}

	units := progress.UnitsDefault
	total := int64(outOf)

	if stage.IsBarStyle() && total <= 0 {
		total = 1
	}

	l.tracker = &progress.Tracker{
		Message: fmt.Sprintf("%s %s", l.dsID, stage),
		Total:   total,
		Units:   units,
	}
	l.writer.AppendTracker(l.tracker)

	return l.tracker
}

// OnStageProgress implements IngestListener. Every stage's tracker
// takes outOf as its total; fetch always renders as a determinate bar
// (a non-positive outOf becomes a total of 1), while any other stage
// with a non-positive outOf renders as an indeterminate tracker.
func (l *terminalIngestListener) OnStageProgress(stage IngestStage, n, outOf int) {
	if l.tracker == nil || l.tracker.Message != fmt.Sprintf("%s %s", l.dsID, stage) {
		l.trackerFor(stage, outOf)
	}

	l.tracker.SetValue(int64(n))
}

func (l *terminalIngestListener) WarnUncacheable() {
	color.Yellow("warning: %s: source data is not cacheable; it will be re-fetched on every pull", l.dsID)
}

func (l *terminalIngestListener) Success(result metadata.PullResult) {
	if l.tracker != nil {
		l.tracker.MarkAsDone()
	}

	if result.IsUpdated() {
		color.Green("%s: updated (%s)", l.dsID, result.BlockHash)
	} else {
		color.Cyan("%s: up to date", l.dsID)
	}
}

func (l *terminalIngestListener) Error(stage IngestStage, err error) {
	if l.tracker != nil {
		l.tracker.MarkAsErrored()
	}

	color.Red("%s: failed during %s: %v", l.dsID, stage, err)
}

type terminalTransformListener struct {
	dsID    id.DatasetID
	writer  progress.Writer
	tracker *progress.Tracker
}

func (l *terminalTransformListener) Begin() {
	l.tracker = &progress.Tracker{
		Message: fmt.Sprintf("%s transforming", l.dsID),
		Total:   1,
	}
	l.writer.AppendTracker(l.tracker)
}

func (l *terminalTransformListener) Success(result metadata.PullResult) {
	if l.tracker != nil {
		l.tracker.MarkAsDone()
	}

	if result.IsUpdated() {
		color.Green("%s: updated (%s)", l.dsID, result.BlockHash)
	} else {
		color.Cyan("%s: up to date", l.dsID)
	}
}

func (l *terminalTransformListener) Error(err error) {
	if l.tracker != nil {
		l.tracker.MarkAsErrored()
	}

	color.Red("%s: transform failed: %v", l.dsID, err)
}
