package services

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"camouflage/internal/frame"
	"camouflage/internal/logger"
	"camouflage/internal/metrics"
	"camouflage/internal/services/compositor"
	"camouflage/internal/services/mask"
	"camouflage/internal/services/median"
	"camouflage/internal/services/segmentation"
)

// SnapshotSink receives a sample of finished composites.
type SnapshotSink interface {
	AddSnapshot(output, background *frame.Frame)
}

// Orchestrator drives the pipeline for every incoming frame. The median cascade
// sees every frame; segmentation and compositing run single-flight, so frames
// that arrive while an inference is outstanding only feed the cascade.
type Orchestrator struct {
	cascade    *median.Cascade
	builder    *mask.Builder
	compositor *compositor.Compositor
	segmenter  segmentation.Segmenter
	frameSize  int

	input      frame.Slot
	background frame.Slot
	output     frame.Slot
	inFlight   atomic.Bool
	failing    atomic.Bool

	stopMu  sync.RWMutex
	stopped bool

	snapshots     SnapshotSink
	snapshotEvery uint64

	metrics *metrics.Metrics
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Pushes             uint64 `json:"pushes"`
	CascadeSizes       [3]int `json:"cascadeSizes"`
	WarmedUp           bool   `json:"warmedUp"`
	WarmupLength       int    `json:"warmupLength"`
	Period             int    `json:"period"`
	InferenceInFlight  bool   `json:"inferenceInFlight"`
	InputVersion       uint64 `json:"inputVersion"`
	BackgroundVersion  uint64 `json:"backgroundVersion"`
	OutputVersion      uint64 `json:"outputVersion"`
	KernelsLoaded      bool   `json:"kernelsLoaded"`
	SegmenterAvailable bool   `json:"segmenterAvailable"`
	TargetLabel        int    `json:"targetLabel"`
	FrameSize          int    `json:"frameSize"`
}

// NewOrchestrator wires the pipeline stages together. frameSize is the edge of
// the square frames HandleFrame accepts.
func NewOrchestrator(cascade *median.Cascade, builder *mask.Builder, comp *compositor.Compositor,
	segmenter segmentation.Segmenter, frameSize int, metrics *metrics.Metrics, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cascade:    cascade,
		builder:    builder,
		compositor: comp,
		segmenter:  segmenter,
		frameSize:  frameSize,
		metrics:    metrics,
		logger:     logger,
	}
}

// SetSnapshotSink hands every n-th composite to sink. Call before the first frame.
func (o *Orchestrator) SetSnapshotSink(sink SnapshotSink, every int) {
	if every < 1 {
		every = 1
	}
	o.snapshots = sink
	o.snapshotEvery = uint64(every)
}

// HandleFrame feeds one frame through the pipeline. It never blocks on
// segmentation. Only precondition violations and frames arriving after Stop
// are returned as errors.
func (o *Orchestrator) HandleFrame(f *frame.Frame) error {
	o.stopMu.RLock()
	defer o.stopMu.RUnlock()
	if o.stopped {
		return fmt.Errorf("pipeline stopped: %w", frame.ErrUnavailable)
	}

	o.metrics.FramesReceived.Add(1)

	if f.Width() != o.frameSize || f.Height() != o.frameSize || f.Channels() != 3 {
		o.metrics.FramesRejected.Add(1)
		err := fmt.Errorf("frame %dx%dx%d, want %dx%dx3: %w",
			f.Width(), f.Height(), f.Channels(), o.frameSize, o.frameSize, frame.ErrShapeMismatch)
		o.logger.Error("Rejected frame: %v", err)
		return err
	}

	o.input.Store(f)

	bg, err := o.cascade.Push(f)
	if err != nil {
		o.metrics.FramesRejected.Add(1)
		o.logger.Error("Median cascade rejected frame: %v", err)
		return err
	}
	if bg != nil {
		o.background.Store(bg)
		o.metrics.CascadeOutputs.Add(1)
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		o.metrics.InferencesDropped.Add(1)
		return nil
	}
	o.metrics.SetInFlight(true)
	o.metrics.InferencesStarted.Add(1)

	started := time.Now()
	task := o.segmenter.Segment(f)

	o.wg.Add(1)
	go o.awaitInference(task, started)
	return nil
}

// awaitInference finishes one single-flight cycle. The gate reopens only after
// the output slot has been updated or the cycle has failed.
func (o *Orchestrator) awaitInference(task *segmentation.Task, started time.Time) {
	defer o.wg.Done()
	defer func() {
		o.metrics.SetInFlight(false)
		o.inFlight.Store(false)
	}()

	labels, err := task.Result()
	o.metrics.UpdateInferenceLatency(time.Since(started))
	if err != nil {
		o.metrics.InferenceFailures.Add(1)
		o.stageFailed("segmentation", err)
		return
	}

	composeStart := time.Now()
	bg := o.background.Load()
	out, err := o.composite(labels, bg)
	o.metrics.UpdateCompositeLatency(time.Since(composeStart))
	if err != nil {
		o.metrics.CompositeFailures.Add(1)
		o.stageFailed("composite", err)
		return
	}

	o.output.Store(out)
	produced := o.metrics.CompositesProduced.Add(1)
	if o.failing.CompareAndSwap(true, false) {
		o.logger.Info("Pipeline recovered, output updating again")
	}

	if o.snapshots != nil && produced%o.snapshotEvery == 0 {
		o.snapshots.AddSnapshot(out, bg)
	}
}

// composite builds the mask and renders it over bg, whatever bg currently holds.
func (o *Orchestrator) composite(labels *frame.LabelTensor, bg *frame.Frame) (*frame.Frame, error) {
	if bg == nil {
		return nil, fmt.Errorf("no background yet: %w", frame.ErrUnavailable)
	}
	m, err := o.builder.Build(labels)
	if err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	return o.compositor.Compose(m, bg)
}

// stageFailed logs precondition violations every time and transient failures
// once per transition into the failing state.
func (o *Orchestrator) stageFailed(stage string, err error) {
	if errors.Is(err, frame.ErrShapeMismatch) || errors.Is(err, frame.ErrWrongInputCount) {
		o.logger.Error("%s failed: %v", stage, err)
		return
	}
	if o.failing.CompareAndSwap(false, true) {
		o.logger.Warning("%s produced no result, keeping previous output: %v", stage, err)
	}
}

// Input returns the latest accepted camera frame.
func (o *Orchestrator) Input() *frame.Frame {
	return o.input.Load()
}

// InputSlot exposes the input cell for version-aware readers.
func (o *Orchestrator) InputSlot() *frame.Slot {
	return &o.input
}

// Background returns the latest stabilized background, or nil before warm-up.
func (o *Orchestrator) Background() *frame.Frame {
	return o.background.Load()
}

// Output returns the latest camouflaged frame, or nil if none was produced yet.
func (o *Orchestrator) Output() *frame.Frame {
	return o.output.Load()
}

// BackgroundSlot exposes the background cell for version-aware readers.
func (o *Orchestrator) BackgroundSlot() *frame.Slot {
	return &o.background
}

// OutputSlot exposes the output cell for version-aware readers.
func (o *Orchestrator) OutputSlot() *frame.Slot {
	return &o.output
}

// Status reports the pipeline state.
func (o *Orchestrator) Status() Status {
	first, second, third := o.cascade.Sizes()
	available := true
	if a, ok := o.segmenter.(interface{ Available() bool }); ok {
		available = a.Available()
	}
	return Status{
		Pushes:             o.cascade.Pushes(),
		CascadeSizes:       [3]int{first, second, third},
		WarmedUp:           o.cascade.Emits() > 0,
		WarmupLength:       o.cascade.WarmupLength(),
		Period:             o.cascade.Period(),
		InferenceInFlight:  o.inFlight.Load(),
		InputVersion:       o.input.Version(),
		BackgroundVersion:  o.background.Version(),
		OutputVersion:      o.output.Version(),
		KernelsLoaded:      o.builder.Ready(),
		SegmenterAvailable: available,
		TargetLabel:        o.builder.Target(),
		FrameSize:          o.frameSize,
	}
}

// Wait blocks until the outstanding inference, if any, has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop refuses every later frame, then waits for the outstanding inference.
// After Stop returns no stage touches the mask kernels or the network again.
func (o *Orchestrator) Stop() {
	o.stopMu.Lock()
	o.stopped = true
	o.stopMu.Unlock()
	o.wg.Wait()
}
