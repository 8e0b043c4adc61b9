package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"camouflage/internal/frame"
	"camouflage/internal/kernels"
	"camouflage/internal/logger"
	"camouflage/internal/metrics"
	"camouflage/internal/services/compositor"
	"camouflage/internal/services/mask"
	"camouflage/internal/services/median"
	"camouflage/internal/services/segmentation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSize   = 32
	testTarget = 15
)

func newTestOrchestrator(t *testing.T, seg segmentation.Segmenter) (*Orchestrator, *metrics.Metrics) {
	t.Helper()
	cascade, err := median.NewCascade(median.StageSize)
	require.NoError(t, err)
	set, err := kernels.Load(1, 1)
	require.NoError(t, err)
	t.Cleanup(func() { set.Close() })

	m := metrics.New()
	o := NewOrchestrator(
		cascade,
		mask.NewBuilder(set, testTarget, testSize, testSize),
		compositor.New(compositor.Options{HeightFieldRadius: 6, ShadingScale: 200, Size: testSize}),
		seg,
		testSize,
		m,
		logger.NewNop(),
	)
	return o, m
}

// squareLabels marks a centred square as the target class.
func squareLabels(f *frame.Frame) (*frame.LabelTensor, error) {
	lt := frame.NewLabelTensor(f.Width(), f.Height(), 0)
	for y := 8; y < 24; y++ {
		for x := 8; x < 24; x++ {
			lt.Set(x, y, testTarget)
		}
	}
	return lt, nil
}

func testFrame(v uint8) *frame.Frame {
	return frame.Filled(testSize, testSize, 3, v)
}

func TestOrchestrator_SingleFlight(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	seg := segmentation.Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		calls.Add(1)
		<-release
		return squareLabels(f)
	})
	o, m := newTestOrchestrator(t, seg)

	for i := 0; i < 3; i++ {
		require.NoError(t, o.HandleFrame(testFrame(uint8(i))))
	}

	assert.Equal(t, int32(1), calls.Load(), "one inference for three frames")
	assert.Equal(t, uint64(3), o.Status().Pushes, "every frame feeds the cascade")
	assert.True(t, o.Status().InferenceInFlight)
	assert.Equal(t, uint64(2), m.InferencesDropped.Load())

	close(release)
	o.Wait()
	assert.False(t, o.Status().InferenceInFlight)

	require.NoError(t, o.HandleFrame(testFrame(3)))
	o.Wait()
	assert.Equal(t, int32(2), calls.Load(), "gate reopens after completion")
}

func TestOrchestrator_OutputAfterWarmup(t *testing.T) {
	o, m := newTestOrchestrator(t, segmentation.Func(squareLabels))

	warmup := median.StageSize * median.StageSize * median.StageSize
	for i := 0; i < warmup-1; i++ {
		require.NoError(t, o.HandleFrame(testFrame(uint8(i%200))))
		o.Wait()
	}
	assert.Nil(t, o.Background())
	assert.Nil(t, o.Output(), "no composite without a background")
	assert.Equal(t, uint64(0), m.CompositesProduced.Load())

	require.NoError(t, o.HandleFrame(testFrame(40)))
	o.Wait()

	bg := o.Background()
	require.NotNil(t, bg)
	out := o.Output()
	require.NotNil(t, out)
	assert.True(t, out.SameShape(bg))
	assert.Equal(t, bg.At(0, 0, 0), out.At(0, 0, 0), "outside the mask the output is the background")
	assert.Equal(t, uint64(1), o.OutputSlot().Version())
	assert.True(t, o.Status().WarmedUp)
}

func TestOrchestrator_FailureKeepsPreviousOutput(t *testing.T) {
	var fail atomic.Bool
	seg := segmentation.Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		if fail.Load() {
			return nil, errors.New("model crashed")
		}
		return squareLabels(f)
	})
	o, m := newTestOrchestrator(t, seg)

	warmup := median.StageSize * median.StageSize * median.StageSize
	for i := 0; i < warmup; i++ {
		require.NoError(t, o.HandleFrame(testFrame(60)))
		o.Wait()
	}
	first := o.Output()
	require.NotNil(t, first)
	version := o.OutputSlot().Version()

	fail.Store(true)
	require.NoError(t, o.HandleFrame(testFrame(60)))
	o.Wait()

	assert.Same(t, first, o.Output())
	assert.Equal(t, version, o.OutputSlot().Version())
	assert.Equal(t, uint64(1), m.InferenceFailures.Load())
	assert.False(t, o.Status().InferenceInFlight)
}

func TestOrchestrator_WrongShapedLabels(t *testing.T) {
	seg := segmentation.Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		return frame.NewLabelTensor(testSize/2, testSize, testTarget), nil
	})
	o, m := newTestOrchestrator(t, seg)

	warmup := median.StageSize * median.StageSize * median.StageSize
	for i := 0; i < warmup; i++ {
		require.NoError(t, o.HandleFrame(testFrame(10)))
		o.Wait()
	}
	// The first warmup-1 cycles have no background; the last one has mismatched labels.
	assert.Nil(t, o.Output())
	assert.Equal(t, uint64(warmup), m.CompositeFailures.Load())
	assert.Equal(t, uint64(0), m.InferenceFailures.Load())
}

func TestOrchestrator_RejectsWrongFrameSize(t *testing.T) {
	o, m := newTestOrchestrator(t, segmentation.Func(squareLabels))

	err := o.HandleFrame(frame.Filled(testSize+1, testSize, 3, 0))
	assert.True(t, errors.Is(err, frame.ErrShapeMismatch))
	err = o.HandleFrame(frame.Filled(testSize, testSize, 1, 0))
	assert.True(t, errors.Is(err, frame.ErrShapeMismatch))

	assert.Equal(t, uint64(0), o.Status().Pushes)
	assert.Equal(t, uint64(2), m.FramesRejected.Load())
	assert.Equal(t, uint64(0), m.InferencesStarted.Load())
}

type recordingSink struct {
	mu    sync.Mutex
	count int
}

func (r *recordingSink) AddSnapshot(output, background *frame.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func TestOrchestrator_SnapshotSampling(t *testing.T) {
	o, _ := newTestOrchestrator(t, segmentation.Func(squareLabels))
	sink := &recordingSink{}
	o.SetSnapshotSink(sink, 2)

	warmup := median.StageSize * median.StageSize * median.StageSize
	for i := 0; i < warmup+3; i++ {
		require.NoError(t, o.HandleFrame(testFrame(90)))
		o.Wait()
	}

	// Composites 1..4 are produced by the last four frames; every second is kept.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.count)
}

func TestOrchestrator_StatusReportsComponents(t *testing.T) {
	o, _ := newTestOrchestrator(t, segmentation.Func(squareLabels))
	for i := 0; i < 7; i++ {
		require.NoError(t, o.HandleFrame(testFrame(1)))
		o.Wait()
	}

	s := o.Status()
	assert.Equal(t, [3]int{2, 1, 0}, s.CascadeSizes)
	assert.False(t, s.WarmedUp)
	assert.Equal(t, 125, s.WarmupLength)
	assert.Equal(t, 25, s.Period)
	assert.Equal(t, uint64(7), s.InputVersion)
	assert.True(t, s.KernelsLoaded)
	assert.True(t, s.SegmenterAvailable)
	assert.Equal(t, testTarget, s.TargetLabel)
	assert.Equal(t, testSize, s.FrameSize)
}

func TestOrchestrator_CompositeUsesBackgroundAtCompletion(t *testing.T) {
	warmup := median.StageSize * median.StageSize * median.StageSize
	var calls atomic.Int32
	release := make(chan struct{})
	seg := segmentation.Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		if calls.Add(1) == int32(warmup-1) {
			<-release
		}
		return squareLabels(f)
	})
	o, m := newTestOrchestrator(t, seg)

	for i := 0; i < warmup-2; i++ {
		require.NoError(t, o.HandleFrame(testFrame(90)))
		o.Wait()
	}

	// This inference starts before any background exists and is still
	// running when the next frame completes the warm-up.
	require.NoError(t, o.HandleFrame(testFrame(90)))
	require.NoError(t, o.HandleFrame(testFrame(90)))
	require.NotNil(t, o.Background(), "warm-up finished while the inference was in flight")
	assert.Nil(t, o.Output())
	assert.Equal(t, uint64(1), m.InferencesDropped.Load())

	close(release)
	o.Wait()

	out := o.Output()
	require.NotNil(t, out, "the composite picks up the background produced meanwhile")
	assert.Equal(t, o.Background().At(0, 0, 0), out.At(0, 0, 0))
	assert.Equal(t, uint8(90), out.At(0, 0, 0))
	assert.Equal(t, uint64(1), m.CompositesProduced.Load())
	assert.Equal(t, uint64(warmup-2), m.CompositeFailures.Load())
}

func TestOrchestrator_StopRefusesLaterFrames(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	seg := segmentation.Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		calls.Add(1)
		<-release
		return squareLabels(f)
	})
	o, _ := newTestOrchestrator(t, seg)
	require.NoError(t, o.HandleFrame(testFrame(5)))

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		close(stopped)
	}()

	assert.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond, "Stop waits for the running inference")

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the inference finished")
	}

	err := o.HandleFrame(testFrame(6))
	assert.ErrorIs(t, err, frame.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "no inference starts after Stop")
	assert.Equal(t, uint64(1), o.Status().Pushes)
}
