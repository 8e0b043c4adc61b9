package segmentation

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/frame"
	"camouflage/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_CompletesOnce(t *testing.T) {
	task := NewTask()
	select {
	case <-task.Done():
		t.Fatal("task finished before Complete")
	default:
	}

	first := frame.NewLabelTensor(2, 2, 1)
	task.Complete(first, nil)
	task.Complete(nil, errors.New("ignored"))

	<-task.Done()
	labels, err := task.Result()
	require.NoError(t, err)
	assert.Same(t, first, labels)
}

func TestFunc_RunsAsynchronously(t *testing.T) {
	release := make(chan struct{})
	seg := Func(func(f *frame.Frame) (*frame.LabelTensor, error) {
		<-release
		return frame.NewLabelTensor(f.Width(), f.Height(), 15), nil
	})

	task := seg.Segment(frame.Filled(3, 3, 3, 0))
	select {
	case <-task.Done():
		t.Fatal("task finished before the labeller returned")
	case <-time.After(10 * time.Millisecond):
	}

	close(release)
	labels, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, int32(15), labels.At(2, 2))
}

func TestArgMax(t *testing.T) {
	// 3 classes over a 2x1 image, planar layout.
	scores := []float32{
		0.1, 0.7, // class 0
		0.5, 0.2, // class 1
		0.4, 0.9, // class 2
	}
	lt, err := ArgMax(scores, 3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), lt.At(0, 0))
	assert.Equal(t, int32(2), lt.At(1, 0))
}

func TestArgMax_SinglePlaneHoldsLabels(t *testing.T) {
	lt, err := ArgMax([]float32{15, 0, 3, 15}, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{15, 0, 3, 15}, lt.Labels)
}

func TestArgMax_ShortVolume(t *testing.T) {
	_, err := ArgMax(make([]float32, 5), 2, 2, 2)
	assert.True(t, errors.Is(err, frame.ErrShapeMismatch))
}

func TestScoreShape(t *testing.T) {
	c, h, w, err := scoreShape([]int{1, 21, 513, 513})
	require.NoError(t, err)
	assert.Equal(t, []int{21, 513, 513}, []int{c, h, w})

	_, _, _, err = scoreShape([]int{21})
	assert.Error(t, err)
}

func TestDNNSegmenter_MissingModelIsDisabled(t *testing.T) {
	cfg := &config.Config{
		ModelPath: filepath.Join(t.TempDir(), "missing.pb"),
		FrameSize: 513,
	}
	seg := NewDNNSegmenter(cfg, logger.NewNop())
	defer seg.Close()

	assert.False(t, seg.Available())
	for i := 0; i < 2; i++ {
		_, err := seg.Segment(frame.Filled(513, 513, 3, 0)).Result()
		assert.True(t, errors.Is(err, frame.ErrUnavailable))
	}
}

func TestDNNSegmenter_AvailableDuringForward(t *testing.T) {
	s := &DNNSegmenter{logger: logger.NewNop()}
	s.loaded.Store(true)
	defer s.loaded.Store(false)

	// Holding the net lock stands in for a Forward that never returns.
	s.mu.Lock()
	defer s.mu.Unlock()

	answered := make(chan bool, 1)
	go func() { answered <- s.Available() }()

	select {
	case available := <-answered:
		assert.True(t, available)
	case <-time.After(time.Second):
		t.Fatal("Available blocked behind the network lock")
	}
}
