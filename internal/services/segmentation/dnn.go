package segmentation

import (
	"fmt"
	"image"
	"os"
	"sync"
	"sync/atomic"

	"camouflage/internal/config"
	"camouflage/internal/frame"
	"camouflage/internal/logger"

	"gocv.io/x/gocv"
)

// DNNSegmenter runs a DeepLab-style network through OpenCV's dnn module.
// If the network cannot be loaded at construction the segmenter stays
// disabled and every Task finishes with frame.ErrUnavailable.
type DNNSegmenter struct {
	net        gocv.Net
	loaded     atomic.Bool
	modelPath  string
	configPath string
	inputSize  int
	mu         sync.Mutex // guards net; Forward is not safe for concurrent calls
	logger     *logger.Logger
}

// NewDNNSegmenter loads the configured network. Load failures are logged, not returned.
func NewDNNSegmenter(config *config.Config, logger *logger.Logger) *DNNSegmenter {
	s := &DNNSegmenter{
		modelPath:  config.ModelPath,
		configPath: config.ConfigPath,
		inputSize:  config.FrameSize,
		logger:     logger,
	}

	if err := s.initializeNet(); err != nil {
		s.logger.Warning("Segmentation disabled, could not initialize network: %v", err)
		return s
	}
	return s
}

// initializeNet reads the model and selects the CPU backend.
func (s *DNNSegmenter) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if s.configPath != "" {
		if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.configPath)
		}
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.loaded.Store(true)
	s.logger.Info("Segmentation network initialized from %s", s.modelPath)
	return nil
}

// Available reports whether the network loaded. It never waits for a running Forward.
func (s *DNNSegmenter) Available() bool {
	return s.loaded.Load()
}

// Segment implements Segmenter.
func (s *DNNSegmenter) Segment(f *frame.Frame) *Task {
	if !s.Available() {
		return Completed(nil, fmt.Errorf("segmentation network: %w", frame.ErrUnavailable))
	}
	t := NewTask()
	go func() {
		labels, err := s.segment(f)
		t.Complete(labels, err)
	}()
	return t
}

func (s *DNNSegmenter) segment(f *frame.Frame) (*frame.LabelTensor, error) {
	if f.Channels() != 3 {
		return nil, fmt.Errorf("segmentation expects a colour frame, got %d channels: %w", f.Channels(), frame.ErrShapeMismatch)
	}
	mat, err := f.ToMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(s.inputSize, s.inputSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded.Load() {
		return nil, fmt.Errorf("segmentation network closed: %w", frame.ErrUnavailable)
	}

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	classes, height, width, err := scoreShape(output.Size())
	if err != nil {
		return nil, err
	}
	scores, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}
	return ArgMax(scores, classes, width, height)
}

// scoreShape interprets NCHW (or CHW) network output dimensions.
func scoreShape(dims []int) (classes, height, width int, err error) {
	switch len(dims) {
	case 4:
		return dims[1], dims[2], dims[3], nil
	case 3:
		return dims[0], dims[1], dims[2], nil
	default:
		return 0, 0, 0, fmt.Errorf("unexpected network output shape %v", dims)
	}
}

// ArgMax picks, per pixel, the class with the highest score from a planar
// classes x height x width score volume. A single plane is taken to already
// hold class ids.
func ArgMax(scores []float32, classes, width, height int) (*frame.LabelTensor, error) {
	plane := width * height
	if classes < 1 || plane < 1 || len(scores) < classes*plane {
		return nil, fmt.Errorf("score volume of %d values cannot hold %dx%dx%d: %w",
			len(scores), classes, height, width, frame.ErrShapeMismatch)
	}

	lt := frame.NewLabelTensor(width, height, 0)
	if classes == 1 {
		for i := 0; i < plane; i++ {
			lt.Labels[i] = int32(scores[i])
		}
		return lt, nil
	}

	best := make([]float32, plane)
	copy(best, scores[:plane])
	for c := 1; c < classes; c++ {
		layer := scores[c*plane : (c+1)*plane]
		for i, v := range layer {
			if v > best[i] {
				best[i] = v
				lt.Labels[i] = int32(c)
			}
		}
	}
	return lt, nil
}

// Close releases the network. Tasks started afterwards report ErrUnavailable.
func (s *DNNSegmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.CompareAndSwap(true, false) {
		return s.net.Close()
	}
	return nil
}
