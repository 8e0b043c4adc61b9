package mask

import (
	"fmt"

	"camouflage/internal/frame"
	"camouflage/internal/kernels"

	"gocv.io/x/gocv"
)

// Builder turns a segmentation label tensor into a cleaned binary mask:
// threshold on the target class, close small holes, then open away specks.
type Builder struct {
	kernels *kernels.Set
	target  int32
	width   int
	height  int
}

// NewBuilder returns a Builder for tensors of width x height. A nil kernel set
// yields a Builder whose Build always reports frame.ErrUnavailable.
func NewBuilder(set *kernels.Set, target int, width, height int) *Builder {
	return &Builder{
		kernels: set,
		target:  int32(target),
		width:   width,
		height:  height,
	}
}

// Target returns the class id treated as the object.
func (b *Builder) Target() int {
	return int(b.target)
}

// Ready reports whether the morphology kernels are loaded.
func (b *Builder) Ready() bool {
	return b.kernels != nil
}

// Build runs threshold, closing and opening on the tensor.
func (b *Builder) Build(labels *frame.LabelTensor) (*frame.Frame, error) {
	if err := labels.Validate(b.width, b.height); err != nil {
		return nil, err
	}
	if b.kernels == nil {
		return nil, fmt.Errorf("morphology kernels not loaded: %w", frame.ErrUnavailable)
	}

	raw := Threshold(labels, b.target)

	m, err := raw.ToMat()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	closing := b.kernels.Closing()
	opening := b.kernels.Opening()

	// Closing fills gaps inside the object.
	if err := closeMat(&m, closing); err != nil {
		return nil, err
	}
	// Opening removes isolated blobs around it.
	if err := openMat(&m, opening); err != nil {
		return nil, err
	}

	return frame.FromMat(m)
}

// Threshold marks pixels labelled target as frame.Object and everything else as
// frame.Background.
func Threshold(labels *frame.LabelTensor, target int32) *frame.Frame {
	pix := make([]uint8, len(labels.Labels))
	for i, l := range labels.Labels {
		if l == target {
			pix[i] = frame.Object
		}
	}
	f, _ := frame.New(labels.Width, labels.Height, 1, pix)
	return f
}

// Closing applies dilate then erode with kernel to a single-channel mask.
func Closing(mask *frame.Frame, kernel gocv.Mat) (*frame.Frame, error) {
	return morph(mask, func(m *gocv.Mat) error { return closeMat(m, kernel) })
}

// Opening applies erode then dilate with kernel to a single-channel mask.
func Opening(mask *frame.Frame, kernel gocv.Mat) (*frame.Frame, error) {
	return morph(mask, func(m *gocv.Mat) error { return openMat(m, kernel) })
}

// Dilate takes the neighbourhood maximum under kernel.
func Dilate(mask *frame.Frame, kernel gocv.Mat) (*frame.Frame, error) {
	return morph(mask, func(m *gocv.Mat) error { return dilateMat(m, kernel) })
}

// Erode takes the neighbourhood minimum under kernel.
func Erode(mask *frame.Frame, kernel gocv.Mat) (*frame.Frame, error) {
	return morph(mask, func(m *gocv.Mat) error { return erodeMat(m, kernel) })
}

func morph(mask *frame.Frame, op func(m *gocv.Mat) error) (*frame.Frame, error) {
	if mask.Channels() != 1 {
		return nil, fmt.Errorf("mask has %d channels, want 1: %w", mask.Channels(), frame.ErrShapeMismatch)
	}
	m, err := mask.ToMat()
	if err != nil {
		return nil, err
	}
	defer m.Close()
	if err := op(&m); err != nil {
		return nil, err
	}
	return frame.FromMat(m)
}

func closeMat(m *gocv.Mat, kernel gocv.Mat) error {
	if err := dilateMat(m, kernel); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	if err := erodeMat(m, kernel); err != nil {
		return fmt.Errorf("closing: %w", err)
	}
	return nil
}

func openMat(m *gocv.Mat, kernel gocv.Mat) error {
	if err := erodeMat(m, kernel); err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	if err := dilateMat(m, kernel); err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	return nil
}

// OpenCV's default border for dilate/erode is neutral, so edges neither grow
// nor shrink the mask.
func dilateMat(m *gocv.Mat, kernel gocv.Mat) error {
	if err := gocv.Dilate(*m, m, kernel); err != nil {
		return fmt.Errorf("dilate: %w", err)
	}
	return nil
}

func erodeMat(m *gocv.Mat, kernel gocv.Mat) error {
	if err := gocv.Erode(*m, m, kernel); err != nil {
		return fmt.Errorf("erode: %w", err)
	}
	return nil
}
