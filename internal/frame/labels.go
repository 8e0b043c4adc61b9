package frame

import "fmt"

// LabelTensor is a per-pixel grid of integer class ids, row-major.
type LabelTensor struct {
	Width  int
	Height int
	Labels []int32
}

// NewLabelTensor allocates a tensor filled with label.
func NewLabelTensor(width, height int, label int32) *LabelTensor {
	labels := make([]int32, width*height)
	if label != 0 {
		for i := range labels {
			labels[i] = label
		}
	}
	return &LabelTensor{Width: width, Height: height, Labels: labels}
}

// At returns the class id at (x, y).
func (t *LabelTensor) At(x, y int) int32 {
	return t.Labels[y*t.Width+x]
}

// Set assigns the class id at (x, y).
func (t *LabelTensor) Set(x, y int, label int32) {
	t.Labels[y*t.Width+x] = label
}

// Validate checks the tensor against the expected working extent.
func (t *LabelTensor) Validate(width, height int) error {
	if t == nil {
		return fmt.Errorf("nil label tensor: %w", ErrShapeMismatch)
	}
	if t.Width != width || t.Height != height || len(t.Labels) != width*height {
		return fmt.Errorf("label tensor %dx%d (%d labels), want %dx%d: %w",
			t.Width, t.Height, len(t.Labels), width, height, ErrShapeMismatch)
	}
	return nil
}
