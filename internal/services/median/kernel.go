package median

import (
	"fmt"

	"camouflage/internal/frame"

	"gocv.io/x/gocv"
)

// StageSize is the number of frames each cascade stage buffers by default.
const StageSize = 5

// Kernel computes the per-pixel, per-channel median of exactly Size frames.
type Kernel struct {
	size int
}

// NewKernel returns a median kernel over size frames. size must be odd.
func NewKernel(size int) (*Kernel, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("median size must be odd and positive, got %d", size)
	}
	return &Kernel{size: size}, nil
}

// Size returns how many frames Apply expects.
func (k *Kernel) Size() int {
	return k.size
}

// Apply returns the median frame. Every input must share one shape and there
// must be exactly Size of them.
func (k *Kernel) Apply(frames []*frame.Frame) (*frame.Frame, error) {
	if len(frames) != k.size {
		return nil, fmt.Errorf("median over %d frames, want %d: %w", len(frames), k.size, frame.ErrWrongInputCount)
	}
	for i, f := range frames[1:] {
		if !f.SameShape(frames[0]) {
			return nil, fmt.Errorf("frame %d is %dx%dx%d, want %dx%dx%d: %w", i+1,
				f.Width(), f.Height(), f.Channels(),
				frames[0].Width(), frames[0].Height(), frames[0].Channels(), frame.ErrShapeMismatch)
		}
	}
	if k.size == 1 {
		return frames[0], nil
	}

	mats := make([]gocv.Mat, 0, k.size)
	defer func() {
		for _, m := range mats {
			m.Close()
		}
	}()
	for _, f := range frames {
		m, err := f.ToMat()
		if err != nil {
			return nil, err
		}
		mats = append(mats, m)
	}

	// Odd-even transposition network: after size rounds every pixel channel
	// is sorted across the stack, so the middle layer holds the median.
	for round := 0; round < k.size; round++ {
		for i := round % 2; i+1 < k.size; i += 2 {
			lo := gocv.NewMat()
			hi := gocv.NewMat()
			if err := sortPair(mats[i], mats[i+1], &lo, &hi); err != nil {
				lo.Close()
				hi.Close()
				return nil, err
			}
			mats[i].Close()
			mats[i+1].Close()
			mats[i], mats[i+1] = lo, hi
		}
	}

	return frame.FromMat(mats[k.size/2])
}

// sortPair writes the element-wise minimum of a and b to lo and the maximum to hi.
func sortPair(a, b gocv.Mat, lo, hi *gocv.Mat) error {
	if err := gocv.Min(a, b, lo); err != nil {
		return fmt.Errorf("median min: %w", err)
	}
	if err := gocv.Max(a, b, hi); err != nil {
		return fmt.Errorf("median max: %w", err)
	}
	return nil
}
