package median

import (
	"fmt"
	"sync"

	"camouflage/internal/frame"
)

// Cascade approximates the median of a long frame window with three batched
// stages. Stages one and two emit a median and empty themselves every Size
// inputs; stage three is a sliding window of the last Size stage-two medians.
// With Size 5 the first background appears after 125 pushes and then every
// 25 pushes, while at most 15 frames are held.
type Cascade struct {
	kernel *Kernel

	mu     sync.Mutex
	first  []*frame.Frame
	second []*frame.Frame
	third  []*frame.Frame
	shape  *frame.Frame // first frame seen; later frames must match it
	pushes uint64
	emits  uint64
}

// NewCascade returns an empty cascade whose stages hold size frames.
func NewCascade(size int) (*Cascade, error) {
	kernel, err := NewKernel(size)
	if err != nil {
		return nil, err
	}
	return &Cascade{
		kernel: kernel,
		first:  make([]*frame.Frame, 0, size),
		second: make([]*frame.Frame, 0, size),
		third:  make([]*frame.Frame, 0, size),
	}, nil
}

// Push feeds one frame. It returns nil while any stage is still filling and a
// new background frame whenever the last stage fires. A frame whose shape
// differs from the first one pushed is rejected with frame.ErrShapeMismatch
// and leaves every stage untouched.
func (c *Cascade) Push(f *frame.Frame) (*frame.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shape == nil {
		c.shape = f
	} else if !f.SameShape(c.shape) {
		return nil, fmt.Errorf("pushed %dx%dx%d frame into a %dx%dx%d cascade: %w",
			f.Width(), f.Height(), f.Channels(),
			c.shape.Width(), c.shape.Height(), c.shape.Channels(), frame.ErrShapeMismatch)
	}

	size := c.kernel.Size()
	c.pushes++

	c.first = append(c.first, f)
	if len(c.first) != size {
		return nil, nil
	}
	m1, err := c.kernel.Apply(c.first)
	c.first = c.first[:0]
	if err != nil {
		return nil, err
	}

	c.second = append(c.second, m1)
	if len(c.second) != size {
		return nil, nil
	}
	m2, err := c.kernel.Apply(c.second)
	c.second = c.second[:0]
	if err != nil {
		return nil, err
	}

	c.third = append(c.third, m2)
	if len(c.third) != size {
		return nil, nil
	}
	m3, err := c.kernel.Apply(c.third)
	if err != nil {
		return nil, err
	}
	if len(c.third) >= size {
		copy(c.third, c.third[1:])
		c.third[len(c.third)-1] = nil
		c.third = c.third[:len(c.third)-1]
	}
	c.emits++
	return m3, nil
}

// Sizes reports how many frames each stage currently holds.
func (c *Cascade) Sizes() (first, second, third int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.first), len(c.second), len(c.third)
}

// Pushes returns the number of frames fed so far.
func (c *Cascade) Pushes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pushes
}

// Emits returns how many background frames have been produced.
func (c *Cascade) Emits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emits
}

// WarmupLength is the number of pushes before the first output.
func (c *Cascade) WarmupLength() int {
	s := c.kernel.Size()
	return s * s * s
}

// Period is the number of pushes between outputs once warmed up.
func (c *Cascade) Period() int {
	s := c.kernel.Size()
	return s * s
}
