// Package frame holds the immutable pixel buffers that flow through the pipeline
// and the conversions between them and gocv matrices.
package frame

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrShapeMismatch reports inputs whose spatial size or channel count disagree.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrWrongInputCount reports a median computed over the wrong number of frames.
	ErrWrongInputCount = errors.New("wrong input count")
	// ErrUnavailable reports a stage that cannot produce output for this frame.
	ErrUnavailable = errors.New("resource unavailable")
)

// Intensity levels of a Mask.
const (
	Background uint8 = 0
	Object     uint8 = 255
)

// Frame is an 8-bit image, either 3-channel BGR or single-channel intensity.
// Its pixels are never modified after construction.
type Frame struct {
	width    int
	height   int
	channels int
	pix      []uint8
}

// New copies pix into a new Frame. len(pix) must equal width*height*channels.
func New(width, height, channels int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 || (channels != 1 && channels != 3) {
		return nil, fmt.Errorf("invalid frame geometry %dx%dx%d: %w", width, height, channels, ErrShapeMismatch)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("pixel buffer holds %d bytes, want %d: %w", len(pix), width*height*channels, ErrShapeMismatch)
	}
	buf := make([]uint8, len(pix))
	copy(buf, pix)
	return &Frame{width: width, height: height, channels: channels, pix: buf}, nil
}

// Filled returns a frame where every channel of every pixel equals value.
func Filled(width, height, channels int, value uint8) *Frame {
	pix := make([]uint8, width*height*channels)
	if value != 0 {
		for i := range pix {
			pix[i] = value
		}
	}
	return &Frame{width: width, height: height, channels: channels, pix: pix}
}

// wrap adopts pix without copying; callers must not retain it.
func wrap(width, height, channels int, pix []uint8) *Frame {
	return &Frame{width: width, height: height, channels: channels, pix: pix}
}

func (f *Frame) Width() int    { return f.width }
func (f *Frame) Height() int   { return f.height }
func (f *Frame) Channels() int { return f.channels }

// At returns channel c of the pixel at (x, y).
func (f *Frame) At(x, y, c int) uint8 {
	return f.pix[(y*f.width+x)*f.channels+c]
}

// Pix returns a copy of the raw interleaved pixel data.
func (f *Frame) Pix() []uint8 {
	out := make([]uint8, len(f.pix))
	copy(out, f.pix)
	return out
}

// SameShape reports whether two frames share width, height and channel count.
func (f *Frame) SameShape(o *Frame) bool {
	return f.width == o.width && f.height == o.height && f.channels == o.channels
}

// SameExtent reports whether two frames share width and height.
func (f *Frame) SameExtent(o *Frame) bool {
	return f.width == o.width && f.height == o.height
}

func (f *Frame) matType() gocv.MatType {
	if f.channels == 1 {
		return gocv.MatTypeCV8UC1
	}
	return gocv.MatTypeCV8UC3
}

// ToMat copies the frame into a new gocv.Mat. The caller owns and must Close it.
func (f *Frame) ToMat() (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(f.height, f.width, f.matType(), f.pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create mat from frame: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// FromMat copies an 8-bit 1- or 3-channel Mat into a new Frame.
func FromMat(m gocv.Mat) (*Frame, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty mat: %w", ErrUnavailable)
	}
	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
	default:
		return nil, fmt.Errorf("unsupported mat type %v: %w", m.Type(), ErrShapeMismatch)
	}
	return wrap(m.Cols(), m.Rows(), m.Channels(), m.ToBytes()), nil
}
