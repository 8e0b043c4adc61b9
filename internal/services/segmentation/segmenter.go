// Package segmentation wraps the semantic segmentation model behind an
// asynchronous, future-returning interface.
package segmentation

import (
	"camouflage/internal/frame"
)

// Segmenter labels every pixel of a frame with a class id. Segment must not
// block; the returned Task finishes once the labels for exactly that frame are ready.
type Segmenter interface {
	Segment(f *frame.Frame) *Task
}

// Func adapts a blocking labelling function into a Segmenter that runs each
// call on its own goroutine.
type Func func(f *frame.Frame) (*frame.LabelTensor, error)

// Segment implements Segmenter.
func (fn Func) Segment(f *frame.Frame) *Task {
	t := NewTask()
	go func() {
		labels, err := fn(f)
		t.Complete(labels, err)
	}()
	return t
}
