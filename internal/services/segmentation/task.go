package segmentation

import (
	"sync"

	"camouflage/internal/frame"
)

// Task is the pending result of one Segment call. Done closes exactly once,
// when the result is ready; Result blocks until then.
type Task struct {
	done   chan struct{}
	once   sync.Once
	labels *frame.LabelTensor
	err    error
}

// NewTask returns an unfinished task. Backends finish it with Complete.
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Completed returns a task that is already finished.
func Completed(labels *frame.LabelTensor, err error) *Task {
	t := NewTask()
	t.Complete(labels, err)
	return t
}

// Complete records the outcome and releases waiters. Later calls are ignored.
func (t *Task) Complete(labels *frame.LabelTensor, err error) {
	t.once.Do(func() {
		t.labels = labels
		t.err = err
		close(t.done)
	})
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result waits for the task and returns its outcome.
func (t *Task) Result() (*frame.LabelTensor, error) {
	<-t.done
	return t.labels, t.err
}
