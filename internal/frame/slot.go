package frame

import "sync/atomic"

// Slot is a latest-value cell: writers overwrite, readers see either the old
// or the new frame, never a partially written one.
type Slot struct {
	current atomic.Pointer[Frame]
	version atomic.Uint64
}

// Store replaces the held frame and bumps the version.
func (s *Slot) Store(f *Frame) {
	s.current.Store(f)
	s.version.Add(1)
}

// Load returns the most recently stored frame, or nil.
func (s *Slot) Load() *Frame {
	return s.current.Load()
}

// Version counts stores, so readers can tell whether anything changed.
func (s *Slot) Version() uint64 {
	return s.version.Load()
}

// Snapshot returns the frame and a version; the frame is never older than the version.
func (s *Slot) Snapshot() (*Frame, uint64) {
	v := s.version.Load()
	return s.current.Load(), v
}
