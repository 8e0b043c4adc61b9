// Package kernels owns the native filter resources shared by the mask and
// compositing stages. A Set is built once at startup and is read-only afterwards,
// so stages may use it concurrently without locking.
package kernels

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Set holds disk-shaped structuring elements for the morphology stages.
type Set struct {
	closingRadius int
	openingRadius int
	closing       gocv.Mat
	opening       gocv.Mat

	closeOnce sync.Once
}

// Load builds the structuring elements. A returned error means the dependent
// capabilities stay disabled for the life of the process.
func Load(closingRadius, openingRadius int) (*Set, error) {
	closing, err := Disk(closingRadius)
	if err != nil {
		return nil, fmt.Errorf("closing kernel: %w", err)
	}
	opening, err := Disk(openingRadius)
	if err != nil {
		closing.Close()
		return nil, fmt.Errorf("opening kernel: %w", err)
	}

	return &Set{
		closingRadius: closingRadius,
		openingRadius: openingRadius,
		closing:       closing,
		opening:       opening,
	}, nil
}

// Disk returns an elliptical structuring element of size 2r+1. The caller owns it.
func Disk(radius int) (gocv.Mat, error) {
	if radius < 1 {
		return gocv.NewMat(), fmt.Errorf("radius must be at least 1, got %d", radius)
	}
	size := 2*radius + 1
	k := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(size, size))
	if k.Empty() {
		k.Close()
		return gocv.NewMat(), fmt.Errorf("failed to build %dx%d structuring element", size, size)
	}
	return k, nil
}

func (s *Set) Closing() gocv.Mat  { return s.closing }
func (s *Set) Opening() gocv.Mat  { return s.opening }
func (s *Set) ClosingRadius() int { return s.closingRadius }
func (s *Set) OpeningRadius() int { return s.openingRadius }

// Close releases the native matrices. Safe to call more than once.
func (s *Set) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Close()
		s.opening.Close()
	})
	return nil
}
