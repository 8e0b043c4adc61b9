package dto

import "camouflage/internal/frame"

// BufferedSnapshot holds a composite and the background it was drawn over until the next flush.
type BufferedSnapshot struct {
	Timestamp  string
	Output     *frame.Frame
	Background *frame.Frame
}
