// Package source turns camera input into working frames: oriented, square,
// and exactly FRAME_SIZE on each edge.
package source

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"time"

	"camouflage/internal/config"
	"camouflage/internal/frame"
	"camouflage/internal/logger"

	"gocv.io/x/gocv"
)

// MaxReadFailures is how many consecutive empty reads end a capture run.
const MaxReadFailures = 30

// Prepare rotates img a quarter turn clockwise when rotate is set, upscales it
// if either side is shorter than size, and returns the centred size x size crop.
func Prepare(img gocv.Mat, size int, rotate bool) (*frame.Frame, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image: %w", frame.ErrUnavailable)
	}
	if size < 1 {
		return nil, fmt.Errorf("invalid frame size %d", size)
	}

	work := img.Clone()
	defer func() { work.Close() }()

	if rotate {
		rotated := gocv.NewMat()
		if err := gocv.Rotate(work, &rotated, gocv.Rotate90Clockwise); err != nil {
			rotated.Close()
			return nil, fmt.Errorf("rotate: %w", err)
		}
		work.Close()
		work = rotated
	}

	if short := min(work.Cols(), work.Rows()); short < size {
		scale := float64(size) / float64(short)
		w := max(size, int(float64(work.Cols())*scale+0.5))
		h := max(size, int(float64(work.Rows())*scale+0.5))
		resized := gocv.NewMat()
		if err := gocv.Resize(work, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear); err != nil {
			resized.Close()
			return nil, fmt.Errorf("upscale to %dx%d: %w", w, h, err)
		}
		work.Close()
		work = resized
	}

	x := (work.Cols() - size) / 2
	y := (work.Rows() - size) / 2
	region := work.Region(image.Rect(x, y, x+size, y+size))
	defer region.Close()
	crop := region.Clone()
	defer crop.Close()

	return frame.FromMat(crop)
}

// Decode reads an encoded image (JPEG, PNG) and prepares it.
func Decode(data []byte, size int, rotate bool) (*frame.Frame, error) {
	decoded, err := frame.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	img, err := decoded.ToMat()
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return Prepare(img, size, rotate)
}

// Capture reads frames from a local camera or video file.
type Capture struct {
	device string
	fps    int
	size   int
	rotate bool
	logger *logger.Logger
}

func NewCapture(config *config.Config, logger *logger.Logger) *Capture {
	return &Capture{
		device: config.SourceDevice,
		fps:    config.SourceFPS,
		size:   config.FrameSize,
		rotate: config.SourceRotate,
		logger: logger,
	}
}

// Enabled reports whether a device is configured.
func (c *Capture) Enabled() bool {
	return c.device != ""
}

// deviceID maps numeric devices to camera indices; anything else is a file or URL.
func (c *Capture) deviceID() interface{} {
	if id, err := strconv.Atoi(c.device); err == nil {
		return id
	}
	return c.device
}

// Run delivers prepared frames to sink at the configured rate until ctx is
// cancelled or the source stops producing frames. Sink errors are logged and
// do not stop the capture.
func (c *Capture) Run(ctx context.Context, sink func(*frame.Frame) error) error {
	vc, err := gocv.OpenVideoCapture(c.deviceID())
	if err != nil {
		return fmt.Errorf("failed to open video source %q: %w", c.device, err)
	}
	defer vc.Close()

	fps := c.fps
	if fps < 1 {
		fps = 15
	}
	vc.Set(gocv.VideoCaptureFPS, float64(fps))
	c.logger.Info("Capturing from %s at %d fps", c.device, fps)

	img := gocv.NewMat()
	defer img.Close()

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if ok := vc.Read(&img); !ok || img.Empty() {
			failures++
			if failures >= MaxReadFailures {
				return fmt.Errorf("video source %q stopped producing frames", c.device)
			}
			continue
		}
		failures = 0

		f, err := Prepare(img, c.size, c.rotate)
		if err != nil {
			c.logger.Error("Failed to prepare captured frame: %v", err)
			continue
		}
		if err := sink(f); err != nil {
			c.logger.Error("Frame sink rejected captured frame: %v", err)
		}
	}
}
