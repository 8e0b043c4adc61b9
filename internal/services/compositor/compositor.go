// Package compositor renders the masked object as a refracting, lit surface
// over the stabilized background.
//
// The stages are plain functions so they can be tested one by one:
//
//	mask ──HeightField──▶ relief ──Shade(background)──▶ lit
//	lit ──Isolate(mask)──▶ object layer ──Blend(background)──▶ output ──Crop
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"camouflage/internal/frame"

	"gocv.io/x/gocv"
)

// Options control the look of the effect.
type Options struct {
	HeightFieldRadius int     // Falloff distance of the relief, in pixels
	ShadingScale      float64 // Apparent height of the relief
	Size              int     // Edge of the square output
}

// Compositor runs the full chain for one mask/background pair. It holds no
// mutable state and may be shared between goroutines.
type Compositor struct {
	opts Options
}

func New(opts Options) *Compositor {
	return &Compositor{opts: opts}
}

// Compose blends the lit object region onto background. Outside the mask the
// result equals background.
func (c *Compositor) Compose(mask, background *frame.Frame) (*frame.Frame, error) {
	if mask.Channels() != 1 {
		return nil, fmt.Errorf("mask has %d channels, want 1: %w", mask.Channels(), frame.ErrShapeMismatch)
	}
	if !mask.SameExtent(background) {
		return nil, fmt.Errorf("mask %dx%d vs background %dx%d: %w",
			mask.Width(), mask.Height(), background.Width(), background.Height(), frame.ErrShapeMismatch)
	}

	height, err := HeightField(mask, c.opts.HeightFieldRadius)
	if err != nil {
		return nil, fmt.Errorf("height field: %w", err)
	}
	lit, err := Shade(height, background, c.opts.ShadingScale)
	if err != nil {
		return nil, fmt.Errorf("shading: %w", err)
	}
	object, err := Isolate(lit, mask)
	if err != nil {
		return nil, fmt.Errorf("isolation: %w", err)
	}
	out, err := Blend(object, background)
	if err != nil {
		return nil, fmt.Errorf("blend: %w", err)
	}
	return Crop(out, c.opts.Size)
}

// HeightField turns a binary mask into a rounded relief: zero outside the mask,
// rising along a quarter circle to full height radius pixels inside the edge.
func HeightField(mask *frame.Frame, radius int) (*frame.Frame, error) {
	if mask.Channels() != 1 {
		return nil, fmt.Errorf("mask has %d channels, want 1: %w", mask.Channels(), frame.ErrShapeMismatch)
	}
	if radius < 1 {
		return nil, fmt.Errorf("radius must be positive, got %d", radius)
	}

	m, err := mask.ToMat()
	if err != nil {
		return nil, err
	}
	defer m.Close()

	dist := gocv.NewMat()
	defer dist.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	if err := gocv.DistanceTransform(m, &dist, &labels, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp); err != nil {
		return nil, fmt.Errorf("distance transform: %w", err)
	}

	d, err := dist.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("distance map: %w", err)
	}

	r := float64(radius)
	pix := make([]uint8, len(d))
	for i, v := range d {
		t := 1 - math.Min(float64(v), r)/r
		pix[i] = uint8(math.Sqrt(1-t*t)*255 + 0.5)
	}
	return frame.New(mask.Width(), mask.Height(), 1, pix)
}

// Shade lights the relief with shading used as an environment map: each pixel
// samples shading where its surface normal points, so flat areas pick up the
// centre of shading and slopes reach towards its edges. scale multiplies the
// relief height and so the strength of the distortion.
func Shade(height, shading *frame.Frame, scale float64) (*frame.Frame, error) {
	if height.Channels() != 1 {
		return nil, fmt.Errorf("height field has %d channels, want 1: %w", height.Channels(), frame.ErrShapeMismatch)
	}

	hm, err := height.ToMat()
	if err != nil {
		return nil, err
	}
	defer hm.Close()

	hf := gocv.NewMat()
	defer hf.Close()
	if err := hm.ConvertTo(&hf, gocv.MatTypeCV32F); err != nil {
		return nil, fmt.Errorf("height to float: %w", err)
	}

	// A 3x3 Sobel sums to 8x the central difference.
	k := scale / (255 * 8)
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	if err := gocv.Sobel(hf, &gx, gocv.MatTypeCV32F, 1, 0, 3, k, 0, gocv.BorderReplicate); err != nil {
		return nil, fmt.Errorf("horizontal gradient: %w", err)
	}
	if err := gocv.Sobel(hf, &gy, gocv.MatTypeCV32F, 0, 1, 3, k, 0, gocv.BorderReplicate); err != nil {
		return nil, fmt.Errorf("vertical gradient: %w", err)
	}

	dx, err := gx.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	dy, err := gy.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	mapX := gocv.NewMatWithSize(height.Height(), height.Width(), gocv.MatTypeCV32F)
	defer mapX.Close()
	mapY := gocv.NewMatWithSize(height.Height(), height.Width(), gocv.MatTypeCV32F)
	defer mapY.Close()
	mx, err := mapX.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	my, err := mapY.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	cx := float64(shading.Width()-1) / 2
	cy := float64(shading.Height()-1) / 2
	for i := range mx {
		nx, ny := -float64(dx[i]), -float64(dy[i])
		n := math.Sqrt(nx*nx + ny*ny + 1)
		mx[i] = float32(cx + cx*nx/n)
		my[i] = float32(cy + cy*ny/n)
	}

	sm, err := shading.ToMat()
	if err != nil {
		return nil, err
	}
	defer sm.Close()

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.Remap(sm, &out, &mapX, &mapY, gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{}); err != nil {
		return nil, fmt.Errorf("environment lookup: %w", err)
	}

	return frame.FromMat(out)
}

// Isolate multiplies lit by the mask taken as a 0/1 weight, leaving the
// object layer: lit inside the mask, zero elsewhere.
func Isolate(lit, mask *frame.Frame) (*frame.Frame, error) {
	if mask.Channels() != 1 || !lit.SameExtent(mask) {
		return nil, fmt.Errorf("cannot isolate %dx%dx%d with %dx%dx%d mask: %w",
			lit.Width(), lit.Height(), lit.Channels(),
			mask.Width(), mask.Height(), mask.Channels(), frame.ErrShapeMismatch)
	}

	lm, err := lit.ToMat()
	if err != nil {
		return nil, err
	}
	defer lm.Close()
	mm, err := mask.ToMat()
	if err != nil {
		return nil, err
	}
	defer mm.Close()

	weight := gocv.NewMat()
	defer weight.Close()
	gocv.Threshold(mm, &weight, 127, 1, gocv.ThresholdBinary)

	weights := weight
	if lit.Channels() == 3 {
		expanded := gocv.NewMat()
		defer expanded.Close()
		if err := gocv.CvtColor(weight, &expanded, gocv.ColorGrayToBGR); err != nil {
			return nil, fmt.Errorf("failed to expand mask: %w", err)
		}
		weights = expanded
	}

	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.Multiply(lm, weights, &out); err != nil {
		return nil, fmt.Errorf("apply mask: %w", err)
	}

	return frame.FromMat(out)
}

// Blend screens foreground over background: out = f + b - f*b/255 per channel.
// A zero foreground leaves background exactly as it was, while lit object
// pixels brighten and tint the background's own colours instead of replacing them.
func Blend(foreground, background *frame.Frame) (*frame.Frame, error) {
	if !foreground.SameShape(background) {
		return nil, fmt.Errorf("foreground %dx%dx%d vs background %dx%dx%d: %w",
			foreground.Width(), foreground.Height(), foreground.Channels(),
			background.Width(), background.Height(), background.Channels(), frame.ErrShapeMismatch)
	}

	fp := foreground.Pix()
	bp := background.Pix()
	for i := range fp {
		f, b := int(fp[i]), int(bp[i])
		fp[i] = uint8((255*(f+b) - f*b + 127) / 255)
	}
	return frame.New(foreground.Width(), foreground.Height(), foreground.Channels(), fp)
}

// Crop trims f to the size x size square anchored at the origin.
func Crop(f *frame.Frame, size int) (*frame.Frame, error) {
	if f.Width() == size && f.Height() == size {
		return f, nil
	}
	if f.Width() < size || f.Height() < size {
		return nil, fmt.Errorf("frame %dx%d smaller than %dx%d: %w", f.Width(), f.Height(), size, size, frame.ErrShapeMismatch)
	}

	m, err := f.ToMat()
	if err != nil {
		return nil, err
	}
	defer m.Close()
	region := m.Region(image.Rect(0, 0, size, size))
	defer region.Close()
	cropped := region.Clone()
	defer cropped.Close()

	return frame.FromMat(cropped)
}
