package storage

import (
	"image"
	"image/color"

	"camouflage/internal/frame"

	"golang.org/x/image/draw"
)

// toRGBA converts a BGR frame into an RGBA image.
func toRGBA(f *frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width(), f.Height()))
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			if f.Channels() == 1 {
				v := f.At(x, y, 0)
				img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{R: f.At(x, y, 2), G: f.At(x, y, 1), B: f.At(x, y, 0), A: 255})
		}
	}
	return img
}

// fromRGBA converts an RGBA image back into a BGR frame.
func fromRGBA(img *image.RGBA) *frame.Frame {
	b := img.Bounds()
	pix := make([]uint8, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			pix = append(pix, c.B, c.G, c.R)
		}
	}
	f, _ := frame.New(b.Dx(), b.Dy(), 3, pix)
	return f
}

// Thumbnail scales f down by factor (at least 1 pixel per side) with bilinear filtering.
func Thumbnail(f *frame.Frame, factor int) *frame.Frame {
	if factor < 1 {
		factor = 1
	}
	src := toRGBA(f)
	w := max(1, f.Width()/factor)
	h := max(1, f.Height()/factor)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromRGBA(dst)
}
