package source

import (
	"context"
	"testing"

	"camouflage/internal/config"
	"camouflage/internal/frame"
	"camouflage/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// columns returns a BGR image whose blue channel holds the column index.
func columns(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	pix := make([]uint8, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[(y*w+x)*3] = uint8(x)
		}
	}
	f, err := frame.New(w, h, 3, pix)
	require.NoError(t, err)
	m, err := f.ToMat()
	require.NoError(t, err)
	return m
}

func TestPrepare_CentreCrop(t *testing.T) {
	img := columns(t, 20, 10)
	defer img.Close()

	f, err := Prepare(img, 8, false)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 8, f.Height())
	assert.Equal(t, 3, f.Channels())
	assert.Equal(t, uint8(6), f.At(0, 0, 0))
	assert.Equal(t, uint8(13), f.At(7, 5, 0))
}

func TestPrepare_RotatesClockwise(t *testing.T) {
	img := columns(t, 20, 10)
	defer img.Close()

	// After a clockwise quarter turn the source columns run down the rows.
	f, err := Prepare(img, 8, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), f.At(0, 0, 0))
	assert.Equal(t, uint8(6), f.At(7, 0, 0))
	assert.Equal(t, uint8(9), f.At(0, 3, 0))
}

func TestPrepare_UpscalesSmallInput(t *testing.T) {
	img := columns(t, 6, 4)
	defer img.Close()

	f, err := Prepare(img, 8, false)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Width())
	assert.Equal(t, 8, f.Height())
}

func TestPrepare_Empty(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	_, err := Prepare(img, 8, false)
	assert.ErrorIs(t, err, frame.ErrUnavailable)
}

func TestDecode(t *testing.T) {
	img := columns(t, 16, 16)
	defer img.Close()
	buf, err := gocv.IMEncode(".png", img)
	require.NoError(t, err)
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	f, err := Decode(data, 16, false)
	require.NoError(t, err)
	assert.Equal(t, uint8(11), f.At(11, 3, 0))

	_, err = Decode([]byte("not an image"), 16, false)
	assert.Error(t, err)
}

func TestCapture_Disabled(t *testing.T) {
	c := NewCapture(&config.Config{FrameSize: 8}, logger.NewNop())
	assert.False(t, c.Enabled())

	c = NewCapture(&config.Config{SourceDevice: "0", FrameSize: 8}, logger.NewNop())
	assert.True(t, c.Enabled())
	assert.Equal(t, 0, c.deviceID())
}

func TestCapture_MissingFile(t *testing.T) {
	c := NewCapture(&config.Config{SourceDevice: "/nonexistent/clip.mp4", SourceFPS: 100, FrameSize: 8}, logger.NewNop())

	err := c.Run(context.Background(), func(*frame.Frame) error { return nil })
	assert.Error(t, err)
}
