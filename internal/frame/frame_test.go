package frame

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesPixels(t *testing.T) {
	pix := []uint8{1, 2, 3, 4}
	f, err := New(2, 2, 1, pix)
	require.NoError(t, err)

	pix[0] = 99
	assert.Equal(t, uint8(1), f.At(0, 0, 0), "frame must not alias the caller's buffer")
	assert.Equal(t, uint8(4), f.At(1, 1, 0))
}

func TestNew_RejectsBadGeometry(t *testing.T) {
	_, err := New(2, 2, 3, make([]uint8, 4))
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = New(2, 2, 2, make([]uint8, 8))
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestMatRoundTrip(t *testing.T) {
	pix := make([]uint8, 4*3*3)
	for i := range pix {
		pix[i] = uint8(i * 7)
	}
	f, err := New(4, 3, 3, pix)
	require.NoError(t, err)

	m, err := f.ToMat()
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 4, m.Cols())

	back, err := FromMat(m)
	require.NoError(t, err)
	assert.True(t, back.SameShape(f))
	assert.Equal(t, f.Pix(), back.Pix())
}

func TestLabelTensor_Validate(t *testing.T) {
	lt := NewLabelTensor(4, 4, 0)
	assert.NoError(t, lt.Validate(4, 4))
	assert.True(t, errors.Is(lt.Validate(5, 4), ErrShapeMismatch))

	var missing *LabelTensor
	assert.True(t, errors.Is(missing.Validate(4, 4), ErrShapeMismatch))
}

func TestSlot_LatestWins(t *testing.T) {
	var s Slot
	assert.Nil(t, s.Load())
	assert.Zero(t, s.Version())

	a := Filled(1, 1, 1, 10)
	b := Filled(1, 1, 1, 20)
	s.Store(a)
	s.Store(b)

	got, v := s.Snapshot()
	assert.Same(t, b, got)
	assert.Equal(t, uint64(2), v)
}

func TestSlot_ConcurrentReaders(t *testing.T) {
	var s Slot
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Store(Filled(2, 2, 1, uint8(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if f := s.Load(); f != nil {
				// Every pixel of a stored frame carries the same value.
				v := f.At(0, 0, 0)
				assert.Equal(t, v, f.At(1, 1, 0))
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(1000), s.Version())
}

func TestEncodeJPEG_DecodeImage(t *testing.T) {
	src := Filled(16, 8, 3, 128)

	data, err := EncodeJPEG(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	back, err := DecodeImage(data)
	require.NoError(t, err)
	assert.True(t, back.SameShape(src))
	assert.InDelta(t, 128, int(back.At(5, 5, 1)), 3)

	_, err = DecodeImage([]byte{1, 2, 3})
	assert.Error(t, err)
}
