package frame

import (
	"fmt"

	"gocv.io/x/gocv"
)

// EncodeJPEG compresses the frame for viewers and snapshot files.
func EncodeJPEG(f *Frame) ([]byte, error) {
	mat, err := f.ToMat()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// DecodeImage reads an encoded image as a 3-channel frame, without resizing.
func DecodeImage(data []byte) (*Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	return FromMat(mat)
}
