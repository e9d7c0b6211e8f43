// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Grayscale video frame abstractions.

package video

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimensionMismatch is wrapped into DecodeError when frame shape differs from
	// shape established by the first frame of a video.
	ErrDimensionMismatch = errors.New("frame dimension mismatch")
	// ErrEmptyFrame is returned when constructing a frame with zero width or height.
	ErrEmptyFrame = errors.New("frame must have non-zero width and height")
)

// Frame is a single channel frame of float64 intensity samples.
//
// Samples are kept in a dense row-major matrix with height rows and width columns.
type Frame struct {
	m *mat.Dense
}

// NewFrame creates Frame of given dimensions from row-major samples.
//
// If data is nil a zero filled frame is created. Frame takes ownership of data.
func NewFrame(width, height int, data []float64) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("NewFrame() %dx%d: %w", width, height, ErrEmptyFrame)
	}
	if data != nil && len(data) != width*height {
		return nil, fmt.Errorf("NewFrame() got %d samples for %dx%d: %w",
			len(data), width, height, ErrDimensionMismatch)
	}
	return &Frame{m: mat.NewDense(height, width, data)}, nil
}

// NewFrameFromBytes creates Frame from 8-bit luma samples.
func NewFrameFromBytes(width, height int, luma []byte) (*Frame, error) {
	if len(luma) != width*height {
		return nil, fmt.Errorf("NewFrameFromBytes() got %d bytes for %dx%d: %w",
			len(luma), width, height, ErrDimensionMismatch)
	}
	data := make([]float64, len(luma))
	for i, v := range luma {
		data[i] = float64(v)
	}
	return NewFrame(width, height, data)
}

// Dims returns frame width and height.
func (f *Frame) Dims() (width, height int) {
	r, c := f.m.Dims()
	return c, r
}

// Samples returns row-major samples with stride equal to width.
//
// Returned slice must not be modified.
func (f *Frame) Samples() []float64 {
	raw := f.m.RawMatrix()
	if raw.Stride == raw.Cols {
		return raw.Data[:raw.Rows*raw.Cols]
	}
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for r := 0; r < raw.Rows; r++ {
		out = append(out, raw.Data[r*raw.Stride:r*raw.Stride+raw.Cols]...)
	}
	return out
}

// SameDims reports if both frames have same width and height.
func (f *Frame) SameDims(o *Frame) bool {
	w1, h1 := f.Dims()
	w2, h2 := o.Dims()
	return w1 == w2 && h1 == h2
}

// Sub returns per-sample difference f - o as new matrix.
func (f *Frame) Sub(o *Frame) (*mat.Dense, error) {
	if !f.SameDims(o) {
		w1, h1 := f.Dims()
		w2, h2 := o.Dims()
		return nil, fmt.Errorf("Sub() %dx%d vs %dx%d: %w", w1, h1, w2, h2, ErrDimensionMismatch)
	}
	var d mat.Dense
	d.Sub(f.m, o.m)
	return &d, nil
}

// DecodeError is returned when video can not be opened or frame can not be decoded.
type DecodeError struct {
	// Video identifier (path)
	Video string
	// Zero based index of frame that failed, -1 if failure happened on open
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("decode %s: %v", e.Video, e.Err)
	}
	return fmt.Sprintf("decode %s frame %d: %v", e.Video, e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
