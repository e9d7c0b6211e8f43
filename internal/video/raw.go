// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame source for headerless raw YUV files. Only luma plane is used.

package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// PixelFormat is raw YUV sample layout.
type PixelFormat string

const (
	YUV420P PixelFormat = "yuv420p"
	YUV422P PixelFormat = "yuv422p"
	YUV444P PixelFormat = "yuv444p"
	YUYV422 PixelFormat = "yuyv422"
	UYVY422 PixelFormat = "uyvy422"
)

// PixelFormats lists supported raw layouts.
var PixelFormats = []PixelFormat{YUV420P, YUV422P, YUV444P, YUYV422, UYVY422}

// ParsePixelFormat converts name to PixelFormat.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for _, p := range PixelFormats {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown pixel format %q", name)
}

// frameSize returns size of single frame in bytes.
func (p PixelFormat) frameSize(width, height int) int {
	luma := width * height
	switch p {
	case YUV420P:
		return luma + luma/2
	case YUV422P, YUYV422, UYVY422:
		return luma * 2
	case YUV444P:
		return luma * 3
	}
	return 0
}

// RawGeometry describes raw video frames.
type RawGeometry struct {
	Width  int
	Height int
	Format PixelFormat
}

// Validate checks that geometry is usable.
func (g RawGeometry) Validate() error {
	var msgs []string
	if g.Width <= 0 || g.Height <= 0 {
		msgs = append(msgs, fmt.Sprintf("invalid dimensions %dx%d", g.Width, g.Height))
	}
	if g.Format.frameSize(2, 2) == 0 {
		msgs = append(msgs, fmt.Sprintf("unsupported pixel format %q", g.Format))
	}
	// Chroma subsampled layouts require even width (and height for 4:2:0).
	if g.Format != YUV444P && g.Width%2 != 0 {
		msgs = append(msgs, fmt.Sprintf("%s requires even width", g.Format))
	}
	if g.Format == YUV420P && g.Height%2 != 0 {
		msgs = append(msgs, fmt.Sprintf("%s requires even height", g.Format))
	}
	if len(msgs) != 0 {
		return errors.New(strings.Join(msgs, ", "))
	}
	return nil
}

// RawOpener implements Opener for raw YUV files of fixed geometry.
type RawOpener struct {
	Geometry RawGeometry
}

// Open opens raw video file.
func (o RawOpener) Open(_ context.Context, video string) (Source, error) {
	if err := o.Geometry.Validate(); err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: err}
	}
	fd, err := os.Open(video)
	if err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: err}
	}
	return NewRawSource(video, fd, o.Geometry), nil
}

// RawSource decodes luma from raw YUV stream.
type RawSource struct {
	video  string
	geom   RawGeometry
	r      *bufio.Reader
	c      io.Closer
	buf    []byte
	frame  int
	closed bool
}

// NewRawSource creates RawSource reading from r. If r implements io.Closer it is
// closed by Close.
func NewRawSource(video string, r io.Reader, g RawGeometry) *RawSource {
	s := &RawSource{
		video: video,
		geom:  g,
		r:     bufio.NewReader(r),
		buf:   make([]byte, g.Format.frameSize(g.Width, g.Height)),
	}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s
}

// Next implements Source for RawSource.
func (s *RawSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, err := io.ReadFull(s.r, s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, &DecodeError{Video: s.video, Frame: s.frame, Err: fmt.Errorf("truncated frame: %w", err)}
	default:
		return nil, &DecodeError{Video: s.video, Frame: s.frame, Err: err}
	}

	luma := s.luma()
	f, err := NewFrame(s.geom.Width, s.geom.Height, luma)
	if err != nil {
		return nil, &DecodeError{Video: s.video, Frame: s.frame, Err: err}
	}
	s.frame++
	return f, nil
}

// luma extracts luma samples from frame buffer.
func (s *RawSource) luma() []float64 {
	n := s.geom.Width * s.geom.Height
	out := make([]float64, n)
	switch s.geom.Format {
	case YUYV422:
		for i := range out {
			out[i] = float64(s.buf[2*i])
		}
	case UYVY422:
		for i := range out {
			out[i] = float64(s.buf[2*i+1])
		}
	default:
		// Planar formats start with full luma plane.
		for i := range out {
			out[i] = float64(s.buf[i])
		}
	}
	return out
}

// Close implements Source for RawSource.
func (s *RawSource) Close() error {
	if s.closed || s.c == nil {
		return nil
	}
	s.closed = true
	return s.c.Close()
}
