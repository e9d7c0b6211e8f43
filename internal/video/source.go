// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package video

import (
	"context"
	"io"
)

// Source is a single pass stream of frames of one video in decode order.
//
// Next returns io.EOF when stream is exhausted. Any other error means video
// decoding failed and stream should not be used further.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// Opener is the interface that wraps Open method.
//
// Open starts decoding of given video.
type Opener interface {
	Open(ctx context.Context, video string) (Source, error)
}

// OpenerFunc is an adapter to allow use of ordinary functions as Opener.
type OpenerFunc func(ctx context.Context, video string) (Source, error)

// Open calls f(ctx, video).
func (f OpenerFunc) Open(ctx context.Context, video string) (Source, error) {
	return f(ctx, video)
}

// SliceSource is in-memory Source over already decoded frames.
type SliceSource struct {
	frames []*Frame
	pos    int
	// Optional error returned instead of io.EOF once frames are exhausted
	err error
}

// NewSliceSource creates Source yielding given frames.
func NewSliceSource(frames ...*Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// FailAfter makes Source return err after all frames are consumed.
func (s *SliceSource) FailAfter(err error) *SliceSource {
	s.err = err
	return s
}

func (s *SliceSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	// Release reference so that consumed frames can be collected.
	s.frames[s.pos] = nil
	s.pos++
	return f, nil
}

func (s *SliceSource) Close() error {
	s.frames = nil
	return nil
}
