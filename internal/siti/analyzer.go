// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package siti

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/video"
)

// FrameRecord contains SI and TI of a single frame.
//
// Field order defines CSV column order of report.
type FrameRecord struct {
	SI    float64 `csv:"si"`
	TI    float64 `csv:"ti"`
	Frame int     `csv:"frame"`
	Video string  `csv:"video"`
}

// VideoResult holds records of one video in frame order.
//
// Failed video has non-nil Err and no Records.
type VideoResult struct {
	Video   string
	Records []FrameRecord
	Err     error
}

// Failed reports if video analysis failed.
func (r *VideoResult) Failed() bool {
	return r.Err != nil
}

// Analyzer drives frames of one video through SI and TI extractors.
//
// Analyzer itself is stateless and safe for concurrent use: every Analyze call
// creates own extractors.
type Analyzer struct {
	Boundary Boundary
}

// Analyze pulls all frames from src in order and computes per-frame features.
//
// Any error from src (other than io.EOF), inconsistent frame dimensions or
// cancelled ctx fail the whole video: records collected so far are discarded.
func (a *Analyzer) Analyze(ctx context.Context, videoID string, src video.Source) VideoResult {
	records, err := a.analyze(ctx, videoID, src)
	if err != nil {
		return VideoResult{Video: videoID, Err: err}
	}
	return VideoResult{Video: videoID, Records: records}
}

func (a *Analyzer) analyze(ctx context.Context, videoID string, src video.Source) ([]FrameRecord, error) {
	si := &Spatial{Boundary: a.Boundary}
	ti := &Temporal{}
	defer ti.Reset()

	var (
		records []FrameRecord
		first   *video.Frame
	)
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis of %s interrupted at frame %d: %w", videoID, i, err)
		}
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, asDecodeError(videoID, i, err)
		}

		if first == nil {
			first = f
		} else if !first.SameDims(f) {
			w1, h1 := first.Dims()
			w2, h2 := f.Dims()
			return nil, &video.DecodeError{
				Video: videoID,
				Frame: i,
				Err:   fmt.Errorf("%dx%d, expected %dx%d: %w", w2, h2, w1, h1, video.ErrDimensionMismatch),
			}
		}

		siValue, err := si.Compute(f)
		if err != nil {
			return nil, asDecodeError(videoID, i, err)
		}
		tiValue, err := ti.Compute(f)
		if err != nil {
			return nil, asDecodeError(videoID, i, err)
		}
		logging.Debugf("frame %d of video %s: si=%v ti=%v", i, videoID, siValue, tiValue)

		records = append(records, FrameRecord{
			SI:    siValue,
			TI:    tiValue,
			Frame: i,
			Video: videoID,
		})
	}
	return records, nil
}

// asDecodeError wraps err into DecodeError unless it already is one or is a
// context error.
func asDecodeError(videoID string, frame int, err error) error {
	var decErr *video.DecodeError
	if errors.As(err, &decErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &video.DecodeError{Video: videoID, Frame: frame, Err: err}
}
