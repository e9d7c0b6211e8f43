// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Video metadata related constructs.

package video

import "context"

// Metadata type contains video stream metadata needed for decoding.
type Metadata struct {
	CodecName string  `json:"codec_name,omitempty"`
	FrameRate string  `json:"r_frame_rate,omitempty"`
	Duration  float64 `json:"duration,omitempty,string"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	PixFmt    string  `json:"pix_fmt,omitempty"`
	// Display rotation in degrees, Width and Height are before rotation
	Rotation int `json:"-"`
}

// QuarterTurn reports if displayed frame is rotated by 90 or 270 degrees, e.g.
// has width and height swapped.
func (m Metadata) QuarterTurn() bool {
	r := ((m.Rotation % 360) + 360) % 360
	return r == 90 || r == 270
}

// MetadataExtractor is the interface that wraps ExtractMetadata method.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, videoFile string) (Metadata, error)
}
