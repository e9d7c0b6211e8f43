// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffmpeg family related tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/video"
)

var (
	ffprobeCmd = "ffprobe"
	ffmpegCmd  = "ffmpeg"
	// Environment variables that take precedence over $PATH lookup.
	ffprobeEnv = "SITI_FFPROBE"
	ffmpegEnv  = "SITI_FFMPEG"
)

// ErrNoVideoStream is returned when media file has no video stream.
var ErrNoVideoStream = errors.New("no video stream")

// FfmpegPath will return path to ffmpeg binary and error if path is not found.
func FfmpegPath() (string, error) {
	p, err := FindTool(ffmpegCmd, ffmpegEnv)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	return p, nil
}

// FfprobePath will return path to ffprobe binary and error if path is not found.
func FfprobePath() (string, error) {
	p, err := FindTool(ffprobeCmd, ffprobeEnv)
	if err != nil {
		return "", fmt.Errorf("ffprobe not found: %w", err)
	}
	return p, nil
}

// Make sure Ffprobe implements video.MetadataExtractor interface.
var _ video.MetadataExtractor = (*Ffprobe)(nil)

// Ffprobe queries video metadata via ffprobe binary.
type Ffprobe struct {
	// Path to ffprobe executable
	Path string
}

// ExtractMetadata will query first video stream metadata via ffprobe.
func (f *Ffprobe) ExtractMetadata(ctx context.Context, videoFile string) (video.Metadata, error) {
	var vmeta video.Metadata

	if _, err := os.Stat(videoFile); err != nil {
		return vmeta, fmt.Errorf("ExtractMetadata() os.Stat: %w", err)
	}

	ffprobeArgs := []string{
		"-v", "quiet",
		"-select_streams", "v:0",
		"-of", "json",
		"-show_format",
		"-show_streams",
		videoFile,
	}
	cmd := exec.CommandContext(ctx, f.Path, ffprobeArgs...) //#nosec G204
	logging.Debugf("Running: %s", cmd)
	out, err := cmd.Output()
	if err != nil {
		return vmeta, fmt.Errorf("ExtractMetadata() exec error: %w", err)
	}

	return parseFfprobeOutput(out)
}

// ffprobeStream is video stream as reported by ffprobe including rotation
// sources: display matrix side data and legacy "rotate" tag.
type ffprobeStream struct {
	video.Metadata
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
	Tags struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
}

// rotation returns display rotation in degrees.
func (s *ffprobeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return int(math.Round(sd.Rotation))
		}
	}
	if r, err := strconv.Atoi(s.Tags.Rotate); err == nil {
		return r
	}
	return 0
}

// parseFfprobeOutput unmarshals metadata from ffprobe JSON output.
func parseFfprobeOutput(out []byte) (video.Metadata, error) {
	var vmeta video.Metadata
	// Unmarshal metadata from both "streams" and "format" JSON objects.
	meta := &struct {
		Streams []ffprobeStream
		Format  video.Metadata
	}{}
	if err := json.Unmarshal(out, &meta); err != nil {
		return vmeta, fmt.Errorf("ExtractMetadata() json.Unmarshal: %w", err)
	}
	if len(meta.Streams) == 0 {
		return vmeta, fmt.Errorf("ExtractMetadata(): %w", ErrNoVideoStream)
	}

	vmeta = meta.Streams[0].Metadata
	vmeta.Rotation = meta.Streams[0].rotation()
	// For mkv container Streams does not contain duration, so we have to look into Format.
	vmeta.Duration = math.Max(vmeta.Duration, meta.Format.Duration)
	logging.Debugf("%+v", vmeta)

	return vmeta, nil
}
