// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Frame source that decodes video via ffmpeg into 8-bit grayscale raw frames.

package video

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/template"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/lw"
	"github.com/google/shlex"
)

// DefaultFfmpegDecodeTemplate decodes first video stream to raw 8-bit luma on stdout.
//
// Frames are kept in coded orientation so that they match dimensions reported
// by ffprobe.
var DefaultFfmpegDecodeTemplate = "-hide_banner -loglevel error -nostdin -noautorotate -i {{.Input}} " +
	"-map 0:v:0 -f rawvideo -pix_fmt gray -"

// Keep this much of ffmpeg stderr for diagnostics.
const stderrBufferSize = 64 * 1024

// FfmpegConfig exposes parameters for ffmpeg based Source creation.
type FfmpegConfig struct {
	FfmpegPath     string
	DecodeTemplate string
	// Used to learn frame dimensions before decoding starts
	Probe MetadataExtractor
}

// FfmpegOpener implements Opener that decodes videos with ffmpeg.
type FfmpegOpener struct {
	cfg FfmpegConfig
	tpl *template.Template
	// Decoder applies display rotation (ffmpeg default)
	autorotate bool
}

// NewFfmpegOpener validates configuration and creates FfmpegOpener.
func NewFfmpegOpener(cfg FfmpegConfig) (*FfmpegOpener, error) {
	if cfg.FfmpegPath == "" {
		return nil, errors.New("NewFfmpegOpener() empty ffmpeg path")
	}
	if cfg.Probe == nil {
		return nil, errors.New("NewFfmpegOpener() metadata extractor missing")
	}
	if cfg.DecodeTemplate == "" {
		cfg.DecodeTemplate = DefaultFfmpegDecodeTemplate
	}
	tpl, err := template.New("ffmpeg").Parse(cfg.DecodeTemplate)
	if err != nil {
		return nil, fmt.Errorf("NewFfmpegOpener() parse template: %w", err)
	}
	return &FfmpegOpener{
		cfg:        cfg,
		tpl:        tpl,
		autorotate: !strings.Contains(cfg.DecodeTemplate, "-noautorotate"),
	}, nil
}

// args renders decode command arguments for given input.
func (o *FfmpegOpener) args(input string) ([]string, error) {
	// Template requires a struct with exported fields.
	tplContext := struct {
		Input string
	}{
		Input: shellQuote(input),
	}
	var cmd strings.Builder
	if err := o.tpl.Execute(&cmd, tplContext); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	args, err := shlex.Split(cmd.String())
	if err != nil {
		return nil, fmt.Errorf("prepare command: %w", err)
	}
	return args, nil
}

// Open starts ffmpeg decoder for given video.
func (o *FfmpegOpener) Open(ctx context.Context, video string) (Source, error) {
	meta, err := o.cfg.Probe.ExtractMetadata(ctx, video)
	if err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: err}
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, &DecodeError{
			Video: video,
			Frame: -1,
			Err:   fmt.Errorf("invalid dimensions %dx%d", meta.Width, meta.Height),
		}
	}

	args, err := o.args(video)
	if err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: err}
	}

	width, height := meta.Width, meta.Height
	if o.autorotate && meta.QuarterTurn() {
		logging.Debugf("%s is rotated by %d degrees, decoding as %dx%d", video, meta.Rotation, height, width)
		width, height = height, width
	}

	stderr := lw.NewCappedBuffer(stderrBufferSize)
	cmd := exec.CommandContext(ctx, o.cfg.FfmpegPath, args...) //#nosec G204
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: err}
	}
	logging.Debugf("Decoder command: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		return nil, &DecodeError{Video: video, Frame: -1, Err: fmt.Errorf("starting ffmpeg: %w", err)}
	}

	return &FfmpegSource{
		video:  video,
		width:  width,
		height: height,
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, width*height),
		stderr: stderr,
		buf:    make([]byte, width*height),
	}, nil
}

// FfmpegSource reads raw grayscale frames from ffmpeg stdout.
type FfmpegSource struct {
	video  string
	width  int
	height int
	cmd    *exec.Cmd
	reader *bufio.Reader
	stderr *lw.CappedBuffer
	buf    []byte
	frame  int
	waited bool
}

// Next implements Source for FfmpegSource.
func (s *FfmpegSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, err := io.ReadFull(s.reader, s.buf)
	if err != nil && ctx.Err() != nil {
		// Decoder was killed by cancelled context.
		_ = s.wait()
		return nil, ctx.Err()
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		// Clean end of pipe, but ffmpeg itself may have failed.
		if werr := s.wait(); werr != nil {
			return nil, s.decodeError(werr)
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		_ = s.wait()
		return nil, s.decodeError(fmt.Errorf("truncated frame: %w", err))
	default:
		return nil, s.decodeError(err)
	}

	f, err := NewFrameFromBytes(s.width, s.height, s.buf)
	if err != nil {
		return nil, s.decodeError(err)
	}
	s.frame++
	return f, nil
}

// Close implements Source for FfmpegSource.
//
// Closing before stream is exhausted kills decoder.
func (s *FfmpegSource) Close() error {
	if s.waited {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.wait()
	return nil
}

func (s *FfmpegSource) wait() error {
	if s.waited {
		return nil
	}
	s.waited = true
	if err := s.cmd.Wait(); err != nil {
		logging.Debugf("ffmpeg output for %s (%d bytes dropped):\n%s", s.video, s.stderr.Dropped(), s.stderr)
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *FfmpegSource) decodeError(err error) error {
	return &DecodeError{Video: s.video, Frame: s.frame, Err: err}
}

// shellQuote quotes s so that shlex.Split yields it back as single argument.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
