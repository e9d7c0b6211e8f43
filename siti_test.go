// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for siti tool subcommands.
package main

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path"
	"strconv"
	"testing"

	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/google/go-cmp/cmp"
	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readReport parses per-frame CSV report.
func readReport(t *testing.T, fPath string) []siti.FrameRecord {
	t.Helper()
	fd, err := os.Open(fPath)
	require.NoError(t, err, "Unexpected error opening report")
	defer fd.Close()
	dec, err := csvutil.NewDecoder(csv.NewReader(fd))
	require.NoError(t, err, "Unexpected error reading report header")
	var records []siti.FrameRecord
	if err := dec.Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		require.NoError(t, err, "Unexpected error reading report")
	}
	return records
}

// requireExitCode asserts err is AppError with given exit code.
func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.ExitCode(), "Unexpected exit code, error: %v", err)
}

// Happy path functional test for run sub-command with raw input.
func Test_App_Run_RawInput(t *testing.T) {
	dir := t.TempDir()
	videoA := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4), fixZeroLuma(4, 4), fixZeroLuma(4, 4))
	videoB := fixRawVideo(t, dir, "b.yuv", 4, 4, fixZeroLuma(4, 4), fixZeroLuma(4, 4))
	outFile := path.Join(dir, "out.csv")
	summaryFile := path.Join(dir, "summary.csv")

	t.Run("Should succeed", func(t *testing.T) {
		app := CreateRunCommand()
		err := app.Run([]string{
			"--width", "4", "--height", "4",
			"--cpu_count", "2",
			"--output_file", outFile,
			"--summary_file", summaryFile,
			videoA, videoB,
		})
		assert.NoError(t, err, "Unexpected error running siti")
	})

	t.Run("Should have per-frame report in input order", func(t *testing.T) {
		want := []siti.FrameRecord{
			{Frame: 0, Video: videoA},
			{Frame: 1, Video: videoA},
			{Frame: 2, Video: videoA},
			{Frame: 0, Video: videoB},
			{Frame: 1, Video: videoB},
		}
		if diff := cmp.Diff(want, readReport(t, outFile)); diff != "" {
			t.Errorf("Report mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Should have per-video summary", func(t *testing.T) {
		fd, err := os.Open(summaryFile)
		require.NoError(t, err)
		defer fd.Close()
		rows, err := csv.NewReader(fd).ReadAll()
		require.NoError(t, err)
		// Header + 2 videos.
		require.Len(t, rows, 3)
		assert.Equal(t, []string{videoA, "3"}, rows[1][:2])
		assert.Equal(t, []string{videoB, "2"}, rows[2][:2])
	})
}

func Test_App_Run_ByteIdenticalAcrossWorkerCounts(t *testing.T) {
	dir := t.TempDir()
	var videos []string
	for i := 0; i < 5; i++ {
		frames := make([][]byte, 2+i%3)
		for k := range frames {
			frames[k] = fixLuma(6, 4, i*11+k*5)
		}
		videos = append(videos, fixRawVideo(t, dir, "v"+strconv.Itoa(i)+".yuv", 6, 4, frames...))
	}

	var baseline []byte
	for _, workers := range []string{"1", "2", "8"} {
		outFile := path.Join(dir, "out_"+workers+".csv")
		args := append([]string{"--width", "6", "--height", "4", "--cpu_count", workers, "--output_file", outFile}, videos...)
		require.NoError(t, CreateRunCommand().Run(args))

		got, err := os.ReadFile(outFile)
		require.NoError(t, err)
		if baseline == nil {
			baseline = got
			continue
		}
		assert.Equal(t, string(baseline), string(got), "Report differs for %s workers", workers)
	}
	assert.Len(t, readReport(t, path.Join(dir, "out_1.csv")), 2+3+4+2+3)
}

func Test_App_Run_FailedVideoIsOmitted(t *testing.T) {
	dir := t.TempDir()
	good := fixRawVideo(t, dir, "good.yuv", 4, 4, fixLuma(4, 4, 0), fixLuma(4, 4, 9))
	// One and a half frame of yuv420p 4x4.
	truncated := path.Join(dir, "truncated.yuv")
	require.NoError(t, os.WriteFile(truncated, make([]byte, 36), 0o644))
	missing := path.Join(dir, "missing.yuv")
	outFile := path.Join(dir, "out.csv")

	err := CreateRunCommand().Run([]string{
		"--width", "4", "--height", "4", "--output_file", outFile,
		truncated, good, missing,
	})
	requireExitCode(t, err, 1)
	assert.ErrorContains(t, err, "2 of 3 videos failed")

	// Report is still written, without rows of failed videos.
	got := readReport(t, outFile)
	require.Len(t, got, 2)
	for i, r := range got {
		assert.Equal(t, good, r.Video)
		assert.Equal(t, i, r.Frame)
	}
	assert.Zero(t, got[0].TI, "TI of first frame")
	assert.Positive(t, got[0].SI)
}

func Test_App_Run_FfmpegInput(t *testing.T) {
	dir := t.TempDir()
	// Rotated video is decoded in coded orientation.
	confFile := fixFakeTools(t, 3, 90)
	// Fake ffprobe needs existing input files.
	videoA := path.Join(dir, "a.mp4")
	videoB := path.Join(dir, "b.mp4")
	for _, v := range []string{videoA, videoB} {
		require.NoError(t, os.WriteFile(v, nil, 0o644))
	}
	outFile := path.Join(dir, "out.csv")

	err := CreateRunCommand().Run([]string{"--conf", confFile, "--output_file", outFile, "--progress", videoA, videoB})
	require.NoError(t, err)

	got := readReport(t, outFile)
	require.Len(t, got, 6)
	for i, r := range got {
		assert.Equal(t, i%3, r.Frame)
		assert.Zero(t, r.SI)
		assert.Zero(t, r.TI)
	}
	assert.Equal(t, videoA, got[0].Video)
	assert.Equal(t, videoB, got[5].Video)
}

func Test_App_Run_ReportFileFromConfig(t *testing.T) {
	dir := t.TempDir()
	outFile := path.Join(dir, "from_config.csv")
	confFile := fixConfigFile(t, "config.json", []byte(`{"report_file_name": "`+outFile+`", "worker_count": 1}`))
	video := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4))

	require.NoError(t, CreateRunCommand().Run([]string{"--conf", confFile, "--width", "4", "--height", "4", video}))
	assert.Len(t, readReport(t, outFile), 1)
}

func Test_App_Run_WorkerCountFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	outFile := path.Join(dir, "out.csv")
	confFile := fixConfigFile(t, "config.yaml", []byte("worker_count: 0\n"))
	video := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4))

	t.Run("Invalid config value without flag", func(t *testing.T) {
		err := CreateRunCommand().Run([]string{"--conf", confFile, "--width", "4", "--height", "4", "--output_file", outFile, video})
		requireExitCode(t, err, 2)
		assert.ErrorContains(t, err, "worker count must be positive")
		assert.NoFileExists(t, outFile)
	})

	t.Run("Explicit flag wins", func(t *testing.T) {
		err := CreateRunCommand().Run([]string{"--conf", confFile, "--cpu_count", "2", "--width", "4", "--height", "4", "--output_file", outFile, video})
		require.NoError(t, err)
		assert.Len(t, readReport(t, outFile), 1)
	})
}

/*************************************
* Negative tests for run sub-command.
 *************************************/

// Error cases for run sub-command flags and configuration.
func Test_App_Run_FlagErrors(t *testing.T) {
	dir := t.TempDir()
	video := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4))
	outFile := path.Join(dir, "out.csv")
	badConf := fixConfigFile(t, "bad.json", []byte(`{"sobel_boundary": "wrap"}`))
	// Fake tools that do not exist.
	noTools := fixConfigFile(t, "no_tools.json", []byte(`{"ffmpeg_path": "/nonexistent/ffmpeg"}`))

	tests := map[string]struct {
		// substring in Error()
		want      string
		givenArgs []string
	}{
		"Wrong flags": {
			givenArgs: []string{"--zzz", "aaaa", video},
			want:      "run usage error",
		},
		"No videos": {
			givenArgs: []string{"--output_file", outFile},
			want:      "no videos to analyse",
		},
		"Zero workers": {
			givenArgs: []string{"--cpu_count", "0", "--width", "4", "--height", "4", "--output_file", outFile, video},
			want:      "worker count must be positive",
		},
		"Negative timeout": {
			givenArgs: []string{"--timeout=-1s", "--width", "4", "--height", "4", "--output_file", outFile, video},
			want:      "timeout must not be negative",
		},
		"Unknown pixel format": {
			givenArgs: []string{"--width", "4", "--height", "4", "--pix_fmt", "rgb24", "--output_file", outFile, video},
			want:      `unknown pixel format "rgb24"`,
		},
		"Odd height for yuv420p": {
			givenArgs: []string{"--width", "4", "--height", "3", "--output_file", outFile, video},
			want:      "requires even height",
		},
		"Missing width": {
			givenArgs: []string{"--height", "4", "--output_file", outFile, video},
			want:      "invalid dimensions 0x4",
		},
		"Invalid configuration": {
			givenArgs: []string{"--conf", badConf, "--output_file", outFile, video},
			want:      "configuration validation",
		},
		"Missing ffmpeg": {
			givenArgs: []string{"--conf", noTools, "--output_file", outFile, video},
			want:      "invalid ffmpeg path",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := CreateRunCommand().Run(tc.givenArgs)
			requireExitCode(t, err, 2)
			assert.ErrorContains(t, err, tc.want)
			assert.NoFileExists(t, outFile, "No report expected on configuration errors")
		})
	}
}

func Test_root(t *testing.T) {
	t.Run("Version", func(t *testing.T) {
		assert.NoError(t, root([]string{"version"}))
	})

	t.Run("Help", func(t *testing.T) {
		requireExitCode(t, root([]string{"--help"}), 2)
	})

	t.Run("No arguments", func(t *testing.T) {
		requireExitCode(t, root(nil), 2)
	})

	t.Run("Default command is run", func(t *testing.T) {
		dir := t.TempDir()
		video := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4), fixZeroLuma(4, 4))
		outFile := path.Join(dir, "out.csv")

		require.NoError(t, root([]string{"--width", "4", "--height", "4", "--output_file", outFile, video}))
		assert.Len(t, readReport(t, outFile), 2)
	})

	t.Run("Explicit run command", func(t *testing.T) {
		dir := t.TempDir()
		video := fixRawVideo(t, dir, "a.yuv", 4, 4, fixZeroLuma(4, 4))
		outFile := path.Join(dir, "out.csv")

		require.NoError(t, root([]string{"run", "--width", "4", "--height", "4", "--output_file", outFile, video}))
		assert.Len(t, readReport(t, outFile), 1)
	})
}
