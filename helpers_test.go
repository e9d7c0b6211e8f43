// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable helpers and fixtures for tests.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixRawVideo fixture writes yuv420p video of given frames into dir.
//
// Every frame is given as width*height luma samples, chroma planes are mid-grey.
func fixRawVideo(t *testing.T, dir, name string, width, height int, frames ...[]byte) (fPath string) {
	t.Helper()
	var buf bytes.Buffer
	chroma := bytes.Repeat([]byte{128}, width*height/2)
	for _, luma := range frames {
		require.Len(t, luma, width*height, "Fixture frame has wrong size")
		buf.Write(luma)
		buf.Write(chroma)
	}
	fPath = path.Join(dir, name)
	require.NoError(t, os.WriteFile(fPath, buf.Bytes(), 0o644))
	return fPath
}

// fixLuma fixture returns width*height luma samples of gradient shifted by offset.
func fixLuma(width, height, offset int) []byte {
	luma := make([]byte, width*height)
	for i := range luma {
		luma[i] = byte((i%width)*16 + (i/width)*3 + offset)
	}
	return luma
}

// fixZeroLuma fixture returns all-zero luma samples.
func fixZeroLuma(width, height int) []byte {
	return make([]byte, width*height)
}

// fixFakeTools fixture creates fake ffmpeg and ffprobe shell scripts and
// configuration file pointing to them.
//
// Fake ffprobe reports 4x4 video with given display rotation. Fake ffmpeg
// outputs given number of all-zero 4x4 gray frames and fails unless asked to
// keep coded orientation.
func fixFakeTools(t *testing.T, frames, rotation int) (confFile string) {
	t.Helper()
	dir := t.TempDir()

	ffprobe := path.Join(dir, "ffprobe")
	ffprobeOut := fmt.Sprintf(`{"streams": [{"codec_name": "h264", "width": 4, "height": 4, `+
		`"pix_fmt": "yuv420p", "r_frame_rate": "25/1", "duration": "1.000000", `+
		`"side_data_list": [{"side_data_type": "Display Matrix", "rotation": %d}]}], "format": {}}`, rotation)
	require.NoError(t, os.WriteFile(ffprobe,
		[]byte(fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n%s\nEOF\n", ffprobeOut)), 0o755))

	ffmpeg := path.Join(dir, "ffmpeg")
	script := fmt.Sprintf(`#!/bin/sh
case "$*" in
*-noautorotate*) head -c %d /dev/zero ;;
*) echo "autorotation not expected" >&2; exit 3 ;;
esac
`, frames*16)
	require.NoError(t, os.WriteFile(ffmpeg, []byte(script), 0o755))

	confFile = path.Join(dir, "config.yaml")
	conf := fmt.Sprintf("ffmpeg_path: %s\nffprobe_path: %s\n", ffmpeg, ffprobe)
	require.NoError(t, os.WriteFile(confFile, []byte(conf), 0o644))
	return confFile
}
