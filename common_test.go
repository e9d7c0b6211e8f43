// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for reusable parts of siti application and subcommand infrastructure.
package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"testing"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_writeFile(t *testing.T) {
	fPath := path.Join(t.TempDir(), "out.txt")

	t.Run("Should write contents", func(t *testing.T) {
		err := writeFile(fPath, func(w io.Writer) error {
			_, err := io.WriteString(w, "hello")
			return err
		})
		require.NoError(t, err)
		b, err := os.ReadFile(fPath)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(b))
	})

	t.Run("Should propagate write error", func(t *testing.T) {
		errWrite := errors.New("disk full")
		err := writeFile(fPath, func(io.Writer) error { return errWrite })
		assert.ErrorIs(t, err, errWrite)
	})

	t.Run("Should fail for non-existent directory", func(t *testing.T) {
		err := writeFile(path.Join(t.TempDir(), "missing", "out.txt"), func(io.Writer) error { return nil })
		assert.ErrorContains(t, err, "creating")
	})
}

func Test_logFailures(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	logFailures([]report.Failure{
		{Video: "a.mp4", Reason: "decode a.mp4: moov atom not found"},
		{Video: "b.mp4", Reason: "context deadline exceeded"},
	})

	out := buf.String()
	assert.Contains(t, out, "ERROR: ")
	assert.Contains(t, out, "Video a.mp4 failed: decode a.mp4: moov atom not found")
	assert.Contains(t, out, "Video b.mp4 failed: context deadline exceeded")
}

func Test_fileExists(t *testing.T) {
	dir := t.TempDir()
	f := path.Join(dir, "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	assert.True(t, fileExists(f))
	assert.False(t, fileExists(dir), "Directory is not a file")
	assert.False(t, fileExists(path.Join(dir, "nope")))
}
