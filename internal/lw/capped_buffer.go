// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// A capped in-memory writer for diagnostics output of external tools.
//
// Unlike io.LimitedReader counterpart it never fails a Write: exceeding bytes are
// counted and dropped. Failing writes would make exec.Cmd report a copy error
// instead of actual tool exit status.
package lw

import (
	"bytes"
	"fmt"
	"sync"
)

// CappedBuffer keeps first N bytes written to it.
type CappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	n       uint
	dropped uint
}

// NewCappedBuffer creates CappedBuffer holding at most n bytes.
func NewCappedBuffer(n uint) *CappedBuffer {
	return &CappedBuffer{n: n}
}

// Write implements io.Writer for *CappedBuffer.
func (c *CappedBuffer) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.n - uint(c.buf.Len())
	if uint(len(b)) <= room {
		c.buf.Write(b)
		return len(b), nil
	}
	c.buf.Write(b[:room])
	c.dropped += uint(len(b)) - room
	return len(b), nil
}

// Dropped returns count of bytes that did not fit.
func (c *CappedBuffer) Dropped() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// String returns retained output with truncation note if anything was dropped.
func (c *CappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == 0 {
		return c.buf.String()
	}
	return fmt.Sprintf("%s... (%d bytes truncated)", c.buf.String(), c.dropped)
}
