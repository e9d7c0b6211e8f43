// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Spatial (SI) and temporal (TI) information features of video frames.

package siti

import (
	"fmt"
	"math"
	"strings"

	"github.com/evolution-gaming/siti/internal/video"
	"gonum.org/v1/gonum/stat"
)

// Extractor computes single feature value per frame.
//
// Implementations are Spatial and Temporal. Temporal keeps state between calls,
// so an Extractor instance must only ever see frames of one video.
type Extractor interface {
	Name() string
	Compute(f *video.Frame) (float64, error)
}

// Make sure both features implement Extractor interface.
var (
	_ Extractor = (*Spatial)(nil)
	_ Extractor = (*Temporal)(nil)
)

// Boundary is a policy for samples outside of frame when applying Sobel kernel.
type Boundary int

const (
	// Reflect about the edge, edge sample repeated: (d c b a | a b c d | d c b a).
	Reflect Boundary = iota
	// Mirror about the edge sample: (d c b | a b c d | c b a).
	Mirror
	// Nearest extends edge sample: (a a a | a b c d | d d d).
	Nearest
	// Constant pads with zeros: (0 0 0 | a b c d | 0 0 0).
	Constant
)

var boundaryNames = map[Boundary]string{
	Reflect:  "reflect",
	Mirror:   "mirror",
	Nearest:  "nearest",
	Constant: "constant",
}

func (b Boundary) String() string {
	if s, ok := boundaryNames[b]; ok {
		return s
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

// ParseBoundary converts boundary policy name to Boundary.
func ParseBoundary(name string) (Boundary, error) {
	for b, s := range boundaryNames {
		if strings.EqualFold(s, name) {
			return b, nil
		}
	}
	return Reflect, fmt.Errorf("unknown boundary mode %q", name)
}

// index maps possibly out of range index i into [0, n) and reports if sample
// should be taken from frame (false means zero padding).
func (b Boundary) index(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	switch b {
	case Constant:
		return 0, false
	case Nearest:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	case Mirror:
		if n == 1 {
			return 0, true
		}
		if i < 0 {
			return -i, true
		}
		return 2*n - i - 2, true
	default:
		if i < 0 {
			return -i - 1, true
		}
		return 2*n - i - 1, true
	}
}

// Spatial computes SI: population standard deviation of Sobel gradient magnitude.
type Spatial struct {
	Boundary Boundary
}

func (s *Spatial) Name() string { return "si" }

// Compute implements Extractor for Spatial.
func (s *Spatial) Compute(f *video.Frame) (float64, error) {
	w, h := f.Dims()
	px := f.Samples()
	gy := s.sobel(px, w, h, true)
	gx := s.sobel(px, w, h, false)
	for i := range gx {
		gx[i] = math.Hypot(gx[i], gy[i])
	}
	return popStdDev(gx), nil
}

// sobel applies separable Sobel operator: derivative [-1 0 1] along one axis and
// smoothing [1 2 1] along the other. With vertical set derivative is taken across
// rows.
func (s *Spatial) sobel(px []float64, w, h int, vertical bool) []float64 {
	at := func(x, y int) float64 {
		xi, okx := s.Boundary.index(x, w)
		yi, oky := s.Boundary.index(y, h)
		if !okx || !oky {
			return 0
		}
		return px[yi*w+xi]
	}

	// Derivative pass first, so that uniform input yields exact zeros.
	d := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if vertical {
				d[y*w+x] = at(x, y+1) - at(x, y-1)
			} else {
				d[y*w+x] = at(x+1, y) - at(x-1, y)
			}
		}
	}

	dAt := func(x, y int) float64 {
		xi, okx := s.Boundary.index(x, w)
		yi, oky := s.Boundary.index(y, h)
		if !okx || !oky {
			return 0
		}
		return d[yi*w+xi]
	}
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if vertical {
				out[y*w+x] = dAt(x-1, y) + 2*dAt(x, y) + dAt(x+1, y)
			} else {
				out[y*w+x] = dAt(x, y-1) + 2*dAt(x, y) + dAt(x, y+1)
			}
		}
	}
	return out
}

// Temporal computes TI: population standard deviation of difference between
// current and previous frame. TI of the first frame is 0.
type Temporal struct {
	prev *video.Frame
}

func (t *Temporal) Name() string { return "ti" }

// Compute implements Extractor for Temporal.
func (t *Temporal) Compute(f *video.Frame) (float64, error) {
	if t.prev == nil {
		t.prev = f
		return 0, nil
	}
	diff, err := f.Sub(t.prev)
	if err != nil {
		return 0, err
	}
	t.prev = f
	return popStdDev(diff.RawMatrix().Data), nil
}

// Reset drops reference to previous frame.
func (t *Temporal) Reset() {
	t.prev = nil
}

// popStdDev returns population standard deviation of x.
func popStdDev(x []float64) float64 {
	v := stat.PopVariance(x, nil)
	// Guard against tiny negative variance from rounding.
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Sqrt(v)
}
