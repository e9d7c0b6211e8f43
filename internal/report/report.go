// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Aggregation of per-video results into flat report.
package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/jszwec/csvutil"
)

// Failure describes video excluded from report.
type Failure struct {
	Video  string
	Reason string
}

// Report is flat list of frame records of all successfully analysed videos.
//
// Records are grouped by video in input order and ordered by frame within
// video. Failed videos have no rows, they are listed in Failures instead.
type Report struct {
	Records  []siti.FrameRecord
	Failures []Failure
}

// Aggregate merges per-video results into Report preserving order of results.
func Aggregate(results []siti.VideoResult) Report {
	var r Report
	total := 0
	for i := range results {
		total += len(results[i].Records)
	}
	r.Records = make([]siti.FrameRecord, 0, total)

	for i := range results {
		res := &results[i]
		if res.Failed() {
			r.Failures = append(r.Failures, Failure{Video: res.Video, Reason: res.Err.Error()})
			continue
		}
		r.Records = append(r.Records, res.Records...)
	}
	return r
}

// VideoCount returns number of videos that contributed rows.
func (r *Report) VideoCount() int {
	n := 0
	prev := ""
	for i := range r.Records {
		if i == 0 || r.Records[i].Video != prev {
			n++
			prev = r.Records[i].Video
		}
	}
	return n
}

// WriteCSV writes report rows as CSV with si,ti,frame,video columns.
//
// Header is written even for report without rows.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(siti.FrameRecord{}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	if len(r.Records) > 0 {
		if err := enc.Encode(r.Records); err != nil {
			return fmt.Errorf("writing CSV records: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
