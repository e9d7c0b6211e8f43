// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Centralised store of per-video SI/TI summaries.

package metric

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/jszwec/csvutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoFrames       = errors.New("no frames to summarize")
)

type ID int64

type Store struct {
	mu      sync.RWMutex
	records map[ID]Record
	next    ID
}

func NewStore() *Store {
	return &Store{
		records: make(map[ID]Record),
	}
}

func (s *Store) Insert(r Record) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = r
	id := s.next
	s.next++

	return id
}

func (s *Store) Get(id ID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return r, fmt.Errorf("getting record: %w", ErrRecordNotFound)
	}

	return r, nil
}

// GetIDs returns IDs of all records in insertion order.
func (s *Store) GetIDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Record contains SI and TI summary of a single video.
type Record struct {
	Video   string  `csv:"video"`
	Frames  int     `csv:"frames"`
	SIMin   float64 `csv:"si_min"`
	SIMax   float64 `csv:"si_max"`
	SIMean  float64 `csv:"si_mean"`
	SIStDev float64 `csv:"si_stdev"`
	TIMin   float64 `csv:"ti_min"`
	TIMax   float64 `csv:"ti_max"`
	TIMean  float64 `csv:"ti_mean"`
	TIStDev float64 `csv:"ti_stdev"`
}

// Summarize reduces per-frame records of one video into Record.
//
// TI of the first frame is always 0 and is excluded from TI statistics unless
// video has a single frame.
func Summarize(videoID string, records []siti.FrameRecord) (Record, error) {
	if len(records) == 0 {
		return Record{}, fmt.Errorf("summarize %s: %w", videoID, ErrNoFrames)
	}

	si := make([]float64, len(records))
	ti := make([]float64, len(records))
	for i, r := range records {
		si[i] = r.SI
		ti[i] = r.TI
	}
	if len(ti) > 1 {
		ti = ti[1:]
	}

	rec := Record{
		Video:  videoID,
		Frames: len(records),
		SIMin:  floats.Min(si),
		SIMax:  floats.Max(si),
		TIMin:  floats.Min(ti),
		TIMax:  floats.Max(ti),
	}
	rec.SIMean, rec.SIStDev = stat.PopMeanStdDev(si, nil)
	rec.TIMean, rec.TIStDev = stat.PopMeanStdDev(ti, nil)

	return rec, nil
}

// WriteCSV writes records as CSV with header to w.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	var err error
	if len(records) == 0 {
		err = enc.EncodeHeader(Record{})
	} else {
		err = enc.Encode(records)
	}
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
