// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Bounded worker pool that analyzes multiple videos concurrently.
package pool

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/evolution-gaming/siti/internal/video"
)

// ConfigError error type defines Pool validation failures.
type ConfigError struct {
	msg     string
	reasons []string
}

func (e *ConfigError) Error() string {
	if len(e.reasons) > 0 {
		return fmt.Sprintf("%s with reasons:\n%s", e.msg, strings.Join(e.reasons, "\n"))
	}
	return e.msg
}

func (e *ConfigError) Reasons() []string {
	return e.reasons
}

func (e *ConfigError) addReason(reason string) {
	e.reasons = append(e.reasons, reason)
}

// DefaultWorkers returns default worker count: number of available CPUs.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// Pool runs video analysis of multiple videos with bounded concurrency.
type Pool struct {
	// Maximum count of videos analysed concurrently
	Workers int
	// Per-video time limit, zero means no limit
	Timeout time.Duration
	// Opens frame source for a video
	Opener video.Opener
	// Analyzer shared by all workers, it keeps no per-video state
	Analyzer *siti.Analyzer
	// Optional hook called from worker goroutine once video is done, panics in
	// it are logged and do not affect results
	OnDone func(siti.VideoResult)
}

// Validate checks Pool configuration against given videos.
func (p *Pool) Validate(videos []string) error {
	errConfig := &ConfigError{msg: "pool configuration error"}

	if len(videos) == 0 {
		errConfig.addReason("no videos to analyse")
	}
	if p.Workers < 1 {
		errConfig.addReason(fmt.Sprintf("worker count must be positive, got %d", p.Workers))
	}
	if p.Timeout < 0 {
		errConfig.addReason(fmt.Sprintf("timeout must not be negative, got %s", p.Timeout))
	}
	if p.Opener == nil {
		errConfig.addReason("frame source opener missing")
	}
	if p.Analyzer == nil {
		errConfig.addReason("analyzer missing")
	}

	if len(errConfig.reasons) != 0 {
		return errConfig
	}
	return nil
}

// Run analyses all videos and returns results in order of videos.
//
// Returned error is non-nil only for invalid configuration, in which case no
// work is started. Per-video failures are reported through VideoResult.Err and
// never stop analysis of other videos. Cancelling ctx marks videos that have
// not finished as failed; finished results are kept.
func (p *Pool) Run(ctx context.Context, videos []string) ([]siti.VideoResult, error) {
	if err := p.Validate(videos); err != nil {
		return nil, err
	}

	workers := p.Workers
	if workers > len(videos) {
		workers = len(videos)
	}
	logging.Infof("Analysing %d videos with %d workers", len(videos), workers)

	// Every worker writes only to results[i] of jobs it took, no locking needed.
	results := make([]siti.VideoResult, len(videos))
	jobs := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.process(ctx, videos[i])
				p.notify(results[i])
			}
		}()
	}

	for i := range videos {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// notify calls OnDone hook if set.
func (p *Pool) notify(res siti.VideoResult) {
	if p.OnDone == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("OnDone hook panic for %s: %v\n%s", res.Video, r, debug.Stack())
		}
	}()
	p.OnDone(res)
}

// process analyses single video, capturing any failure into VideoResult.
func (p *Pool) process(ctx context.Context, videoID string) (res siti.VideoResult) {
	// Do not start new work once cancelled.
	if err := ctx.Err(); err != nil {
		return siti.VideoResult{Video: videoID, Err: fmt.Errorf("not started: %w", err)}
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Debugf("Panic while analysing %s: %v\n%s", videoID, r, debug.Stack())
			res = siti.VideoResult{Video: videoID, Err: fmt.Errorf("analysis panic: %v", r)}
		}
	}()

	start := time.Now()
	logging.Infof("Start analysing %s", videoID)
	src, err := p.Opener.Open(ctx, videoID)
	if err != nil {
		return siti.VideoResult{Video: videoID, Err: err}
	}
	defer func() {
		if err := src.Close(); err != nil {
			logging.Debugf("Closing source of %s: %v", videoID, err)
		}
	}()

	res = p.Analyzer.Analyze(ctx, videoID, src)
	if !res.Failed() {
		logging.Infof("Done analysing %s: %d frames in %s", videoID, len(res.Records), time.Since(start))
	}
	return res
}
