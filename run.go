// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// siti tool's run subcommand implementation.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/metric"
	"github.com/evolution-gaming/siti/internal/pool"
	"github.com/evolution-gaming/siti/internal/report"
	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/evolution-gaming/siti/internal/tools"
	"github.com/evolution-gaming/siti/internal/video"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
)

// CreateRunCommand will create instance of App.
func CreateRunCommand() *App {
	app := &App{
		fs:          pflag.NewFlagSet("run", pflag.ContinueOnError),
		gf:          globalFlags{},
		mStore:      metric.NewStore(),
		progressOut: os.Stderr,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flOutputFile, "output_file", defaultReportFile, "Destination of per-frame CSV report (default from config report_file_name)")
	app.fs.IntVar(&app.flCPUCount, "cpu_count", pool.DefaultWorkers(), "Number of videos analysed concurrently (default from config worker_count)")
	app.fs.DurationVar(&app.flTimeout, "timeout", 0, "Per-video analysis time limit, 0 means no limit")
	app.fs.StringVar(&app.flSummaryFile, "summary_file", "", "Destination of per-video summary CSV (optional)")
	app.fs.IntVar(&app.flWidth, "width", 0, "Frame width of raw YUV input")
	app.fs.IntVar(&app.flHeight, "height", 0, "Frame height of raw YUV input")
	app.fs.StringVar(&app.flPixFmt, "pix_fmt", string(video.YUV420P), "Pixel format of raw YUV input")
	app.fs.BoolVar(&app.flProgress, "progress", false, "Show progress bar")
	app.fs.SortFlags = false
	app.fs.Usage = app.Help

	return app
}

// Make sure App implements Commander interface.
var _ Commander = (*App)(nil)

// App is subcommand application context that implements Commander interface.
type App struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *pflag.FlagSet
	// Global flags
	gf globalFlags
	// Per-frame report destination
	flOutputFile string
	// Optional per-video summary destination
	flSummaryFile string
	// Worker count
	flCPUCount int
	// Per-video time limit
	flTimeout time.Duration
	// Raw input geometry
	flWidth, flHeight int
	flPixFmt          string
	// Progress bar toggle
	flProgress bool
	// Videos to analyse, in report order
	videos []string
	// Per-video summary store
	mStore *metric.Store
	// Progress bar destination
	progressOut io.Writer
}

func (a *App) Name() string {
	return a.fs.Name()
}

func (a *App) Help() {
	longHelp := `Compute spatial (SI) and temporal (TI) information of every frame of given
videos and write them to a single CSV report with columns si,ti,frame,video.

Videos are decoded with ffmpeg unless --width and --height are given, in which
case inputs are read as raw YUV files of --pix_fmt layout.

Examples:

  siti --output_file report.csv a.mp4 b.mp4
  siti run --cpu_count 2 --timeout 10m --summary_file summary.csv *.mp4
  siti --width 1920 --height 1080 --pix_fmt yuv420p source.yuv`
	printSubCommandUsage(longHelp, a.fs)
}

// init will do App state initialization.
func (a *App) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error: %s", a.fs.Name(), err),
		}
	}

	if a.gf.Debug {
		logging.EnableDebugLogger()
	}

	a.videos = a.fs.Args()
	if len(a.videos) == 0 {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "no videos to analyse",
		}
	}

	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 2, msg: err.Error()}
	}
	// Explicit flags win over configuration file, effective values get verified.
	if a.fs.Changed("output_file") {
		c.ReportFileName = NewConfigVal(a.flOutputFile)
	}
	if a.fs.Changed("cpu_count") {
		c.WorkerCount = NewConfigVal(a.flCPUCount)
	}
	if err := c.Verify(); err != nil {
		return &AppError{exitCode: 2, msg: fmt.Sprintf("configuration validation: %s", err)}
	}
	a.cfg = &c
	a.flOutputFile = a.cfg.ReportFileName.Value()
	a.flCPUCount = a.cfg.WorkerCount.Value()

	return nil
}

// rawInput reports if raw YUV input was requested.
func (a *App) rawInput() bool {
	return a.fs.Changed("width") || a.fs.Changed("height") || a.fs.Changed("pix_fmt")
}

// opener creates frame source opener according to flags and configuration.
func (a *App) opener() (video.Opener, error) {
	if a.rawInput() {
		pixFmt, err := video.ParsePixelFormat(a.flPixFmt)
		if err != nil {
			return nil, err
		}
		g := video.RawGeometry{Width: a.flWidth, Height: a.flHeight, Format: pixFmt}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("raw video geometry: %w", err)
		}
		logging.Debugf("Reading raw %s input of %dx%d", g.Format, g.Width, g.Height)
		return video.RawOpener{Geometry: g}, nil
	}

	if err := a.cfg.VerifyTools(); err != nil {
		return nil, err
	}
	return video.NewFfmpegOpener(video.FfmpegConfig{
		FfmpegPath:     a.cfg.FfmpegPath.Value(),
		DecodeTemplate: a.cfg.FfmpegDecodeTemplate.Value(),
		Probe:          &tools.Ffprobe{Path: a.cfg.FfprobePath.Value()},
	})
}

// progressBar creates progress bar over all videos.
func (a *App) progressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(len(a.videos),
		progressbar.OptionSetWriter(a.progressOut),
		progressbar.OptionSetDescription("Analysing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(a.progressOut) }),
	)
}

// analyse runs worker pool over all videos.
func (a *App) analyse(ctx context.Context, opener video.Opener) ([]siti.VideoResult, error) {
	// Boundary is validated by Config.Verify().
	boundary, _ := siti.ParseBoundary(a.cfg.SobelBoundary.Value())

	p := &pool.Pool{
		Workers:  a.flCPUCount,
		Timeout:  a.flTimeout,
		Opener:   opener,
		Analyzer: &siti.Analyzer{Boundary: boundary},
	}
	if a.flProgress {
		bar := a.progressBar()
		defer bar.Finish()
		p.OnDone = func(siti.VideoResult) {
			_ = bar.Add(1)
		}
	}

	return p.Run(ctx, a.videos)
}

// summarize stores summary of every successfully analysed video.
func (a *App) summarize(results []siti.VideoResult) {
	for _, res := range results {
		if res.Failed() {
			continue
		}
		rec, err := metric.Summarize(res.Video, res.Records)
		if err != nil {
			// Video without frames has nothing to summarize.
			logging.Infof("Skipping summary: %s", err)
			continue
		}
		id := a.mStore.Insert(rec)
		logging.Debugf("Storing summary record (id=%v) of %s", id, res.Video)
	}
}

// saveReport writes per-frame report.
func (a *App) saveReport(r report.Report) error {
	if err := writeFile(a.flOutputFile, func(w io.Writer) error { return report.WriteCSV(w, r) }); err != nil {
		return fmt.Errorf("saving CSV report: %w", err)
	}
	logging.Infof("Report with %d frames of %d videos written to %s", len(r.Records), r.VideoCount(), a.flOutputFile)
	return nil
}

// saveSummary writes per-video summary.
func (a *App) saveSummary() error {
	ids := a.mStore.GetIDs()
	records := make([]metric.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := a.mStore.Get(id)
		if err != nil {
			return fmt.Errorf("saving summary: %w", err)
		}
		records = append(records, rec)
	}
	if err := writeFile(a.flSummaryFile, func(w io.Writer) error { return metric.WriteCSV(w, records) }); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	logging.Infof("Summary of %d videos written to %s", len(records), a.flSummaryFile)
	return nil
}

// Run is main entry point into App execution.
func (a *App) Run(args []string) error {
	logging.Infof("siti version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}
	logging.Debugf("Application configuration: %#v", a.cfg)

	opener, err := a.opener()
	if err != nil {
		return &AppError{exitCode: 2, msg: err.Error()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := a.analyse(ctx, opener)
	if err != nil {
		exitCode := 1
		var cfgErr *pool.ConfigError
		if errors.As(err, &cfgErr) {
			exitCode = 2
		}
		return &AppError{exitCode: exitCode, msg: err.Error()}
	}

	r := report.Aggregate(results)
	logFailures(r.Failures)

	// Report is written even when some videos failed.
	if err := a.saveReport(r); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if a.flSummaryFile != "" {
		a.summarize(results)
		if err := a.saveSummary(); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
	}

	if ctx.Err() != nil {
		return &AppError{exitCode: 1, msg: "interrupted, report contains only completed videos"}
	}
	if n := len(r.Failures); n != 0 {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("%d of %d videos failed, see log for reasons", n, len(a.videos))}
	}

	logging.Info("Done")
	return nil
}
