// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application configuration structures.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/pool"
	"github.com/evolution-gaming/siti/internal/siti"
	"github.com/evolution-gaming/siti/internal/tools"
	"github.com/evolution-gaming/siti/internal/video"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	defaultReportFile = "siti.csv"
)

// Config represent application configuration.
type Config struct {
	FfmpegPath           ConfigVal[string] `json:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
	FfprobePath          ConfigVal[string] `json:"ffprobe_path,omitempty" yaml:"ffprobe_path,omitempty"`
	FfmpegDecodeTemplate ConfigVal[string] `json:"ffmpeg_decode_template,omitempty" yaml:"ffmpeg_decode_template,omitempty"`
	ReportFileName       ConfigVal[string] `json:"report_file_name,omitempty" yaml:"report_file_name,omitempty"`
	SobelBoundary        ConfigVal[string] `json:"sobel_boundary,omitempty" yaml:"sobel_boundary,omitempty"`
	WorkerCount          ConfigVal[int]    `json:"worker_count,omitempty" yaml:"worker_count,omitempty"`
}

// Verify will check that configuration is valid.
//
// External tools are not checked here since raw input does not need them, see
// VerifyTools().
func (c *Config) Verify() error {
	msgs := []string{}
	if c.FfmpegDecodeTemplate.Value() == "" {
		msgs = append(msgs, "empty ffmpeg decode template")
	}
	if c.ReportFileName.Value() == "" {
		msgs = append(msgs, "empty report file name")
	}
	if _, err := siti.ParseBoundary(c.SobelBoundary.Value()); err != nil {
		msgs = append(msgs, err.Error())
	}
	if c.WorkerCount.Value() < 1 {
		msgs = append(msgs, fmt.Sprintf("worker count must be positive, got %d", c.WorkerCount.Value()))
	}

	if len(msgs) != 0 {
		return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), ErrInvalidConfig)
	}
	return nil
}

// VerifyTools will check that ffmpeg and ffprobe executables exist.
func (c *Config) VerifyTools() error {
	msgs := []string{}
	if !fileExists(c.FfmpegPath.Value()) {
		msgs = append(msgs, fmt.Sprintf("invalid ffmpeg path %q", c.FfmpegPath.Value()))
	}
	if !fileExists(c.FfprobePath.Value()) {
		msgs = append(msgs, fmt.Sprintf("invalid ffprobe path %q", c.FfprobePath.Value()))
	}
	if len(msgs) != 0 {
		return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), ErrInvalidConfig)
	}
	return nil
}

// OverrideFrom will overwrite fields from given Config object.
//
// Only fields that are "not-nil" (as per IsNil() method) in src Config object will be
// overwritten.
func (c *Config) OverrideFrom(src Config) {
	if !src.FfmpegPath.IsNil() {
		c.FfmpegPath = src.FfmpegPath
	}
	if !src.FfprobePath.IsNil() {
		c.FfprobePath = src.FfprobePath
	}
	if !src.FfmpegDecodeTemplate.IsNil() {
		c.FfmpegDecodeTemplate = src.FfmpegDecodeTemplate
	}
	if !src.ReportFileName.IsNil() {
		c.ReportFileName = src.ReportFileName
	}
	if !src.SobelBoundary.IsNil() {
		c.SobelBoundary = src.SobelBoundary
	}
	if !src.WorkerCount.IsNil() {
		c.WorkerCount = src.WorkerCount
	}
}

// loadDefaultConfig will create a default configuration.
//
// ffmpeg and ffprobe are auto-detected. When detection fails bare executable
// names are used and VerifyTools() will report them.
func loadDefaultConfig() Config {
	ffmpeg, err := tools.FfmpegPath()
	if err != nil {
		logging.Debugf("DefaultConfig: %s", err)
		ffmpeg = "ffmpeg"
	}
	ffprobe, err := tools.FfprobePath()
	if err != nil {
		logging.Debugf("DefaultConfig: %s", err)
		ffprobe = "ffprobe"
	}

	return Config{
		FfmpegPath:           NewConfigVal(ffmpeg),
		FfprobePath:          NewConfigVal(ffprobe),
		FfmpegDecodeTemplate: NewConfigVal(video.DefaultFfmpegDecodeTemplate),
		ReportFileName:       NewConfigVal(defaultReportFile),
		SobelBoundary:        NewConfigVal(siti.Reflect.String()),
		WorkerCount:          NewConfigVal(pool.DefaultWorkers()),
	}
}

// loadConfigFromFile will load configuration from JSON or YAML file.
func loadConfigFromFile(f string) (cfg Config, err error) {
	fileExt := strings.ToLower(filepath.Ext(f))
	switch fileExt {
	case ".json":
		return loadFile(f, json.Unmarshal)
	case ".yaml", ".yml":
		return loadFile(f, yaml.Unmarshal)
	default:
		return cfg, fmt.Errorf("unknown config format: %s", fileExt)
	}
}

// LoadConfig will return merged default config and config from file. This is main
// function to use for config loading. Configuration file is optional e.g. can be "".
func LoadConfig(configFile string) (cfg Config, err error) {
	cfg = loadDefaultConfig()

	if configFile != "" {
		c, err := loadConfigFromFile(configFile)
		if err != nil {
			return cfg, err
		}
		// Configuration file can specify full set or partial set of configuration
		// options, the rest remains as per default config.
		cfg.OverrideFrom(c)
	}

	return cfg, nil
}

func loadFile(f string, unmarshal func([]byte, any) error) (cfg Config, err error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return cfg, fmt.Errorf("config from file: %w", err)
	}

	if len(b) == 0 {
		return cfg, fmt.Errorf("config file %s is empty: %w", f, ErrInvalidConfig)
	}

	if err = unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config from document: %w", err)
	}

	return cfg, nil
}

// In order to support Config overriding we have to implement wrapper type for Config
// fields. Otherwise it is hard to distinguish skipped fields, for instance when loading
// partial configuration from file: in that case it would be impossible to distinguish
// between say string fields zero value and empty string values as explicitly specified in
// configuration file.

// NewConfigVal is constructor for ConfigVal. It will wrap its argument into ConfigVal.
func NewConfigVal[T any](v T) ConfigVal[T] {
	return ConfigVal[T]{v: &v}
}

// ConfigVal is a wrapper for Config field value.
type ConfigVal[T any] struct {
	// Nil pointer means value was not specified.
	v *T
}

// Value will return wrapped value or zero value of T if not specified.
func (o *ConfigVal[T]) Value() T {
	if o.IsNil() {
		var v T
		return v
	}
	return *o.v
}

// IsNil check if wrapped value is nil.
func (o *ConfigVal[T]) IsNil() bool {
	return o.v == nil
}

// IsZero reports unspecified value, used by YAML omitempty.
func (o ConfigVal[T]) IsZero() bool {
	return o.v == nil
}

// UnmarshalJSON implements json.Unmarshaler interface for ConfigVal.
func (o *ConfigVal[T]) UnmarshalJSON(b []byte) error {
	var val T
	err := json.Unmarshal(b, &val)
	if err != nil {
		return err
	}
	o.v = &val
	return nil
}

// MarshalJSON implements json.Marshaler interface for ConfigVal.
func (o ConfigVal[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value())
}

// UnmarshalYAML implements yaml.Unmarshaler interface for ConfigVal.
func (o *ConfigVal[T]) UnmarshalYAML(node *yaml.Node) error {
	var val T
	if err := node.Decode(&val); err != nil {
		return err
	}
	o.v = &val
	return nil
}

// MarshalYAML implements yaml.Marshaler interface for ConfigVal.
func (o ConfigVal[T]) MarshalYAML() (any, error) {
	return o.Value(), nil
}

func CreateDumpConfCommand() *DumpConfApp {
	longHelp := `Command "dump-conf" will print actual application configuration taking into account
configuration file provided and default configuration values.

Examples:

	siti dump-conf
	siti dump-conf --conf path/to/config.yaml --format yaml`

	_ = longHelp // TODO: unused; Help() currently prints a shorter text

	app := &DumpConfApp{
		fs:  pflag.NewFlagSet("dump-conf", pflag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flFormat, "format", "json", "Output format: json or yaml")
	app.fs.Usage = app.Help

	return app
}

// Make sure DumpConfApp implements Commander interface.
var _ Commander = (*DumpConfApp)(nil)

// DumpConfApp is subcommand application context that implements Commander interface.
type DumpConfApp struct {
	out      io.Writer
	fs       *pflag.FlagSet
	gf       globalFlags
	flFormat string
}

func (d *DumpConfApp) Name() string {
	return d.fs.Name()
}

func (d *DumpConfApp) Help() {
	printSubCommandUsage(`Print effective configuration: defaults overridden by --conf file.`, d.fs)
}

// Run is main entry point into DumpConfApp execution.
func (d *DumpConfApp) Run(args []string) error {
	if err := d.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}

	if d.gf.Debug {
		logging.EnableDebugLogger()
	}

	cfg, err := LoadConfig(d.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	switch strings.ToLower(d.flFormat) {
	case "json":
		enc := json.NewEncoder(d.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(d.out)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	default:
		return &AppError{exitCode: 2, msg: fmt.Sprintf("unknown output format: %s", d.flFormat)}
	}
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// Also, report if configuration is valid.
	if err := cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	return nil
}
