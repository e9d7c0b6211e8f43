// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of siti application and subcommand infrastructure.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/evolution-gaming/siti/internal/logging"
	"github.com/evolution-gaming/siti/internal/report"
	"github.com/spf13/pflag"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
	Name() string
	Help()
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// printSubCommandUsage helper to format and print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *pflag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// writeFile creates (or truncates) file at fPath and passes it to write.
func writeFile(fPath string, write func(w io.Writer) error) error {
	fd, err := os.Create(fPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", fPath, err)
	}
	if err := write(fd); err != nil {
		fd.Close()
		return fmt.Errorf("writing %s: %w", fPath, err)
	}
	if err := fd.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", fPath, err)
	}
	return nil
}

// logFailures logs every failed video with its reason.
func logFailures(failures []report.Failure) {
	for _, f := range failures {
		logging.Errorf("Video %s failed: %s", f.Video, f.Reason)
	}
}

// fileExists reports if path exists and is a regular file.
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
