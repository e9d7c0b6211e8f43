// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Main entrypoint for siti application

package main

import (
	"fmt"
	"os"

	"github.com/evolution-gaming/siti/internal/logging"
)

const usage = `siti - Spatial and Temporal Information of videos

Usage:

    siti [run] [flags] video...
    siti <command> [arguments] [-h|--help]

The commands are:

    run         compute per-frame SI and TI of videos into CSV report (default)
    dump-conf   output actual application configuration
    version     print siti version and exit

Use "siti <command> -h|--help" for more information about command.`

// root represents top level of siti command, including dispatching to subcommands.
//
// Arguments not starting with a known command are passed to "run".
func root(args []string) error {
	if len(args) < 1 {
		fmt.Println(usage)
		return &AppError{msg: "please, specify videos to analyse", exitCode: 2}
	}

	switch args[0] {
	case "run":
		return CreateRunCommand().Run(args[1:])
	case "dump-conf", "dump":
		return CreateDumpConfCommand().Run(args[1:])
	case "version":
		printVersion(os.Stdout)
		return nil
	case "-h", "-help", "--help", "help", "?":
		fmt.Println(usage)
		return &AppError{
			exitCode: 2,
		}
	default:
		return CreateRunCommand().Run(args)
	}
}

func main() {
	// Enable info logger by default and early enough.
	logging.EnableInfoLogger()

	if err := root(os.Args[1:]); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "%v\n", msg)
		}
		switch e := err.(type) {
		case *AppError:
			os.Exit(e.ExitCode())
		default:
			os.Exit(1)
		}
	}
	os.Exit(0)
}
