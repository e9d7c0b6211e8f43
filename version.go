// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application version string.
//
// Version comes either from -ldflags="-X main.version={ver}" or, for binaries
// installed with "go install", from embedded debug.BuildInfo.

package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	version string
	vInfo   = readVersionInfo(version)
)

// versionInfo is struct that includes relevant version information.
type versionInfo struct {
	time     time.Time
	version  string
	revision string
	modified bool
}

// readVersionInfo merges injected version with module build information.
func readVersionInfo(injected string) versionInfo {
	v := versionInfo{version: injected}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if v.version == "" {
			v.version = "(devel)"
		}
		return v
	}
	if v.version == "" {
		v.version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time, _ = time.Parse(time.RFC3339, s.Value)
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

func (v versionInfo) String() string {
	s := v.version
	if v.revision != "" {
		s = fmt.Sprintf("%s %s", s, v.revision)
	}
	if v.modified {
		s += "-dirty"
	}
	if !v.time.IsZero() {
		s = fmt.Sprintf("%s (%s)", s, v.time.Format(time.DateOnly))
	}
	return s
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "siti %s %s/%s %s\n", vInfo, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
