// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/katrix/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// stamp is the commit information resolved from ldflags or the
// embedded build info.
type stamp struct {
	commit string
	dirty  bool
	time   string
}

func resolve(info *debug.BuildInfo, ok bool) stamp {
	resolved := stamp{commit: GitCommit, time: BuildTime}
	if GitCommit != "unknown" || !ok {
		return resolved
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			resolved.commit = setting.Value
			if len(resolved.commit) > 12 {
				resolved.commit = resolved.commit[:12]
			}
		case "vcs.modified":
			resolved.dirty = setting.Value == "true"
		case "vcs.time":
			if resolved.time == "unknown" {
				resolved.time = setting.Value
			}
		}
	}
	return resolved
}

func current() stamp {
	return resolve(debug.ReadBuildInfo())
}

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return current().format()
}

func (s stamp) format() string {
	dirty := ""
	if s.dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, s.commit, dirty, s.time)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
