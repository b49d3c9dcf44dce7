// Package version reports build information. The variables are set with
// -ldflags "-X github.com/samcharles93/gltr/internal/version.Version=...".
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	Version   = ""
	Commit    = ""
	BuildTime = ""
)

// devVersion is reported when neither ldflags nor module info name a version.
const devVersion = "dev"

type Info struct {
	Version   string
	Commit    string
	BuildTime string
	GoVersion string
}

// Resolve merges the ldflags values with what the Go toolchain embedded in
// the binary. ldflags win.
func Resolve() Info {
	return resolve(Version, Commit, BuildTime, readBuildInfo)
}

func readBuildInfo() (*debug.BuildInfo, bool) { return debug.ReadBuildInfo() }

func resolve(v, commit, built string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: v, Commit: commit, BuildTime: built, GoVersion: runtime.Version()}
	if bi, ok := read(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = devVersion
	}
	return info
}

// String is the one-line form used in logs.
func String() string {
	info := Resolve()
	if info.Commit == "" {
		return info.Version
	}
	return info.Version + " (" + shortCommit(info.Commit) + ")"
}

func shortCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}
