// Package version carries build metadata for the autoscan binary.
package version

import (
	"runtime/debug"
)

const unknown = "unknown"

// Set at link time with -ldflags "-X github.com/Sumatoshi-tech/autoscan/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills values left unset by the linker from the module
// build info, so `go install` builds still report something useful.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	fromBuildInfo(info)
}

func fromBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == unknown && s.Value != "" {
				Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if Date == unknown && s.Value != "" {
				Date = s.Value
			}
		}
	}
}

func shortRevision(rev string) string {
	const short = 12

	if len(rev) > short {
		return rev[:short]
	}

	return rev
}
