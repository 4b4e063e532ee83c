// Package version holds build metadata injected through -ldflags.
package version

import "runtime/debug"

// Build metadata, overridden with
// -ldflags "-X github.com/Sumatoshi-tech/poolscope/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills Version and Commit from the embedded build info
// when they were not set by the linker.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && Commit == "none" {
			Commit = s.Value
		}

		if s.Key == "vcs.time" && Date == "unknown" {
			Date = s.Value
		}
	}
}

// String formats the build metadata for display.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
