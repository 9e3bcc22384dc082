// Package version holds build metadata injected with -ldflags "-X".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info returns version, commit and build date. When the binary was built
// without ldflags the commit and date fall back to the VCS stamp the Go
// toolchain embeds.
func Info() (string, string, string) {
	commit, date := GitCommit, BuildDate
	if commit != "unknown" && date != "unknown" {
		return Version, commit, date
	}
	bi, ok := readBuildInfo()
	if !ok {
		return Version, commit, date
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && commit == "unknown":
			commit = s.Value
		case s.Key == "vcs.time" && date == "unknown":
			date = s.Value
		}
	}
	return Version, commit, date
}

// String renders the multi-line banner printed by --version.
func String() string {
	v, commit, date := Info()
	return fmt.Sprintf("barcodekit version %s\nCommit: %s\nDate: %s\nGo: %s %s/%s\n",
		v, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
