package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	old := readBuildInfo
	t.Cleanup(func() { readBuildInfo = old })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func setVars(t *testing.T, v, commit, date string) {
	t.Helper()
	oldV, oldC, oldD := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldV, oldC, oldD })
	Version, GitCommit, BuildDate = v, commit, date
}

func TestStringUsesLinkerValues(t *testing.T) {
	setVars(t, "1.2.3", "abc123", "2026-01-02")
	stubBuildInfo(t, debug.BuildSetting{Key: "vcs.revision", Value: "ignored"})

	s := String()
	assert.Contains(t, s, "barcodekit version 1.2.3\n")
	assert.Contains(t, s, "Commit: abc123\n")
	assert.Contains(t, s, "Date: 2026-01-02\n")
	assert.Contains(t, s, runtime.Version())
}

func TestInfoFallsBackToVCSStamp(t *testing.T) {
	setVars(t, "dev", "unknown", "unknown")
	stubBuildInfo(t,
		debug.BuildSetting{Key: "vcs.revision", Value: "deadbeef"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
	)

	v, c, d := Info()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "deadbeef", c)
	assert.Equal(t, "2026-03-04T05:06:07Z", d)
}

func TestInfoWithoutBuildInfo(t *testing.T) {
	setVars(t, "dev", "unknown", "unknown")
	old := readBuildInfo
	t.Cleanup(func() { readBuildInfo = old })
	readBuildInfo = func() (*debug.BuildInfo, bool) { return nil, false }

	_, c, d := Info()
	assert.Equal(t, "unknown", c)
	assert.Equal(t, "unknown", d)
}
