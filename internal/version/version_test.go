package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func withLdflags(t *testing.T, version, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})
}

func TestGetInfo(t *testing.T) {
	withLdflags(t, "1.0.0", "abc123def456", "2024-01-01T12:00:00Z")
	withBuildInfo(t, nil)

	info := GetInfo()

	if info.Version != "1.0.0" {
		t.Errorf("GetInfo().Version = %v, want 1.0.0", info.Version)
	}
	if info.Commit != "abc123def456" {
		t.Errorf("GetInfo().Commit = %v, want abc123def456", info.Commit)
	}
	if info.Date != "2024-01-01T12:00:00Z" {
		t.Errorf("GetInfo().Date = %v, want 2024-01-01T12:00:00Z", info.Date)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GetInfo().GoVersion = %v, want %v", info.GoVersion, runtime.Version())
	}
	expectedPlatform := runtime.GOOS + "/" + runtime.GOARCH
	if info.Platform != expectedPlatform {
		t.Errorf("GetInfo().Platform = %v, want %v", info.Platform, expectedPlatform)
	}
}

func TestGetInfo_BuildInfoFallback(t *testing.T) {
	withLdflags(t, "dev", "unknown", "unknown")
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2024-05-01T12:00:00Z"},
		},
	})

	info := GetInfo()

	if info.Version != "v0.4.1" {
		t.Errorf("Expected module version, got %v", info.Version)
	}
	if info.Commit != "0123456789abcdef" {
		t.Errorf("Expected vcs revision, got %v", info.Commit)
	}
	if info.Date != "2024-05-01T12:00:00Z" {
		t.Errorf("Expected vcs time, got %v", info.Date)
	}
}

func TestGetInfo_LdflagsWin(t *testing.T) {
	withLdflags(t, "1.2.3", "feedface", "2024-01-01")
	withBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "v0.4.1"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "0123456789abcdef"}},
	})

	info := GetInfo()

	if info.Version != "1.2.3" || info.Commit != "feedface" {
		t.Errorf("Expected ldflags values to win, got %+v", info)
	}
}

func TestGetInfo_DevelBuild(t *testing.T) {
	withLdflags(t, "dev", "unknown", "unknown")
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})

	if got := GetInfo().Version; got != "dev" {
		t.Errorf("Expected dev for a (devel) build, got %v", got)
	}
}

func TestInfoString(t *testing.T) {
	info := Info{
		Version:   "1.0.0",
		Commit:    "abc123def456",
		Date:      "2024-01-01",
		GoVersion: "go1.24.0",
		Platform:  "linux/amd64",
	}

	want := "Blueprint 1.0.0 (abc123de) built 2024-01-01 with go1.24.0 for linux/amd64"
	if got := info.String(); got != want {
		t.Errorf("Info.String() = %q, want %q", got, want)
	}

	info.Commit = "abc"
	if !strings.Contains(info.String(), "(abc)") {
		t.Errorf("Expected short commit unchanged, got %v", info.String())
	}
}

func TestInfoShortAndUserAgent(t *testing.T) {
	info := Info{Version: "2.0.0-beta"}

	if info.Short() != "2.0.0-beta" {
		t.Errorf("Info.Short() = %v, want 2.0.0-beta", info.Short())
	}
	if info.UserAgent() != "blueprint/2.0.0-beta" {
		t.Errorf("Info.UserAgent() = %v", info.UserAgent())
	}
}
