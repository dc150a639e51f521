package version

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestBuildVersionWins(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
}

func TestReadInfoPseudoVersion(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := readInfo(&debug.BuildInfo{
		Main: debug.Module{Path: "example.com/deck", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if info.Module != "example.com/deck" {
		t.Fatalf("unexpected module %q", info.Module)
	}
	if info.Version != "v0.0.0-20250102030405-1234567890ab" {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if !info.Dirty || !info.Time.Equal(ts) {
		t.Fatalf("unexpected vcs info: %#v", info)
	}
	if got := info.String(); got != "example.com/deck v0.0.0-20250102030405-1234567890ab+dirty" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestReadInfoWithoutBuildInfo(t *testing.T) {
	info := readInfo(nil)
	if info.Module != defaultModule || info.Version != "v0.0.0-unknown" {
		t.Fatalf("unexpected fallback: %#v", info)
	}
}
