// Package version reports the build version of termdeck.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/termdeck"

// buildVersion is set via -ldflags "-X pkt.systems/termdeck/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// String renders the module and version on one line.
func (i Info) String() string {
	out := i.Module + " " + i.Version
	if i.Dirty && !strings.HasSuffix(i.Version, "+dirty") {
		out += "+dirty"
	}
	return out
}

// Read returns the build information of the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return readInfo(info)
}

// Current returns the best available version string.
func Current() string {
	return Read().Version
}

// Module returns the module path from build info when available.
func Module() string {
	return Read().Module
}

func readInfo(info *debug.BuildInfo) Info {
	out := Info{Module: defaultModule, Version: "v0.0.0-unknown"}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		vcs := readVCS(info)
		out.Revision, out.Time, out.Dirty = vcs.revision, vcs.time, vcs.modified
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			out.Version = strings.TrimSuffix(v, "+dirty")
		} else if pseudo := vcs.pseudo(); pseudo != "" {
			out.Version = pseudo
		}
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		out.Version = strings.TrimSuffix(v, "+dirty")
	}
	return out
}

type vcsInfo struct {
	revision string
	time     time.Time
	modified bool
}

func readVCS(info *debug.BuildInfo) vcsInfo {
	var out vcsInfo
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			out.revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				out.time = parsed.UTC()
			}
		case "vcs.modified":
			out.modified = setting.Value == "true"
		}
	}
	return out
}

func (v vcsInfo) pseudo() string {
	if v.revision == "" || v.time.IsZero() {
		return ""
	}
	rev := v.revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return "v0.0.0-" + v.time.Format("20060102150405") + "-" + rev
}
