package version

import (
	"runtime/debug"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	withVCS := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "v0.3.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
		}, true
	}
	devel := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}
	none := func() (*debug.BuildInfo, bool) { return nil, false }

	tests := []struct {
		name          string
		v, c, b       string
		read          func() (*debug.BuildInfo, bool)
		wantVersion   string
		wantCommit    string
		wantBuildTime string
	}{
		{"ldflags win", "1.2.0", "abc", "today", withVCS, "1.2.0", "abc", "today"},
		{"module info fills gaps", "", "", "", withVCS, "v0.3.1", "0123456789abcdef0123", "2026-01-02T03:04:05Z"},
		{"devel build", "", "", "", devel, "dev", "", ""},
		{"no build info", "", "", "", none, "dev", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.v, tt.c, tt.b, tt.read)
			if got.Version != tt.wantVersion || got.Commit != tt.wantCommit || got.BuildTime != tt.wantBuildTime {
				t.Fatalf("got %+v", got)
			}
			if got.GoVersion == "" {
				t.Fatal("go version missing")
			}
		})
	}
}

func TestShortCommit(t *testing.T) {
	t.Parallel()

	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
