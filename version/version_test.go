package version

import (
	"strings"
	"testing"
	"time"
)

func withBuild(t *testing.T, version, commit, branch, buildTime, goVersion string) {
	t.Helper()
	orig := [...]string{Version, GitCommit, GitBranch, BuildTime, GoVersion}
	t.Cleanup(func() {
		Version, GitCommit, GitBranch, BuildTime, GoVersion = orig[0], orig[1], orig[2], orig[3], orig[4]
	})
	Version, GitCommit, GitBranch, BuildTime, GoVersion = version, commit, branch, buildTime, goVersion
}

func TestGet_LinkTimeValues(t *testing.T) {
	withBuild(t, "1.2.0", "abc1234def", "main", "2026-01-15T10:30:00Z", "go1.26.0")

	info := Get()
	if info.Version != "1.2.0" {
		t.Errorf("expected 1.2.0, got %q", info.Version)
	}
	if info.GitCommit != "abc1234" {
		t.Errorf("expected commit shortened to abc1234, got %q", info.GitCommit)
	}
	if info.GoVersion != "go1.26.0" {
		t.Errorf("expected go1.26.0, got %q", info.GoVersion)
	}
	if info.BuildDate.Year() != 2026 {
		t.Errorf("expected build year 2026, got %d", info.BuildDate.Year())
	}
}

func TestGet_Defaults(t *testing.T) {
	withBuild(t, "dev", "", "", "", "")

	info := Get()
	if info.Version != "dev" || info.Release() {
		t.Errorf("dev build must not be a release: %+v", info)
	}
	if info.GoVersion == "" {
		t.Error("expected Go version from build info")
	}
}

func TestParseTime(t *testing.T) {
	if !parseTime("yesterday").IsZero() || !parseTime("").IsZero() {
		t.Error("invalid build time must yield the zero time")
	}
	if got := parseTime("2026-03-01T12:00:00+02:00"); got.Hour() != 10 || got.Location() != time.UTC {
		t.Errorf("expected UTC conversion, got %v", got)
	}
}

func TestInfo_Short(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", GitCommit: "abc1234"}, "1.0.0-abc1234"},
		{Info{Version: "1.0.0", GitCommit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("Short() = %q, want %q", got, tt.want)
		}
	}
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "1.0.0", GitCommit: "abc1234", GitBranch: "main", BuildDate: parseTime("2026-01-15T10:30:00Z"), GoVersion: "go1.26.0"}
	s := info.String()
	if strings.Contains(s, "main") {
		t.Errorf("main branch must be omitted, got %q", s)
	}
	if !strings.Contains(s, "built 2026-01-15T10:30:00Z") || !strings.HasPrefix(s, "1.0.0-abc1234") {
		t.Errorf("unexpected version string %q", s)
	}

	info.GitBranch = "feature/blocks"
	if !strings.Contains(info.String(), "(feature/blocks)") {
		t.Errorf("expected feature branch, got %q", info.String())
	}
}

func TestInfo_Release(t *testing.T) {
	if !(Info{Version: "1.0.0"}).Release() {
		t.Error("clean tagged build is a release")
	}
	if (Info{Version: "1.0.0", Dirty: true}).Release() {
		t.Error("dirty tree is not a release")
	}
	if (Info{Version: "1.0.0-dirty"}).Release() {
		t.Error("dirty version is not a release")
	}
}

func TestInfo_Fields(t *testing.T) {
	f := Info{Version: "1.0.0", GoVersion: "go1.26.0"}.Fields()
	if f["version"] != "1.0.0" || f["go_version"] != "go1.26.0" {
		t.Errorf("unexpected fields %v", f)
	}
	if _, ok := f["git_commit"]; ok {
		t.Error("empty commit must be omitted")
	}
	if f := (Info{Version: "1", GitCommit: "abc", Dirty: true}).Fields(); f["git_commit"] != "abc" || f["dirty"] != true {
		t.Errorf("unexpected fields %v", f)
	}
}
