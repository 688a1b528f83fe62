package core

import "testing"

func TestGetVersionInfo(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, BuildTime, GitCommit
	t.Cleanup(func() { Version, BuildTime, GitCommit = oldVersion, oldBuild, oldCommit })

	Version, BuildTime, GitCommit = "v1.2.3", "2026-01-15T10:30:00Z", "abc1234"
	want := "v1.2.3 (built 2026-01-15T10:30:00Z, commit abc1234)"
	if got := GetVersionInfo(); got != want {
		t.Errorf("GetVersionInfo() = %q, want %q", got, want)
	}
	if got := UserAgent(); got != "lulu-studio/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
}
