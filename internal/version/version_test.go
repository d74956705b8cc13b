package version

import (
	"testing"

	"github.com/fatih/color"
)

func withValues(t *testing.T, v, commit, date string) {
	t.Helper()
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	origNoColor := color.NoColor
	t.Cleanup(func() {
		Version, GitCommit, BuildDate = origVersion, origCommit, origDate
		color.NoColor = origNoColor
	})
	Version, GitCommit, BuildDate = v, commit, date
	color.NoColor = true
}

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored_PlainWhenNoColor(t *testing.T) {
	cases := []string{"0.1.0-dev", "1.2.3", "1.2.3-rc.1+build.123", "weird"}
	for _, v := range cases {
		withValues(t, v, "", "")
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
}

func TestInfo(t *testing.T) {
	withValues(t, "1.2.3", "abc123", "2024-01-15T10:30:00Z")
	want := "rivet 1.2.3 (abc123) built 2024-01-15T10:30:00Z"
	if got := Info(); got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	withValues(t, "1.2.3", "", "")
	if got := Info(); got != "rivet 1.2.3" {
		t.Errorf("Info() = %q", got)
	}
}
