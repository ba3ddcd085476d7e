package version

import (
	"strings"
	"testing"
)

// setBuildInfo overrides the ldflags variables for one test.
func setBuildInfo(t *testing.T, version, commit, buildDate string) {
	t.Helper()
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
	})
	Version, Commit, BuildDate = version, commit, buildDate
}

func TestInfo(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"unknown", "0.9.1"},
		{"abc", "0.9.1"},
		{"1234567", "0.9.1"},
		{"12345678", "0.9.1 (1234567)"},
		{"d34db33fcafe", "0.9.1 (d34db33)"},
	}

	for _, tt := range tests {
		t.Run(tt.commit, func(t *testing.T) {
			setBuildInfo(t, "0.9.1", tt.commit, "unknown")
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	setBuildInfo(t, "1.2.3", "abcdef123456", "2026-03-01")

	lines := strings.Split(Full(), "\n")
	want := []string{"diaghost version 1.2.3", "Commit: abcdef123456", "Built: 2026-03-01"}
	if len(lines) != len(want) {
		t.Fatalf("Full() has %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestVersionIsSemver(t *testing.T) {
	if parts := strings.Split(Version, "."); len(parts) != 3 {
		t.Errorf("Version %q is not major.minor.patch", Version)
	}
}
