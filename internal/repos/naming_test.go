package repos

import (
	"strings"
	"testing"
)

func TestSanitizeBranchName(t *testing.T) {
	tests := []struct {
		branch string
		want   string
	}{
		{"main", ".main"},
		{"feature/foo", "feature--foo"},
		{"feature/foo/bar", "feature--foo--bar"},
		{"release-1.2.3", "release-1.2.3"},
		{"../etc/passwd", "__--etc--passwd"},
		{"a..b", "a__b"},
		{"héllo wörld", "hllowrld"},
		{"fix_underscore", "fix_underscore"},
	}

	for _, tt := range tests {
		got := SanitizeBranchName(tt.branch, "main")
		if got != tt.want {
			t.Errorf("SanitizeBranchName(%q) = %q, want %q", tt.branch, got, tt.want)
		}
	}
}

func TestSanitizeBranchNameDefault(t *testing.T) {
	for _, branch := range []string{"main", "master", "develop"} {
		if got := SanitizeBranchName(branch, branch); got != PrimaryWorktreeName {
			t.Errorf("SanitizeBranchName(%q, %q) = %q, want %q", branch, branch, got, PrimaryWorktreeName)
		}
	}
}

// Dropping disallowed characters must never splice two dots back together.
func TestSanitizeBranchNameNeverContainsDotDot(t *testing.T) {
	inputs := []string{
		"a.%.b",
		".%2e/secret",
		"..%2f..%2fescape",
		"x. .y",
		"....",
		"a/../b",
	}

	for _, branch := range inputs {
		got := SanitizeBranchName(branch, "main")
		if strings.Contains(got, "..") {
			t.Errorf("SanitizeBranchName(%q) = %q contains %q", branch, got, "..")
		}
		for _, r := range got {
			ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
				r == '.' || r == '_' || r == '-'
			if !ok {
				t.Errorf("SanitizeBranchName(%q) = %q contains disallowed %q", branch, got, r)
			}
		}
	}
}
