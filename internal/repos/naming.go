package repos

import (
	"strings"

	"github.com/samber/lo"
)

const (
	// PrimaryWorktreeName is the reserved directory name of the
	// default-branch worktree.
	PrimaryWorktreeName = ".main"

	// BareDirName is the directory holding the shared bare object store
	// inside a repository root.
	BareDirName = ".bare"

	// GitPointerFile resolves the repository root to the bare store so git
	// commands work from the root itself.
	GitPointerFile    = ".git"
	GitPointerContent = "gitdir: ./" + BareDirName + "\n"
)

// SanitizeBranchName maps a branch name onto a filesystem-safe directory
// name. The default branch always maps to the reserved primary name; any
// other branch has ".." neutralized, "/" flattened to "--", and every
// character outside [A-Za-z0-9._-] dropped.
func SanitizeBranchName(branch, defaultBranch string) string {
	if branch == defaultBranch {
		return PrimaryWorktreeName
	}

	replaced := strings.ReplaceAll(branch, "..", "__")
	replaced = strings.ReplaceAll(replaced, "/", "--")

	var b strings.Builder
	for _, r := range replaced {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	// Dropping characters can splice two dots back together.
	return strings.ReplaceAll(b.String(), "..", "__")
}

func splitPatterns(patterns string) []string {
	parts := lo.Map(strings.Split(patterns, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	})

	return lo.Filter(parts, func(p string, _ int) bool { return p != "" })
}
