package git

// ParsedURL is a remote URL broken into its addressable parts.
type ParsedURL struct {
	Provider string // Host family, e.g. "github"
	Owner    string // Owning user or organization
	Name     string // Repository name
	URL      string // Original URL as given
}

// Status is the observed state of a single worktree.
type Status struct {
	Branch        string // Current branch name, "HEAD" when detached
	Head          string // HEAD commit id, empty when unborn
	CommitMessage string // First line of the HEAD commit message
	Dirty         bool   // Working tree has uncommitted changes
	Ahead         int    // Commits on HEAD not on upstream
	Behind        int    // Commits on upstream not on HEAD
}
