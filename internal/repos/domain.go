package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// WorktreeStatus is the lifecycle state of a worktree. Ready and Error are
// only reachable from Creating; deletion removes the record entirely.
type WorktreeStatus string

const (
	WorktreeStatusCreating WorktreeStatus = "creating" // Pipeline running, not yet usable
	WorktreeStatusReady    WorktreeStatus = "ready"    // Usable, status fields valid
	WorktreeStatusError    WorktreeStatus = "error"    // Pipeline failed, kept for inspection
	WorktreeStatusDeleting WorktreeStatus = "deleting" // Removal pipeline running
)

type RepositoryDraft struct {
	Provider      string // Host family, e.g. "github"
	Owner         string
	Name          string
	CloneURL      string
	LocalPath     string    // Root containing the bare store and all worktrees
	DefaultBranch string    // Placeholder until detected during clone
	LastSynced    time.Time // Zero until first successful sync
}

type Repository struct {
	RepositoryDraft

	ID        uuid.UUID
	CreatedAt time.Time
	DeletedAt *time.Time // Reserved for soft delete; current path hard-deletes
}

type WorktreeDraft struct {
	Path   string // Absolute path, primary key
	RepoID uuid.UUID
	Branch string
	Status WorktreeStatus
}

type Worktree struct {
	WorktreeDraft

	Head            string // HEAD commit id, empty until first status read
	CommitMessage   string // First line of the HEAD commit message
	Dirty           bool
	Ahead           int
	Behind          int
	LastStatusCheck *time.Time
	CreatedAt       time.Time
	DeletedAt       *time.Time // Reserved, unused by the current deletion path
}

// WorktreeConfig is the per-repository file-sharing policy.
type WorktreeConfig struct {
	RepoID          uuid.UUID
	SymlinkPatterns string // Comma-separated glob list, may be empty
	CopyPatterns    string
	UpstreamRemote  string
}

// SymlinkList returns the symlink patterns as a cleaned slice.
func (c *WorktreeConfig) SymlinkList() []string {
	return splitPatterns(c.SymlinkPatterns)
}

// CopyList returns the copy patterns as a cleaned slice.
func (c *WorktreeConfig) CopyList() []string {
	return splitPatterns(c.CopyPatterns)
}

type Config struct {
	// CodeDir is the root under which repositories live as <owner>/<name>.
	CodeDir string
	// UpstreamRemote is the remote name used for tracking, normally "origin".
	UpstreamRemote string

	// Default sharing policy written at the end of a successful clone.
	DefaultSymlinkPatterns string
	DefaultCopyPatterns    string
}

// ParsedURL is a remote URL broken into its addressable parts.
type ParsedURL struct {
	Provider string
	Owner    string
	Name     string
}

// WorktreeGitStatus is a point-in-time observation of a worktree's git state.
type WorktreeGitStatus struct {
	Branch        string
	Head          string
	CommitMessage string
	Dirty         bool
	Ahead         int
	Behind        int
}

// VersionControl is the contract the orchestrator needs from a
// version-control backend. All operations are blocking and must be invoked
// off the request path.
type VersionControl interface {
	// ParseURL parses an HTTPS-style or scp-style remote URL.
	ParseURL(url string) (ParsedURL, error)

	// CloneBare clones the remote as a bare repository at barePath.
	CloneBare(ctx context.Context, url, barePath string) error

	// ConfigureFetch sets the fetch refspec for the given remote.
	ConfigureFetch(repoPath, remote string) error

	// Fetch updates remote-tracking refs.
	Fetch(ctx context.Context, repoPath, remote string) error

	// Pull fast-forwards the worktree's current branch.
	Pull(ctx context.Context, worktreePath string) error

	// CreateWorktree adds a worktree for branch, preferring an existing
	// local ref, then an existing remote ref, then a brand-new branch.
	CreateWorktree(ctx context.Context, repoPath, worktreePath, branch, remote string) error

	// RemoveWorktree detaches a worktree from the repository.
	RemoveWorktree(ctx context.Context, repoPath, worktreePath string) error

	// DeleteLocalBranch removes a local branch ref.
	DeleteLocalBranch(ctx context.Context, repoPath, branch string) error

	// DetectDefaultBranch resolves the remote's default branch, assuming a
	// conventional name when detection fails.
	DetectDefaultBranch(ctx context.Context, repoPath, remote string) string

	// Status reads the current git state of a worktree.
	Status(ctx context.Context, worktreePath, remote string) (*WorktreeGitStatus, error)
}

// Installer runs dependency installation for detected package ecosystems.
// All failures are tolerated by the orchestrator.
type Installer interface {
	DetectManagers(dir string) []string
	Install(ctx context.Context, dir, manager string) error
}

// FileSharer propagates configured files from one worktree into another.
type FileSharer interface {
	Share(source, target string, symlinkPatterns, copyPatterns []string) error
}

// Notifier receives progress updates and store-change notifications from the
// pipelines and fans them out to observers. Keys are repository ids or
// worktree paths.
type Notifier interface {
	SetProgress(key, message string)
	ClearProgress(key string)
	NotifyChanged()
}
