package repositories

import (
	"time"

	"github.com/google/uuid"

	"github.com/arbor-dev/arbor/internal/repos"
)

// POSTRequest represents the request payload for cloning a repository.
type POSTRequest struct {
	URL         string `json:"url"          validate:"required,min=1,max=1024"`
	SkipInstall bool   `json:"skip_install"`
}

// POSTWorktreeRequest represents the request payload for creating a worktree.
type POSTWorktreeRequest struct {
	Branch      string `json:"branch"       validate:"required,min=1,max=255"`
	SkipInstall bool   `json:"skip_install"`
}

// PUTConfigRequest represents the request payload for replacing a
// repository's sharing config.
type PUTConfigRequest struct {
	SymlinkPatterns string `json:"symlink_patterns" validate:"max=4096"`
	CopyPatterns    string `json:"copy_patterns"    validate:"max=4096"`
	UpstreamRemote  string `json:"upstream_remote"  validate:"omitempty,min=1,max=255"`
}

// RepositoryResponse represents the response payload for a repository.
type RepositoryResponse struct {
	ID            uuid.UUID `json:"id"`
	Provider      string    `json:"provider"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	CloneURL      string    `json:"clone_url"`
	LocalPath     string    `json:"local_path"`
	DefaultBranch string    `json:"default_branch"`
	LastSynced    time.Time `json:"last_synced"`
	CreatedAt     time.Time `json:"created_at"`
}

// WorktreeResponse represents the response payload for a worktree.
type WorktreeResponse struct {
	Path            string     `json:"path"`
	RepoID          uuid.UUID  `json:"repo_id"`
	Branch          string     `json:"branch"`
	Head            string     `json:"head,omitempty"`
	Status          string     `json:"status"`
	CommitMessage   string     `json:"commit_message,omitempty"`
	Dirty           bool       `json:"dirty"`
	Ahead           int        `json:"ahead"`
	Behind          int        `json:"behind"`
	LastStatusCheck *time.Time `json:"last_status_check,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ConfigResponse represents the response payload for a sharing config.
type ConfigResponse struct {
	RepoID          uuid.UUID `json:"repo_id"`
	SymlinkPatterns string    `json:"symlink_patterns"`
	CopyPatterns    string    `json:"copy_patterns"`
	UpstreamRemote  string    `json:"upstream_remote"`
}

func newRepositoryResponse(repo *repos.Repository) RepositoryResponse {
	return RepositoryResponse{
		ID:            repo.ID,
		Provider:      repo.Provider,
		Owner:         repo.Owner,
		Name:          repo.Name,
		CloneURL:      repo.CloneURL,
		LocalPath:     repo.LocalPath,
		DefaultBranch: repo.DefaultBranch,
		LastSynced:    repo.LastSynced,
		CreatedAt:     repo.CreatedAt,
	}
}

func newWorktreeResponse(worktree *repos.Worktree) WorktreeResponse {
	return WorktreeResponse{
		Path:            worktree.Path,
		RepoID:          worktree.RepoID,
		Branch:          worktree.Branch,
		Head:            worktree.Head,
		Status:          string(worktree.Status),
		CommitMessage:   worktree.CommitMessage,
		Dirty:           worktree.Dirty,
		Ahead:           worktree.Ahead,
		Behind:          worktree.Behind,
		LastStatusCheck: worktree.LastStatusCheck,
		CreatedAt:       worktree.CreatedAt,
	}
}

func newConfigResponse(config *repos.WorktreeConfig) ConfigResponse {
	return ConfigResponse{
		RepoID:          config.RepoID,
		SymlinkPatterns: config.SymlinkPatterns,
		CopyPatterns:    config.CopyPatterns,
		UpstreamRemote:  config.UpstreamRemote,
	}
}
