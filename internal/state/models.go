package state

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/arbor-dev/arbor/internal/repos"
)

// FullState is the complete observable state of the system: every repository
// with its worktrees, plus whatever progress text is live right now.
type FullState struct {
	Repositories []RepositorySnapshot `json:"repositories"`
	Progress     map[string]string    `json:"progress"`
}

type RepositorySnapshot struct {
	ID            uuid.UUID          `json:"id"`
	Provider      string             `json:"provider"`
	Owner         string             `json:"owner"`
	Name          string             `json:"name"`
	CloneURL      string             `json:"clone_url"`
	LocalPath     string             `json:"local_path"`
	DefaultBranch string             `json:"default_branch"`
	LastSynced    time.Time          `json:"last_synced"`
	CreatedAt     time.Time          `json:"created_at"`
	Worktrees     []WorktreeSnapshot `json:"worktrees"`
}

type WorktreeSnapshot struct {
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

func newRepositorySnapshot(repo repos.Repository, worktrees []repos.Worktree) RepositorySnapshot {
	return RepositorySnapshot{
		ID:            repo.ID,
		Provider:      repo.Provider,
		Owner:         repo.Owner,
		Name:          repo.Name,
		CloneURL:      repo.CloneURL,
		LocalPath:     repo.LocalPath,
		DefaultBranch: repo.DefaultBranch,
		LastSynced:    repo.LastSynced,
		CreatedAt:     repo.CreatedAt,
		Worktrees:     lo.Map(worktrees, func(w repos.Worktree, _ int) WorktreeSnapshot { return newWorktreeSnapshot(w) }),
	}
}

func newWorktreeSnapshot(worktree repos.Worktree) WorktreeSnapshot {
	return WorktreeSnapshot{
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
