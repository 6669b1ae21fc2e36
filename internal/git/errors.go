package git

import "errors"

var (
	ErrInvalidURL           = errors.New("invalid git url")
	ErrCloneFailed          = errors.New("failed to clone repository")
	ErrFetchFailed          = errors.New("failed to fetch repository")
	ErrPullFailed           = errors.New("failed to pull worktree")
	ErrRepositoryNotFound   = errors.New("repository not found")
	ErrWorktreeAddFailed    = errors.New("failed to add worktree")
	ErrWorktreeRemoveFailed = errors.New("failed to remove worktree")
	ErrStatusFailed         = errors.New("failed to read status")
)
