package repos

import "errors"

var (
	ErrNotFound         = errors.New("repository not found")
	ErrConflict         = errors.New("repository already exists")
	ErrWorktreeNotFound = errors.New("worktree not found")
	ErrWorktreeConflict = errors.New("worktree already exists")
	ErrConfigNotFound   = errors.New("worktree config not found")
	ErrInvalidBranch    = errors.New("invalid branch name")
	ErrNotAllowed       = errors.New("operation not allowed")
)
