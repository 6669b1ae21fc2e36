package git

import "time"

type Config struct {
	// Timeout bounds local plumbing commands (ref probes, status queries,
	// worktree mutations). Network operations are deliberately unbounded.
	Timeout time.Duration
}
