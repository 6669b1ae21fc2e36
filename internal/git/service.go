package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"go.uber.org/zap"
)

// Service drives git against local repositories. Clone, fetch and status go
// through go-git; worktree mutations and ref probes shell out to the git CLI,
// which go-git does not cover.
type Service struct {
	config Config
	logger *zap.Logger
}

func NewService(config Config, logger *zap.Logger) *Service {
	return &Service{
		config: config,
		logger: logger,
	}
}

// CloneBare clones the remote as a bare repository at barePath.
func (s *Service) CloneBare(ctx context.Context, url, barePath string) error {
	s.logger.Info("cloning repository",
		zap.String("url", url),
		zap.String("directory", barePath))

	_, err := gogit.PlainCloneContext(ctx, barePath, &gogit.CloneOptions{
		URL:  url,
		Bare: true,
	})
	if err != nil {
		s.logger.Error("failed to clone repository", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCloneFailed, err)
	}

	return nil
}

// ConfigureFetch points the remote's fetch refspec at the standard
// remote-tracking layout so later fetches populate refs/remotes/<remote>/*.
func (s *Service) ConfigureFetch(repoPath, remote string) error {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}

	rc, ok := cfg.Remotes[remote]
	if !ok {
		return fmt.Errorf("%w: remote %q is not configured", ErrRepositoryNotFound, remote)
	}

	rc.Fetch = []gitconfig.RefSpec{
		gitconfig.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", remote)),
	}

	if err := repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("failed to write repository config: %w", err)
	}

	return nil
}

// Fetch updates remote-tracking refs from the given remote.
func (s *Service) Fetch(ctx context.Context, repoPath, remote string) error {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
	}

	err = repo.FetchContext(ctx, &gogit.FetchOptions{RemoteName: remote})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		s.logger.Error("failed to fetch repository", zap.String("path", repoPath), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return nil
}

// Pull fast-forwards the worktree's current branch.
func (s *Service) Pull(ctx context.Context, worktreePath string) error {
	if _, err := s.gitUnbounded(ctx, worktreePath, "pull", "--ff-only"); err != nil {
		return fmt.Errorf("%w: %w", ErrPullFailed, err)
	}

	return nil
}

// CreateWorktree adds a worktree for branch, deciding how to materialize the
// branch from local and remote ref existence:
//
//  1. local branch exists: check it out, then best-effort attach upstream
//  2. only a remote-tracking ref exists: new local branch tracking it
//  3. neither exists: brand-new branch with no upstream
//
// The order matters: resuming a branch already present locally wins over
// blindly tracking upstream.
func (s *Service) CreateWorktree(ctx context.Context, repoPath, worktreePath, branch, remote string) error {
	remoteRef := remote + "/" + branch

	localExists := s.refExists(ctx, repoPath, "refs/heads/"+branch)
	remoteExists := s.refExists(ctx, repoPath, "refs/remotes/"+remoteRef)

	s.logger.Info("creating worktree",
		zap.String("path", worktreePath),
		zap.String("branch", branch),
		zap.Bool("local_ref", localExists),
		zap.Bool("remote_ref", remoteExists))

	switch {
	case localExists:
		if _, err := s.git(ctx, repoPath, "worktree", "add", worktreePath, branch); err != nil {
			return fmt.Errorf("%w: %w", ErrWorktreeAddFailed, err)
		}

		if remoteExists {
			if _, err := s.git(ctx, worktreePath, "branch", "--set-upstream-to", remoteRef, branch); err != nil {
				s.logger.Warn("failed to set upstream", zap.String("branch", branch), zap.Error(err))
			}
		}

	case remoteExists:
		if _, err := s.git(ctx, repoPath, "worktree", "add", "--track", "-b", branch, worktreePath, remoteRef); err != nil {
			return fmt.Errorf("%w: %w", ErrWorktreeAddFailed, err)
		}

	default:
		if _, err := s.git(ctx, repoPath, "worktree", "add", "-b", branch, worktreePath); err != nil {
			return fmt.Errorf("%w: %w", ErrWorktreeAddFailed, err)
		}
	}

	return nil
}

// RemoveWorktree detaches the worktree from the repository, forcing removal
// even when the tree is dirty.
func (s *Service) RemoveWorktree(ctx context.Context, repoPath, worktreePath string) error {
	if _, err := s.git(ctx, repoPath, "worktree", "remove", worktreePath, "--force"); err != nil {
		return fmt.Errorf("%w: %w", ErrWorktreeRemoveFailed, err)
	}

	return nil
}

// DeleteLocalBranch removes a local branch ref. A bare clone materializes a
// local ref for the remote HEAD branch; that ref must go before a worktree
// can check the branch out.
func (s *Service) DeleteLocalBranch(ctx context.Context, repoPath, branch string) error {
	if _, err := s.git(ctx, repoPath, "branch", "-D", branch); err != nil {
		return err
	}

	return nil
}

// DetectDefaultBranch resolves the remote's default branch. Primary signal is
// the local symbolic ref for the remote HEAD; secondary is asking the remote
// directly; when both fail the conventional "main" is assumed.
func (s *Service) DetectDefaultBranch(ctx context.Context, repoPath, remote string) string {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		s.logger.Warn("failed to open repository for default branch detection", zap.Error(err))
		return "main"
	}

	headRef := plumbing.ReferenceName("refs/remotes/" + remote + "/HEAD")
	if ref, refErr := repo.Reference(headRef, false); refErr == nil && ref.Type() == plumbing.SymbolicReference {
		if branch, ok := strings.CutPrefix(ref.Target().String(), "refs/remotes/"+remote+"/"); ok && branch != "" {
			return branch
		}
	}

	if rem, remErr := repo.Remote(remote); remErr == nil {
		refs, listErr := rem.ListContext(ctx, &gogit.ListOptions{})
		if listErr != nil {
			s.logger.Warn("failed to list remote refs", zap.Error(listErr))
		}
		for _, ref := range refs {
			if ref.Name() != plumbing.HEAD || ref.Type() != plumbing.SymbolicReference {
				continue
			}
			if branch, ok := strings.CutPrefix(ref.Target().String(), "refs/heads/"); ok && branch != "" {
				return branch
			}
		}
	}

	return "main"
}

// Status reads branch, head, dirtiness and ahead/behind counts for a
// worktree. Ahead/behind fall back to zero when the branch has no upstream.
func (s *Service) Status(ctx context.Context, worktreePath, remote string) (*Status, error) {
	repo, err := gogit.PlainOpen(worktreePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepositoryNotFound, err)
	}

	status := &Status{Branch: "HEAD"}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}

	if head.Name().IsBranch() {
		status.Branch = head.Name().Short()
	}
	status.Head = head.Hash().String()

	if commit, commitErr := repo.CommitObject(head.Hash()); commitErr == nil {
		status.CommitMessage, _, _ = strings.Cut(commit.Message, "\n")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}

	wtStatus, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}
	status.Dirty = !wtStatus.IsClean()

	status.Ahead, status.Behind = s.aheadBehind(ctx, worktreePath, remote, status.Branch)

	return status, nil
}

// aheadBehind counts commits on each side of the symmetric difference with
// the remote-tracking branch. Absence of an upstream reads as (0, 0).
func (s *Service) aheadBehind(ctx context.Context, worktreePath, remote, branch string) (int, int) {
	out, err := s.git(ctx, worktreePath,
		"rev-list", "--left-right", "--count", remote+"/"+branch+"...HEAD")
	if err != nil {
		return 0, 0
	}

	parts := strings.Fields(strings.TrimSpace(out))
	if len(parts) != 2 {
		return 0, 0
	}

	behind, _ := strconv.Atoi(parts[0])
	ahead, _ := strconv.Atoi(parts[1])

	return ahead, behind
}

func (s *Service) refExists(ctx context.Context, repoPath, refspec string) bool {
	_, err := s.git(ctx, repoPath, "rev-parse", "--verify", "--quiet", refspec)
	return err == nil
}

// git runs a local plumbing command, bounded by the configured timeout.
func (s *Service) git(ctx context.Context, dir string, args ...string) (string, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	return s.gitUnbounded(ctx, dir, args...)
}

// gitUnbounded runs a git command without a deadline; used for commands that
// may legitimately hit the network for a long time.
func (s *Service) gitUnbounded(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
