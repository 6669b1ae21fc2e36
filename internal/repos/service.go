package repos

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service orchestrates repository and worktree lifecycles. Every intent does
// its validation and provisional write synchronously, then runs the rest of
// the pipeline detached. Progress is pushed before each visible step and a
// change notification after every durable write.
type Service struct {
	config Config

	store     *Store
	vc        VersionControl
	installer Installer
	sharer    FileSharer
	notifier  Notifier

	logger *zap.Logger
}

func NewService(
	config Config,
	store *Store,
	vc VersionControl,
	installer Installer,
	sharer FileSharer,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	return &Service{
		config: config,

		store:     store,
		vc:        vc,
		installer: installer,
		sharer:    sharer,
		notifier:  notifier,

		logger: logger,
	}
}

// Clone parses the URL, inserts the repository row and dispatches the clone
// pipeline. Only parse and uniqueness failures reach the caller; everything
// after runs in the background.
func (s *Service) Clone(ctx context.Context, url string, skipInstall bool) (*Repository, error) {
	parsed, err := s.vc.ParseURL(url)
	if err != nil {
		return nil, err
	}

	draft := &RepositoryDraft{
		Provider:      parsed.Provider,
		Owner:         parsed.Owner,
		Name:          parsed.Name,
		CloneURL:      url,
		LocalPath:     filepath.Join(s.config.CodeDir, parsed.Owner, parsed.Name),
		DefaultBranch: "main",
	}

	repo, err := s.store.CreateRepository(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.notifier.SetProgress(repo.ID.String(), "Cloning repository...")
	s.notifier.NotifyChanged()

	go s.runClone(context.WithoutCancel(ctx), repo, skipInstall)

	return repo, nil
}

// runClone is the detached part of the clone pipeline. Any hard failure
// triggers a destructive rollback: the repository row, its worktrees and the
// local directory all go away, so the resource simply disappears from the
// snapshot stream.
func (s *Service) runClone(ctx context.Context, repo *Repository, skipInstall bool) {
	key := repo.ID.String()
	remote := s.config.UpstreamRemote
	barePath := filepath.Join(repo.LocalPath, BareDirName)

	fail := func(step string, err error) {
		s.logger.Error("clone pipeline failed",
			zap.String("repository", key),
			zap.String("step", step),
			zap.Error(err))
		s.destructiveRollback(ctx, repo)
	}

	s.notifier.SetProgress(key, "Cleaning up existing directory...")
	if err := os.RemoveAll(repo.LocalPath); err != nil {
		fail("cleanup", err)
		return
	}
	if err := os.MkdirAll(repo.LocalPath, 0o755); err != nil {
		fail("cleanup", err)
		return
	}

	s.notifier.SetProgress(key, "Cloning repository...")
	if err := s.vc.CloneBare(ctx, repo.CloneURL, barePath); err != nil {
		fail("clone", err)
		return
	}

	s.notifier.SetProgress(key, "Configuring repository...")
	pointer := filepath.Join(repo.LocalPath, GitPointerFile)
	if err := os.WriteFile(pointer, []byte(GitPointerContent), 0o644); err != nil {
		fail("configure", err)
		return
	}
	if err := s.vc.ConfigureFetch(barePath, remote); err != nil {
		fail("configure", err)
		return
	}

	s.notifier.SetProgress(key, "Fetching branches...")
	if err := s.vc.Fetch(ctx, barePath, remote); err != nil {
		fail("fetch", err)
		return
	}

	s.notifier.SetProgress(key, "Detecting default branch...")
	defaultBranch := s.vc.DetectDefaultBranch(ctx, barePath, remote)
	err := s.store.UpdateRepository(ctx, repo.ID, func(r *Repository) error {
		r.DefaultBranch = defaultBranch
		r.LastSynced = time.Now()
		return nil
	})
	if err != nil {
		fail("detect default branch", err)
		return
	}
	s.notifier.NotifyChanged()

	s.notifier.SetProgress(key, "Creating main worktree...")
	primaryPath := filepath.Join(repo.LocalPath, PrimaryWorktreeName)
	worktree, err := s.store.CreateWorktree(ctx, &WorktreeDraft{
		Path:   primaryPath,
		RepoID: repo.ID,
		Branch: defaultBranch,
		Status: WorktreeStatusCreating,
	})
	if err != nil {
		fail("insert primary worktree", err)
		return
	}
	s.notifier.NotifyChanged()

	// A bare clone can leave a local ref shadowing the default branch,
	// which would make worktree creation fail.
	if err := s.vc.DeleteLocalBranch(ctx, barePath, defaultBranch); err != nil {
		s.logger.Debug("no local branch to delete",
			zap.String("branch", defaultBranch),
			zap.Error(err))
	}

	if err := s.vc.CreateWorktree(ctx, barePath, primaryPath, defaultBranch, remote); err != nil {
		fail("create primary worktree", err)
		return
	}

	if !skipInstall {
		s.installDependencies(ctx, key, primaryPath, "Installing (%s)...")
	}

	s.notifier.SetProgress(key, "Getting status...")
	status, err := s.vc.Status(ctx, primaryPath, remote)
	if err != nil {
		fail("status", err)
		return
	}
	if err := s.applyStatus(ctx, worktree.Path, status); err != nil {
		fail("status", err)
		return
	}
	s.notifier.NotifyChanged()

	err = s.store.UpsertWorktreeConfig(ctx, &WorktreeConfig{
		RepoID:          repo.ID,
		SymlinkPatterns: s.config.DefaultSymlinkPatterns,
		CopyPatterns:    s.config.DefaultCopyPatterns,
		UpstreamRemote:  remote,
	})
	if err != nil {
		fail("upsert config", err)
		return
	}

	s.logger.Info("repository cloned",
		zap.String("repository", key),
		zap.String("path", repo.LocalPath),
		zap.String("default_branch", defaultBranch))

	s.notifier.ClearProgress(key)
	s.notifier.NotifyChanged()
}

// destructiveRollback undoes a failed clone completely: row, worktrees,
// config and directory.
func (s *Service) destructiveRollback(ctx context.Context, repo *Repository) {
	key := repo.ID.String()

	if err := s.store.DeleteRepository(ctx, repo.ID); err != nil {
		s.logger.Error("rollback failed to delete repository row",
			zap.String("repository", key),
			zap.Error(err))
	}
	if err := os.RemoveAll(repo.LocalPath); err != nil {
		s.logger.Error("rollback failed to remove directory",
			zap.String("path", repo.LocalPath),
			zap.Error(err))
	}

	s.notifier.ClearProgress(key)
	s.notifier.NotifyChanged()
}

// CreateWorktree validates the branch, inserts the provisional row and
// dispatches the creation pipeline.
func (s *Service) CreateWorktree(ctx context.Context, repoID uuid.UUID, branch string, skipInstall bool) (*Worktree, error) {
	if branch == "" || strings.Trim(branch, ".") == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBranch, branch)
	}

	repo, err := s.store.GetRepository(ctx, repoID)
	if err != nil {
		return nil, err
	}

	dirName := SanitizeBranchName(branch, repo.DefaultBranch)
	if dirName == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBranch, branch)
	}

	path := filepath.Join(repo.LocalPath, dirName)
	rel, err := filepath.Rel(repo.LocalPath, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %q escapes repository root", ErrInvalidBranch, branch)
	}

	worktree, err := s.store.CreateWorktree(ctx, &WorktreeDraft{
		Path:   path,
		RepoID: repo.ID,
		Branch: branch,
		Status: WorktreeStatusCreating,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SetProgress(path, "Creating worktree...")
	s.notifier.NotifyChanged()

	go s.runCreateWorktree(context.WithoutCancel(ctx), repo, worktree, skipInstall)

	return worktree, nil
}

// runCreateWorktree is the detached part of the worktree-creation pipeline.
// Primary-worktree synchronization is best-effort; everything after it is a
// hard step, and a hard failure leaves the row in Error with the directory
// intact for inspection.
func (s *Service) runCreateWorktree(ctx context.Context, repo *Repository, worktree *Worktree, skipInstall bool) {
	repoKey := repo.ID.String()
	remote := s.remoteFor(ctx, repo.ID)
	barePath := filepath.Join(repo.LocalPath, BareDirName)
	primaryPath := filepath.Join(repo.LocalPath, PrimaryWorktreeName)

	fail := func(step string, err error) {
		s.logger.Error("worktree pipeline failed",
			zap.String("worktree", worktree.Path),
			zap.String("step", step),
			zap.Error(err))
		s.retainForInspection(ctx, worktree.Path, repoKey)
	}

	s.notifier.SetProgress(repoKey, "Fetching...")
	if err := s.vc.Fetch(ctx, barePath, remote); err != nil {
		s.logger.Warn("fetch before worktree creation failed", zap.Error(err))
	}

	s.notifier.SetProgress(repoKey, "Pulling main...")
	if err := s.vc.Pull(ctx, primaryPath); err != nil {
		s.logger.Warn("pull of primary worktree failed", zap.Error(err))
	}

	if !skipInstall {
		s.installDependencies(ctx, repoKey, primaryPath, "Installing main (%s)...")
	}

	s.notifier.SetProgress(worktree.Path, "Creating worktree...")
	if err := s.vc.CreateWorktree(ctx, barePath, worktree.Path, worktree.Branch, remote); err != nil {
		fail("create worktree", err)
		return
	}

	s.notifier.SetProgress(worktree.Path, "Sharing files...")
	config, err := s.store.GetWorktreeConfig(ctx, repo.ID)
	if err != nil {
		config = &WorktreeConfig{
			RepoID:          repo.ID,
			SymlinkPatterns: s.config.DefaultSymlinkPatterns,
			CopyPatterns:    s.config.DefaultCopyPatterns,
			UpstreamRemote:  remote,
		}
	}
	if err := s.sharer.Share(primaryPath, worktree.Path, config.SymlinkList(), config.CopyList()); err != nil {
		fail("share files", err)
		return
	}

	if !skipInstall {
		s.installDependencies(ctx, worktree.Path, worktree.Path, "Installing (%s)...")
	}

	s.notifier.SetProgress(worktree.Path, "Getting status...")
	status, err := s.vc.Status(ctx, worktree.Path, remote)
	if err != nil {
		fail("status", err)
		return
	}
	if err := s.applyStatus(ctx, worktree.Path, status); err != nil {
		fail("status", err)
		return
	}

	s.logger.Info("worktree created",
		zap.String("worktree", worktree.Path),
		zap.String("branch", worktree.Branch))

	s.notifier.ClearProgress(worktree.Path)
	s.notifier.ClearProgress(repoKey)
	s.notifier.NotifyChanged()
}

// retainForInspection marks a failed worktree Error and leaves its directory
// on disk.
func (s *Service) retainForInspection(ctx context.Context, path, repoKey string) {
	err := s.store.UpdateWorktree(ctx, path, func(w *Worktree) error {
		w.Status = WorktreeStatusError
		return nil
	})
	if err != nil {
		s.logger.Error("failed to mark worktree as errored",
			zap.String("worktree", path),
			zap.Error(err))
	}

	s.notifier.ClearProgress(path)
	s.notifier.ClearProgress(repoKey)
	s.notifier.NotifyChanged()
}

// DeleteWorktree marks the worktree Deleting and dispatches the removal
// pipeline.
func (s *Service) DeleteWorktree(ctx context.Context, path string) error {
	worktree, err := s.store.GetWorktree(ctx, path)
	if err != nil {
		return err
	}

	repo, err := s.store.GetRepository(ctx, worktree.RepoID)
	if err != nil {
		return err
	}

	err = s.store.UpdateWorktree(ctx, path, func(w *Worktree) error {
		w.Status = WorktreeStatusDeleting
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.SetProgress(path, "Deleting...")
	s.notifier.NotifyChanged()

	go s.runDeleteWorktree(context.WithoutCancel(ctx), repo, path)

	return nil
}

// runDeleteWorktree removes the backend worktree and directory best-effort,
// then deletes the row unconditionally. A ghost directory beats a ghost list
// entry the user cannot get rid of.
func (s *Service) runDeleteWorktree(ctx context.Context, repo *Repository, path string) {
	barePath := filepath.Join(repo.LocalPath, BareDirName)

	if err := s.vc.RemoveWorktree(ctx, barePath, path); err != nil {
		s.logger.Warn("backend worktree removal failed, possibly already orphaned",
			zap.String("worktree", path),
			zap.Error(err))
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("failed to remove worktree directory",
				zap.String("worktree", path),
				zap.Error(err))
		}
	}

	if err := s.store.DeleteWorktree(ctx, path); err != nil {
		s.logger.Error("failed to delete worktree row",
			zap.String("worktree", path),
			zap.Error(err))
	}

	s.notifier.ClearProgress(path)
	s.notifier.NotifyChanged()
}

// DeleteRepository removes the repository synchronously. A directory removal
// failure aborts before the store delete so no partial state is left behind.
func (s *Service) DeleteRepository(ctx context.Context, id uuid.UUID) error {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		return err
	}

	key := repo.ID.String()
	s.notifier.SetProgress(key, "Deleting...")
	s.notifier.NotifyChanged()

	if err := os.RemoveAll(repo.LocalPath); err != nil {
		s.notifier.ClearProgress(key)
		s.notifier.NotifyChanged()
		return fmt.Errorf("failed to remove repository directory: %w", err)
	}

	if err := s.store.DeleteRepository(ctx, id); err != nil {
		s.notifier.ClearProgress(key)
		s.notifier.NotifyChanged()
		return err
	}

	s.notifier.ClearProgress(key)
	s.notifier.NotifyChanged()

	s.logger.Info("repository deleted", zap.String("repository", key))

	return nil
}

// Refresh dispatches the refresh pipeline: fetch, recompute worktree
// statuses, bump last_synced.
func (s *Service) Refresh(ctx context.Context, id uuid.UUID) error {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		return err
	}

	s.notifier.SetProgress(repo.ID.String(), "Fetching...")
	s.notifier.NotifyChanged()

	go s.runRefresh(context.WithoutCancel(ctx), repo)

	return nil
}

func (s *Service) runRefresh(ctx context.Context, repo *Repository) {
	key := repo.ID.String()
	remote := s.remoteFor(ctx, repo.ID)
	barePath := filepath.Join(repo.LocalPath, BareDirName)

	if err := s.vc.Fetch(ctx, barePath, remote); err != nil {
		s.logger.Warn("refresh fetch failed",
			zap.String("repository", key),
			zap.Error(err))
	}

	worktrees, err := s.store.ListWorktrees(ctx, repo.ID)
	if err != nil {
		s.logger.Error("refresh failed to list worktrees",
			zap.String("repository", key),
			zap.Error(err))
		s.notifier.ClearProgress(key)
		s.notifier.NotifyChanged()
		return
	}

	s.notifier.SetProgress(key, "Getting status...")
	for _, worktree := range worktrees {
		// Creating, Error and Deleting worktrees keep their lifecycle
		// state; refreshing them would fight the pipelines that own them.
		if worktree.Status != WorktreeStatusReady {
			continue
		}

		status, err := s.vc.Status(ctx, worktree.Path, remote)
		if err != nil {
			s.logger.Warn("refresh skipped worktree",
				zap.String("worktree", worktree.Path),
				zap.Error(err))
			continue
		}
		if err := s.applyStatus(ctx, worktree.Path, status); err != nil {
			s.logger.Warn("refresh failed to persist worktree status",
				zap.String("worktree", worktree.Path),
				zap.Error(err))
			continue
		}
		s.notifier.NotifyChanged()
	}

	err = s.store.UpdateRepository(ctx, repo.ID, func(r *Repository) error {
		r.LastSynced = time.Now()
		return nil
	})
	if err != nil {
		s.logger.Error("refresh failed to update last_synced",
			zap.String("repository", key),
			zap.Error(err))
	}

	s.notifier.ClearProgress(key)
	s.notifier.NotifyChanged()
}

// ListRepositories returns all repositories, newest first.
func (s *Service) ListRepositories(ctx context.Context) ([]Repository, error) {
	return s.store.ListRepositories(ctx)
}

// GetRepository returns a repository by id.
func (s *Service) GetRepository(ctx context.Context, id uuid.UUID) (*Repository, error) {
	return s.store.GetRepository(ctx, id)
}

// ListWorktrees returns a repository's worktrees in creation order.
func (s *Service) ListWorktrees(ctx context.Context, repoID uuid.UUID) ([]Worktree, error) {
	if _, err := s.store.GetRepository(ctx, repoID); err != nil {
		return nil, err
	}

	return s.store.ListWorktrees(ctx, repoID)
}

// GetWorktreeConfig returns the repository's sharing config, falling back to
// the built-in defaults when none was written yet.
func (s *Service) GetWorktreeConfig(ctx context.Context, repoID uuid.UUID) (*WorktreeConfig, error) {
	config, err := s.store.GetWorktreeConfig(ctx, repoID)
	if err == nil {
		return config, nil
	}

	if _, getErr := s.store.GetRepository(ctx, repoID); getErr != nil {
		return nil, getErr
	}

	return &WorktreeConfig{
		RepoID:          repoID,
		SymlinkPatterns: s.config.DefaultSymlinkPatterns,
		CopyPatterns:    s.config.DefaultCopyPatterns,
		UpstreamRemote:  s.config.UpstreamRemote,
	}, nil
}

// UpdateWorktreeConfig overwrites the repository's sharing config.
func (s *Service) UpdateWorktreeConfig(ctx context.Context, config *WorktreeConfig) (*WorktreeConfig, error) {
	if _, err := s.store.GetRepository(ctx, config.RepoID); err != nil {
		return nil, err
	}

	if config.UpstreamRemote == "" {
		config.UpstreamRemote = s.config.UpstreamRemote
	}

	if err := s.store.UpsertWorktreeConfig(ctx, config); err != nil {
		return nil, err
	}

	s.notifier.NotifyChanged()

	return config, nil
}

// applyStatus copies a git status observation onto the worktree row and marks
// it Ready.
func (s *Service) applyStatus(ctx context.Context, path string, status *WorktreeGitStatus) error {
	now := time.Now()

	return s.store.UpdateWorktree(ctx, path, func(w *Worktree) error {
		w.Branch = status.Branch
		w.Head = status.Head
		w.CommitMessage = status.CommitMessage
		w.Dirty = status.Dirty
		w.Ahead = status.Ahead
		w.Behind = status.Behind
		w.LastStatusCheck = &now
		w.Status = WorktreeStatusReady
		return nil
	})
}

// installDependencies runs every detected package manager in dir. Failures
// surface only as a transient progress message and a log line.
func (s *Service) installDependencies(ctx context.Context, key, dir, label string) {
	for _, manager := range s.installer.DetectManagers(dir) {
		s.notifier.SetProgress(key, fmt.Sprintf(label, manager))

		if err := s.installer.Install(ctx, dir, manager); err != nil {
			s.logger.Warn("dependency installation failed",
				zap.String("dir", dir),
				zap.String("manager", manager),
				zap.Error(err))
			s.notifier.SetProgress(key, fmt.Sprintf("Warning: %s install failed", manager))
		}
	}
}

// remoteFor resolves the remote name for a repository from its stored config,
// falling back to the service default.
func (s *Service) remoteFor(ctx context.Context, repoID uuid.UUID) string {
	config, err := s.store.GetWorktreeConfig(ctx, repoID)
	if err != nil || config.UpstreamRemote == "" {
		return s.config.UpstreamRemote
	}

	return config.UpstreamRemote
}
