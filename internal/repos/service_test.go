package repos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type fakeVC struct {
	mu sync.Mutex

	defaultBranch string
	status        WorktreeGitStatus

	parseErr  error
	cloneErr  error
	createErr error
	statusErr error

	fetches int
	pulls   int
	created []string
	removed []string
}

func (f *fakeVC) ParseURL(url string) (ParsedURL, error) {
	if f.parseErr != nil {
		return ParsedURL{}, f.parseErr
	}
	return ParsedURL{Provider: "github", Owner: "acme", Name: "widgets"}, nil
}

func (f *fakeVC) CloneBare(_ context.Context, _, barePath string) error {
	if f.cloneErr != nil {
		return f.cloneErr
	}
	return os.MkdirAll(barePath, 0o755)
}

func (f *fakeVC) ConfigureFetch(_, _ string) error { return nil }

func (f *fakeVC) Fetch(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return nil
}

func (f *fakeVC) Pull(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return nil
}

func (f *fakeVC) CreateWorktree(_ context.Context, _, worktreePath, _, _ string) error {
	if f.createErr != nil {
		return f.createErr
	}

	f.mu.Lock()
	f.created = append(f.created, worktreePath)
	f.mu.Unlock()

	return os.MkdirAll(worktreePath, 0o755)
}

func (f *fakeVC) RemoveWorktree(_ context.Context, _, worktreePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, worktreePath)
	return nil
}

func (f *fakeVC) DeleteLocalBranch(_ context.Context, _, _ string) error { return nil }

func (f *fakeVC) DetectDefaultBranch(_ context.Context, _, _ string) string {
	return f.defaultBranch
}

func (f *fakeVC) Status(_ context.Context, _, _ string) (*WorktreeGitStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status := f.status
	return &status, nil
}

type fakeInstaller struct {
	mu       sync.Mutex
	managers []string
	installs []string
}

func (f *fakeInstaller) DetectManagers(_ string) []string { return f.managers }

func (f *fakeInstaller) Install(_ context.Context, dir, manager string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, dir+":"+manager)
	return nil
}

type fakeSharer struct {
	mu       sync.Mutex
	shareErr error
	sources  []string
	targets  []string
}

func (f *fakeSharer) Share(source, target string, _, _ []string) error {
	if f.shareErr != nil {
		return f.shareErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, source)
	f.targets = append(f.targets, target)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	progress map[string]string
	notified int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{progress: map[string]string{}}
}

func (f *fakeNotifier) SetProgress(key, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress[key] = message
}

func (f *fakeNotifier) ClearProgress(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.progress, key)
}

func (f *fakeNotifier) NotifyChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified++
}

func (f *fakeNotifier) progressLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.progress)
}

type serviceFixture struct {
	service   *Service
	store     *Store
	vc        *fakeVC
	installer *fakeInstaller
	sharer    *fakeSharer
	notifier  *fakeNotifier
	codeDir   string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := newTestStore(t)
	vc := &fakeVC{
		defaultBranch: "main",
		status: WorktreeGitStatus{
			Branch:        "main",
			Head:          "abc123",
			CommitMessage: "initial commit",
		},
	}
	installer := &fakeInstaller{}
	sharer := &fakeSharer{}
	notifier := newFakeNotifier()
	codeDir := t.TempDir()

	service := NewService(
		Config{
			CodeDir:                codeDir,
			UpstreamRemote:         "origin",
			DefaultSymlinkPatterns: ".env,.env.*,.claude/**",
			DefaultCopyPatterns:    "",
		},
		store, vc, installer, sharer, notifier,
		zaptest.NewLogger(t),
	)

	return &serviceFixture{
		service:   service,
		store:     store,
		vc:        vc,
		installer: installer,
		sharer:    sharer,
		notifier:  notifier,
		codeDir:   codeDir,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", what)
}

func TestServiceClone(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	repo, err := f.service.Clone(ctx, "https://github.com/acme/widgets", false)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if repo.LocalPath != filepath.Join(f.codeDir, "acme", "widgets") {
		t.Errorf("LocalPath = %s", repo.LocalPath)
	}

	primaryPath := filepath.Join(repo.LocalPath, PrimaryWorktreeName)
	waitFor(t, "primary worktree to become ready", func() bool {
		worktree, getErr := f.store.GetWorktree(ctx, primaryPath)
		return getErr == nil && worktree.Status == WorktreeStatusReady
	})

	worktree, err := f.store.GetWorktree(ctx, primaryPath)
	if err != nil {
		t.Fatalf("GetWorktree: %v", err)
	}
	if worktree.Head != "abc123" || worktree.CommitMessage != "initial commit" {
		t.Errorf("worktree = %+v", worktree)
	}
	if worktree.LastStatusCheck == nil {
		t.Error("LastStatusCheck was not set")
	}

	updated, err := f.store.GetRepository(ctx, repo.ID)
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if updated.DefaultBranch != "main" {
		t.Errorf("DefaultBranch = %s", updated.DefaultBranch)
	}
	if updated.LastSynced.IsZero() {
		t.Error("LastSynced was not set")
	}

	config, err := f.store.GetWorktreeConfig(ctx, repo.ID)
	if err != nil {
		t.Fatalf("GetWorktreeConfig: %v", err)
	}
	if config.SymlinkPatterns != ".env,.env.*,.claude/**" || config.UpstreamRemote != "origin" {
		t.Errorf("config = %+v", config)
	}

	pointer, err := os.ReadFile(filepath.Join(repo.LocalPath, GitPointerFile))
	if err != nil {
		t.Fatalf("pointer file: %v", err)
	}
	if string(pointer) != GitPointerContent {
		t.Errorf("pointer = %q", pointer)
	}

	waitFor(t, "progress to clear", func() bool { return f.notifier.progressLen() == 0 })
}

func TestServiceCloneConflict(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	repo, err := f.service.Clone(ctx, "https://github.com/acme/widgets", true)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	_, err = f.service.Clone(ctx, "https://github.com/acme/widgets", true)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second Clone = %v, want ErrConflict", err)
	}
	if !strings.Contains(err.Error(), repo.LocalPath) {
		t.Errorf("rejection %q does not name the existing local path %q", err, repo.LocalPath)
	}

	waitFor(t, "first pipeline to finish", func() bool { return f.notifier.progressLen() == 0 })
}

func TestServiceCloneInvalidURL(t *testing.T) {
	f := newServiceFixture(t)
	f.vc.parseErr = errors.New("unparseable")

	if _, err := f.service.Clone(context.Background(), "nonsense", false); err == nil {
		t.Fatal("expected parse error")
	}

	repositories, err := f.store.ListRepositories(context.Background())
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(repositories) != 0 {
		t.Errorf("repository row written despite parse failure")
	}
}

func TestServiceCloneFailureRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	f.vc.cloneErr = errors.New("network down")
	ctx := context.Background()

	repo, err := f.service.Clone(ctx, "https://github.com/acme/widgets", false)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	waitFor(t, "repository row to disappear", func() bool {
		_, getErr := f.store.GetRepository(ctx, repo.ID)
		return errors.Is(getErr, ErrNotFound)
	})
	waitFor(t, "progress to clear", func() bool { return f.notifier.progressLen() == 0 })

	if _, statErr := os.Stat(repo.LocalPath); !os.IsNotExist(statErr) {
		t.Errorf("local directory survived rollback: %v", statErr)
	}
}

func seedRepository(t *testing.T, f *serviceFixture) *Repository {
	t.Helper()
	ctx := context.Background()

	localPath := filepath.Join(f.codeDir, "acme", "widgets")
	repo, err := f.store.CreateRepository(ctx, &RepositoryDraft{
		Provider:      "github",
		Owner:         "acme",
		Name:          "widgets",
		CloneURL:      "https://github.com/acme/widgets",
		LocalPath:     localPath,
		DefaultBranch: "main",
	})
	if err != nil {
		t.Fatalf("seed repository: %v", err)
	}

	primaryPath := filepath.Join(localPath, PrimaryWorktreeName)
	if err := os.MkdirAll(primaryPath, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateWorktree(ctx, &WorktreeDraft{
		Path:   primaryPath,
		RepoID: repo.ID,
		Branch: "main",
		Status: WorktreeStatusReady,
	}); err != nil {
		t.Fatalf("seed primary worktree: %v", err)
	}

	return repo
}

func TestServiceCreateWorktree(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	repo := seedRepository(t, f)

	worktree, err := f.service.CreateWorktree(ctx, repo.ID, "feature/foo", false)
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}

	wantPath := filepath.Join(repo.LocalPath, "feature--foo")
	if worktree.Path != wantPath {
		t.Errorf("Path = %s, want %s", worktree.Path, wantPath)
	}
	if worktree.Status != WorktreeStatusCreating {
		t.Errorf("Status = %s, want creating", worktree.Status)
	}

	waitFor(t, "worktree to become ready", func() bool {
		got, getErr := f.store.GetWorktree(ctx, wantPath)
		return getErr == nil && got.Status == WorktreeStatusReady
	})

	f.sharer.mu.Lock()
	sharedFromPrimary := len(f.sharer.sources) == 1 &&
		f.sharer.sources[0] == filepath.Join(repo.LocalPath, PrimaryWorktreeName) &&
		f.sharer.targets[0] == wantPath
	f.sharer.mu.Unlock()
	if !sharedFromPrimary {
		t.Error("files were not shared from the primary worktree")
	}

	waitFor(t, "progress to clear", func() bool { return f.notifier.progressLen() == 0 })
}

func TestServiceCreateWorktreeInvalidBranch(t *testing.T) {
	f := newServiceFixture(t)
	repo := seedRepository(t, f)

	for _, branch := range []string{"", ".", "...", "....."} {
		_, err := f.service.CreateWorktree(context.Background(), repo.ID, branch, false)
		if !errors.Is(err, ErrInvalidBranch) {
			t.Errorf("CreateWorktree(%q) = %v, want ErrInvalidBranch", branch, err)
		}
	}
}

func TestServiceCreateWorktreeConflict(t *testing.T) {
	f := newServiceFixture(t)
	repo := seedRepository(t, f)

	// The primary worktree path is already taken by the seed.
	_, err := f.service.CreateWorktree(context.Background(), repo.ID, "main", false)
	if !errors.Is(err, ErrWorktreeConflict) {
		t.Errorf("CreateWorktree(main) = %v, want ErrWorktreeConflict", err)
	}
}

func TestServiceCreateWorktreeFailureRetainsRow(t *testing.T) {
	f := newServiceFixture(t)
	f.vc.createErr = errors.New("worktree add failed")
	ctx := context.Background()
	repo := seedRepository(t, f)

	worktree, err := f.service.CreateWorktree(ctx, repo.ID, "feature/foo", false)
	if err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}

	waitFor(t, "worktree to enter error state", func() bool {
		got, getErr := f.store.GetWorktree(ctx, worktree.Path)
		return getErr == nil && got.Status == WorktreeStatusError
	})

	if _, err := f.store.GetRepository(ctx, repo.ID); err != nil {
		t.Errorf("repository row affected by worktree failure: %v", err)
	}

	waitFor(t, "progress to clear", func() bool { return f.notifier.progressLen() == 0 })
}

func TestServiceDeleteWorktree(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	repo := seedRepository(t, f)

	path := filepath.Join(repo.LocalPath, "feature--foo")
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.CreateWorktree(ctx, &WorktreeDraft{
		Path:   path,
		RepoID: repo.ID,
		Branch: "feature/foo",
		Status: WorktreeStatusReady,
	}); err != nil {
		t.Fatalf("seed worktree: %v", err)
	}

	if err := f.service.DeleteWorktree(ctx, path); err != nil {
		t.Fatalf("DeleteWorktree: %v", err)
	}

	waitFor(t, "worktree row to disappear", func() bool {
		_, getErr := f.store.GetWorktree(ctx, path)
		return errors.Is(getErr, ErrWorktreeNotFound)
	})

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("worktree directory survived deletion: %v", statErr)
	}

	if err := f.service.DeleteWorktree(ctx, path); !errors.Is(err, ErrWorktreeNotFound) {
		t.Errorf("second DeleteWorktree = %v, want ErrWorktreeNotFound", err)
	}
}

func TestServiceDeleteRepository(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	repo := seedRepository(t, f)

	if err := f.service.DeleteRepository(ctx, repo.ID); err != nil {
		t.Fatalf("DeleteRepository: %v", err)
	}

	if _, err := f.store.GetRepository(ctx, repo.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRepository = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(repo.LocalPath); !os.IsNotExist(statErr) {
		t.Errorf("local directory survived deletion: %v", statErr)
	}
	if f.notifier.progressLen() != 0 {
		t.Error("progress not cleared after synchronous deletion")
	}
}

func TestServiceRefresh(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	repo := seedRepository(t, f)

	f.vc.status = WorktreeGitStatus{
		Branch:        "main",
		Head:          "def456",
		CommitMessage: "newer commit",
		Ahead:         2,
		Behind:        1,
	}

	if err := f.service.Refresh(ctx, repo.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	primaryPath := filepath.Join(repo.LocalPath, PrimaryWorktreeName)
	waitFor(t, "status to be recomputed", func() bool {
		worktree, getErr := f.store.GetWorktree(ctx, primaryPath)
		return getErr == nil && worktree.Head == "def456"
	})

	worktree, err := f.store.GetWorktree(ctx, primaryPath)
	if err != nil {
		t.Fatalf("GetWorktree: %v", err)
	}
	if worktree.Ahead != 2 || worktree.Behind != 1 {
		t.Errorf("ahead/behind = %d/%d, want 2/1", worktree.Ahead, worktree.Behind)
	}

	waitFor(t, "last_synced to update", func() bool {
		updated, getErr := f.store.GetRepository(ctx, repo.ID)
		return getErr == nil && !updated.LastSynced.IsZero()
	})

	waitFor(t, "progress to clear", func() bool { return f.notifier.progressLen() == 0 })
}

func TestServiceRefreshSkipsNonReadyWorktrees(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	repo := seedRepository(t, f)

	erroredPath := filepath.Join(repo.LocalPath, "broken")
	if _, err := f.store.CreateWorktree(ctx, &WorktreeDraft{
		Path:   erroredPath,
		RepoID: repo.ID,
		Branch: "broken",
		Status: WorktreeStatusError,
	}); err != nil {
		t.Fatalf("seed errored worktree: %v", err)
	}

	if err := f.service.Refresh(ctx, repo.ID); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	waitFor(t, "refresh to finish", func() bool { return f.notifier.progressLen() == 0 })

	worktree, err := f.store.GetWorktree(ctx, erroredPath)
	if err != nil {
		t.Fatalf("GetWorktree: %v", err)
	}
	if worktree.Status != WorktreeStatusError {
		t.Errorf("errored worktree left error state: %s", worktree.Status)
	}
}

func TestServiceGetWorktreeConfigDefaults(t *testing.T) {
	f := newServiceFixture(t)
	repo := seedRepository(t, f)

	config, err := f.service.GetWorktreeConfig(context.Background(), repo.ID)
	if err != nil {
		t.Fatalf("GetWorktreeConfig: %v", err)
	}
	if config.SymlinkPatterns != ".env,.env.*,.claude/**" {
		t.Errorf("SymlinkPatterns = %q", config.SymlinkPatterns)
	}
	if config.UpstreamRemote != "origin" {
		t.Errorf("UpstreamRemote = %q", config.UpstreamRemote)
	}
}
