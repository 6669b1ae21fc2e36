package repos

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arbor-dev/arbor/pkg/badgerfx"
	"github.com/google/uuid"
)

const (
	repositoryKeyPrefix  = "repository:id:"
	repositoryNamePrefix = "repository:name:"
	repositoryPathPrefix = "repository:path:"

	worktreeKeyPrefix  = "worktree:path:"
	worktreeRepoPrefix = "worktree:repo:"

	worktreeConfigKeyPrefix = "worktreeconfig:"
)

// repositoryModel is the stored form of a Repository. Its primary key embeds
// a v7 UUID, so key order is creation order.
type repositoryModel struct {
	ID            uuid.UUID  `json:"id"`
	Provider      string     `json:"provider"`
	Owner         string     `json:"owner"`
	Name          string     `json:"name"`
	CloneURL      string     `json:"clone_url"`
	LocalPath     string     `json:"local_path"`
	DefaultBranch string     `json:"default_branch"`
	LastSynced    time.Time  `json:"last_synced"`
	CreatedAt     time.Time  `json:"created_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func (m *repositoryModel) StorageKey() string {
	return repositoryKey(m.ID)
}

func (m *repositoryModel) StorageIndexes() []string {
	return []string{
		repositoryNameKey(m.Provider, m.Owner, m.Name),
		repositoryPathKey(m.LocalPath),
	}
}

func (m *repositoryModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *repositoryModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

var _ badgerfx.Entity = (*repositoryModel)(nil)

func repositoryKey(id uuid.UUID) string {
	return repositoryKeyPrefix + id.String()
}

func repositoryNameKey(provider, owner, name string) string {
	return fmt.Sprintf("%s%s:%s:%s", repositoryNamePrefix, provider, owner, name)
}

func repositoryPathKey(path string) string {
	return repositoryPathPrefix + path
}

func newRepositoryModel(draft *RepositoryDraft) *repositoryModel {
	return &repositoryModel{
		ID:            uuid.Must(uuid.NewV7()),
		Provider:      draft.Provider,
		Owner:         draft.Owner,
		Name:          draft.Name,
		CloneURL:      draft.CloneURL,
		LocalPath:     draft.LocalPath,
		DefaultBranch: draft.DefaultBranch,
		LastSynced:    draft.LastSynced,
		CreatedAt:     time.Now(),
	}
}

func newRepository(model *repositoryModel) *Repository {
	if model == nil {
		return nil
	}

	return &Repository{
		RepositoryDraft: RepositoryDraft{
			Provider:      model.Provider,
			Owner:         model.Owner,
			Name:          model.Name,
			CloneURL:      model.CloneURL,
			LocalPath:     model.LocalPath,
			DefaultBranch: model.DefaultBranch,
			LastSynced:    model.LastSynced,
		},
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		DeletedAt: model.DeletedAt,
	}
}

// worktreeModel is the stored form of a Worktree, keyed by absolute path
// with a per-repository index ordered by creation time.
type worktreeModel struct {
	Path            string         `json:"path"`
	RepoID          uuid.UUID      `json:"repo_id"`
	Branch          string         `json:"branch"`
	Head            string         `json:"head,omitempty"`
	Status          WorktreeStatus `json:"status"`
	CommitMessage   string         `json:"commit_message,omitempty"`
	Dirty           bool           `json:"dirty"`
	Ahead           int            `json:"ahead"`
	Behind          int            `json:"behind"`
	LastStatusCheck *time.Time     `json:"last_status_check,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	DeletedAt       *time.Time     `json:"deleted_at,omitempty"`
}

func (m *worktreeModel) StorageKey() string {
	return worktreeKey(m.Path)
}

func (m *worktreeModel) StorageIndexes() []string {
	return []string{worktreeRepoKey(m.RepoID, m.CreatedAt, m.Path)}
}

func (m *worktreeModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *worktreeModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

var _ badgerfx.Entity = (*worktreeModel)(nil)

func worktreeKey(path string) string {
	return worktreeKeyPrefix + path
}

func worktreeRepoKey(repoID uuid.UUID, createdAt time.Time, path string) string {
	return fmt.Sprintf("%s%s:%020d:%s", worktreeRepoPrefix, repoID, createdAt.UnixNano(), path)
}

func worktreeRepoKeyPrefix(repoID uuid.UUID) string {
	return worktreeRepoPrefix + repoID.String() + ":"
}

func newWorktreeModel(draft *WorktreeDraft) *worktreeModel {
	return &worktreeModel{
		Path:      draft.Path,
		RepoID:    draft.RepoID,
		Branch:    draft.Branch,
		Status:    draft.Status,
		CreatedAt: time.Now(),
	}
}

func newWorktree(model *worktreeModel) *Worktree {
	if model == nil {
		return nil
	}

	return &Worktree{
		WorktreeDraft: WorktreeDraft{
			Path:   model.Path,
			RepoID: model.RepoID,
			Branch: model.Branch,
			Status: model.Status,
		},
		Head:            model.Head,
		CommitMessage:   model.CommitMessage,
		Dirty:           model.Dirty,
		Ahead:           model.Ahead,
		Behind:          model.Behind,
		LastStatusCheck: model.LastStatusCheck,
		CreatedAt:       model.CreatedAt,
		DeletedAt:       model.DeletedAt,
	}
}

// worktreeConfigModel is the stored sharing policy for one repository.
type worktreeConfigModel struct {
	RepoID          uuid.UUID `json:"repo_id"`
	SymlinkPatterns string    `json:"symlink_patterns"`
	CopyPatterns    string    `json:"copy_patterns"`
	UpstreamRemote  string    `json:"upstream_remote"`
}

func (m *worktreeConfigModel) StorageKey() string {
	return worktreeConfigKey(m.RepoID)
}

func (m *worktreeConfigModel) StorageIndexes() []string {
	return nil
}

func (m *worktreeConfigModel) MarshalStorage() ([]byte, error) {
	return json.Marshal(m)
}

func (m *worktreeConfigModel) UnmarshalStorage(data []byte) error {
	return json.Unmarshal(data, m)
}

var _ badgerfx.Entity = (*worktreeConfigModel)(nil)

func worktreeConfigKey(repoID uuid.UUID) string {
	return worktreeConfigKeyPrefix + repoID.String()
}

func newWorktreeConfigModel(config *WorktreeConfig) *worktreeConfigModel {
	return &worktreeConfigModel{
		RepoID:          config.RepoID,
		SymlinkPatterns: config.SymlinkPatterns,
		CopyPatterns:    config.CopyPatterns,
		UpstreamRemote:  config.UpstreamRemote,
	}
}

func newWorktreeConfig(model *worktreeConfigModel) *WorktreeConfig {
	if model == nil {
		return nil
	}

	return &WorktreeConfig{
		RepoID:          model.RepoID,
		SymlinkPatterns: model.SymlinkPatterns,
		CopyPatterns:    model.CopyPatterns,
		UpstreamRemote:  model.UpstreamRemote,
	}
}
