package repos

import (
	"context"
	"errors"
	"fmt"

	"github.com/arbor-dev/arbor/pkg/badgerfx"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Store owns all durable state: repositories, worktrees and per-repository
// sharing configuration. It holds no business logic.
type Store struct {
	db *badger.DB

	repositories *badgerfx.Repository[*repositoryModel]
	worktrees    *badgerfx.Repository[*worktreeModel]
	configs      *badgerfx.Repository[*worktreeConfigModel]
}

func NewStore(db *badger.DB) *Store {
	return &Store{
		db: db,

		repositories: badgerfx.NewRepository(func() *repositoryModel { return &repositoryModel{} }),
		worktrees:    badgerfx.NewRepository(func() *worktreeModel { return &worktreeModel{} }),
		configs:      badgerfx.NewRepository(func() *worktreeConfigModel { return &worktreeConfigModel{} }),
	}
}

// CreateRepository inserts a new repository, enforcing uniqueness of both
// (provider, owner, name) and local path.
func (s *Store) CreateRepository(_ context.Context, draft *RepositoryDraft) (*Repository, error) {
	model := newRepositoryModel(draft)

	err := s.db.Update(func(txn *badger.Txn) error {
		nameKey := repositoryNameKey(model.Provider, model.Owner, model.Name)
		if existing, getErr := s.repositories.ReadByIndex(txn, nameKey); getErr == nil {
			return fmt.Errorf("%w: %s/%s at %s", ErrConflict, model.Owner, model.Name, existing.LocalPath)
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check name uniqueness: %w", getErr)
		}

		pathKey := repositoryPathKey(model.LocalPath)
		if _, getErr := txn.Get([]byte(pathKey)); getErr == nil {
			return fmt.Errorf("%w: path %s", ErrConflict, model.LocalPath)
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check path uniqueness: %w", getErr)
		}

		return s.repositories.Write(txn, model)
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	return newRepository(model), nil
}

// GetRepository retrieves a repository by id.
func (s *Store) GetRepository(_ context.Context, id uuid.UUID) (*Repository, error) {
	var model *repositoryModel

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.repositories.Read(txn, repositoryKey(id))
		if err == nil {
			model = found
		}
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return newRepository(model), nil
}

// GetRepositoryByName retrieves a repository by its (provider, owner, name)
// triple.
func (s *Store) GetRepositoryByName(_ context.Context, provider, owner, name string) (*Repository, error) {
	var model *repositoryModel

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.repositories.ReadByIndex(txn, repositoryNameKey(provider, owner, name))
		if err == nil {
			model = found
		}
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s/%s/%s", ErrNotFound, provider, owner, name)
		}
		return nil, fmt.Errorf("failed to get repository by name: %w", err)
	}

	return newRepository(model), nil
}

// GetRepositoryByPath retrieves a repository by its local path.
func (s *Store) GetRepositoryByPath(_ context.Context, path string) (*Repository, error) {
	var model *repositoryModel

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.repositories.ReadByIndex(txn, repositoryPathKey(path))
		if err == nil {
			model = found
		}
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get repository by path: %w", err)
	}

	return newRepository(model), nil
}

// ListRepositories returns all repositories, newest first.
func (s *Store) ListRepositories(_ context.Context) ([]Repository, error) {
	var result []Repository

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true

		models, err := s.repositories.List(txn, repositoryKeyPrefix, options)
		if err != nil {
			return err
		}

		for _, model := range models {
			result = append(result, *newRepository(model))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	return result, nil
}

// UpdateRepository applies updater to the repository under a write
// transaction. Identity fields (provider, owner, name, local path) are
// immutable.
func (s *Store) UpdateRepository(_ context.Context, id uuid.UUID, updater func(*Repository) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		model, err := s.repositories.Read(txn, repositoryKey(id))
		if err != nil {
			return err
		}

		repo := newRepository(model)
		if updErr := updater(repo); updErr != nil {
			return updErr
		}

		if repo.Provider != model.Provider || repo.Owner != model.Owner ||
			repo.Name != model.Name || repo.LocalPath != model.LocalPath {
			return fmt.Errorf("%w: repository identity is immutable", ErrNotAllowed)
		}

		model.CloneURL = repo.CloneURL
		model.DefaultBranch = repo.DefaultBranch
		model.LastSynced = repo.LastSynced
		model.DeletedAt = repo.DeletedAt

		return s.repositories.Write(txn, model)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if errors.Is(err, ErrNotAllowed) {
			return err
		}
		return fmt.Errorf("failed to update repository: %w", err)
	}

	return nil
}

// DeleteRepository removes the repository, all of its worktrees and its
// sharing config in a single transaction.
func (s *Store) DeleteRepository(_ context.Context, id uuid.UUID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		worktrees, err := s.worktrees.ListByIndex(txn, worktreeRepoKeyPrefix(id), badger.DefaultIteratorOptions)
		if err != nil {
			return fmt.Errorf("failed to list worktrees for deletion: %w", err)
		}

		for _, worktree := range worktrees {
			if delErr := s.worktrees.Delete(txn, worktreeKey(worktree.Path)); delErr != nil {
				return fmt.Errorf("failed to delete worktree %s: %w", worktree.Path, delErr)
			}
		}

		if delErr := txn.Delete([]byte(worktreeConfigKey(id))); delErr != nil && !errors.Is(delErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete worktree config: %w", delErr)
		}

		return s.repositories.Delete(txn, repositoryKey(id))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete repository: %w", err)
	}

	return nil
}

// CreateWorktree inserts a new worktree, enforcing path uniqueness.
func (s *Store) CreateWorktree(_ context.Context, draft *WorktreeDraft) (*Worktree, error) {
	model := newWorktreeModel(draft)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, getErr := txn.Get([]byte(model.StorageKey())); getErr == nil {
			return fmt.Errorf("%w: %s", ErrWorktreeConflict, model.Path)
		} else if !errors.Is(getErr, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check worktree uniqueness: %w", getErr)
		}

		return s.worktrees.Write(txn, model)
	})
	if err != nil {
		if errors.Is(err, ErrWorktreeConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create worktree: %w", err)
	}

	return newWorktree(model), nil
}

// GetWorktree retrieves a worktree by path.
func (s *Store) GetWorktree(_ context.Context, path string) (*Worktree, error) {
	var model *worktreeModel

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.worktrees.Read(txn, worktreeKey(path))
		if err == nil {
			model = found
		}
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorktreeNotFound, path)
		}
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	return newWorktree(model), nil
}

// ListWorktrees returns a repository's worktrees in creation order, which
// puts the primary checkout first.
func (s *Store) ListWorktrees(_ context.Context, repoID uuid.UUID) ([]Worktree, error) {
	var result []Worktree

	err := s.db.View(func(txn *badger.Txn) error {
		models, err := s.worktrees.ListByIndex(txn, worktreeRepoKeyPrefix(repoID), badger.DefaultIteratorOptions)
		if err != nil {
			return err
		}

		for _, model := range models {
			result = append(result, *newWorktree(model))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	return result, nil
}

// UpdateWorktree applies updater to the worktree under a write transaction.
// Path and owning repository are immutable.
func (s *Store) UpdateWorktree(_ context.Context, path string, updater func(*Worktree) error) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		model, err := s.worktrees.Read(txn, worktreeKey(path))
		if err != nil {
			return err
		}

		worktree := newWorktree(model)
		if updErr := updater(worktree); updErr != nil {
			return updErr
		}

		if worktree.Path != model.Path || worktree.RepoID != model.RepoID {
			return fmt.Errorf("%w: worktree identity is immutable", ErrNotAllowed)
		}

		model.Branch = worktree.Branch
		model.Head = worktree.Head
		model.Status = worktree.Status
		model.CommitMessage = worktree.CommitMessage
		model.Dirty = worktree.Dirty
		model.Ahead = worktree.Ahead
		model.Behind = worktree.Behind
		model.LastStatusCheck = worktree.LastStatusCheck
		model.DeletedAt = worktree.DeletedAt

		return s.worktrees.Write(txn, model)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrWorktreeNotFound, path)
		}
		if errors.Is(err, ErrNotAllowed) {
			return err
		}
		return fmt.Errorf("failed to update worktree: %w", err)
	}

	return nil
}

// DeleteWorktree removes the worktree row unconditionally; it does not know
// or care whether the on-disk directory was actually removed.
func (s *Store) DeleteWorktree(_ context.Context, path string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return s.worktrees.Delete(txn, worktreeKey(path))
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrWorktreeNotFound, path)
		}
		return fmt.Errorf("failed to delete worktree: %w", err)
	}

	return nil
}

// GetWorktreeConfig retrieves a repository's sharing config.
func (s *Store) GetWorktreeConfig(_ context.Context, repoID uuid.UUID) (*WorktreeConfig, error) {
	var model *worktreeConfigModel

	err := s.db.View(func(txn *badger.Txn) error {
		found, err := s.configs.Read(txn, worktreeConfigKey(repoID))
		if err == nil {
			model = found
		}
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, repoID)
		}
		return nil, fmt.Errorf("failed to get worktree config: %w", err)
	}

	return newWorktreeConfig(model), nil
}

// UpsertWorktreeConfig writes the sharing config, overwriting any previous
// value.
func (s *Store) UpsertWorktreeConfig(_ context.Context, config *WorktreeConfig) error {
	model := newWorktreeConfigModel(config)

	err := s.db.Update(func(txn *badger.Txn) error {
		return s.configs.Write(txn, model)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert worktree config: %w", err)
	}

	return nil
}
