package repos

import (
	"context"

	"github.com/samber/lo"

	"github.com/arbor-dev/arbor/internal/git"
	"github.com/arbor-dev/arbor/internal/install"
)

// gitAdapter bridges the git service onto the VersionControl contract.
type gitAdapter struct {
	*git.Service
}

func newGitAdapter(service *git.Service) VersionControl {
	return gitAdapter{Service: service}
}

func (a gitAdapter) ParseURL(url string) (ParsedURL, error) {
	parsed, err := git.ParseRemoteURL(url)
	if err != nil {
		return ParsedURL{}, err
	}

	return ParsedURL{
		Provider: parsed.Provider,
		Owner:    parsed.Owner,
		Name:     parsed.Name,
	}, nil
}

func (a gitAdapter) Status(ctx context.Context, worktreePath, remote string) (*WorktreeGitStatus, error) {
	status, err := a.Service.Status(ctx, worktreePath, remote)
	if err != nil {
		return nil, err
	}

	return &WorktreeGitStatus{
		Branch:        status.Branch,
		Head:          status.Head,
		CommitMessage: status.CommitMessage,
		Dirty:         status.Dirty,
		Ahead:         status.Ahead,
		Behind:        status.Behind,
	}, nil
}

// installAdapter bridges the install service onto the Installer contract.
type installAdapter struct {
	service *install.Service
}

func newInstallAdapter(service *install.Service) Installer {
	return installAdapter{service: service}
}

func (a installAdapter) DetectManagers(dir string) []string {
	return lo.Map(install.Detect(dir), func(pm install.PackageManager, _ int) string {
		return pm.Command()
	})
}

func (a installAdapter) Install(ctx context.Context, dir, manager string) error {
	return a.service.Run(ctx, dir, install.PackageManager(manager))
}
