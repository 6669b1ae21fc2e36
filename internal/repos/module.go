package repos

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"

	"github.com/arbor-dev/arbor/internal/share"
)

func Module() fx.Option {
	return fx.Module(
		"repos",
		logger.WithNamedLogger("repos"),
		fx.Provide(
			fx.Private,
			newGitAdapter,
			newInstallAdapter,
			func(s *share.Service) FileSharer { return s },
		),
		fx.Provide(NewStore),
		fx.Provide(NewService),
	)
}
