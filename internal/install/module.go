package install

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"install",
		logger.WithNamedLogger("install"),
		fx.Provide(NewService),
	)
}
