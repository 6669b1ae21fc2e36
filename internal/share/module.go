package share

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"share",
		logger.WithNamedLogger("share"),
		fx.Provide(NewService),
	)
}
