package state

import (
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"

	"github.com/arbor-dev/arbor/internal/repos"
)

func Module() fx.Option {
	return fx.Module(
		"state",
		logger.WithNamedLogger("state"),
		fx.Provide(NewBroadcaster),
		fx.Provide(func(b *Broadcaster) repos.Notifier { return b }),
	)
}
