package internal

import (
	"context"

	"github.com/arbor-dev/arbor/internal/config"
	"github.com/arbor-dev/arbor/internal/git"
	"github.com/arbor-dev/arbor/internal/install"
	"github.com/arbor-dev/arbor/internal/repos"
	"github.com/arbor-dev/arbor/internal/server"
	"github.com/arbor-dev/arbor/internal/share"
	"github.com/arbor-dev/arbor/internal/state"
	"github.com/arbor-dev/arbor/pkg/badgerfx"
	"github.com/capcom6/go-infra-fx/validator"
	"github.com/go-core-fx/fiberfx"
	"github.com/go-core-fx/healthfx"
	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Run() {
	fx.New(
		// CORE MODULES
		logger.Module(),
		logger.WithFxDefaultLogger(),
		badgerfx.Module(),
		healthfx.Module(),
		fiberfx.Module(),
		validator.Module,
		//
		// APP MODULES
		config.Module(),
		server.Module(),
		//
		// BUSINESS MODULES
		fx.Provide(func() healthfx.Version { return healthfx.Version{Version: "0.1.0", ReleaseID: 1} }),
		git.Module(),
		install.Module(),
		share.Module(),
		state.Module(),
		repos.Module(),
		//
		// LIFECYCLE MANAGEMENT
		fx.Invoke(func(lc fx.Lifecycle, logger *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					logger.Info("arbor starting up")
					return nil
				},
				OnStop: func(_ context.Context) error {
					logger.Info("arbor shutting down gracefully")
					return nil
				},
			})
		}),
	).Run()
}
