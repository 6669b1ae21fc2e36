package config

import (
	"github.com/arbor-dev/arbor/internal/git"
	"github.com/arbor-dev/arbor/internal/repos"
	"github.com/arbor-dev/arbor/pkg/badgerfx"
	"github.com/go-core-fx/fiberfx"
	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(New),
		fx.Provide(func(cfg Config) fiberfx.Config {
			return fiberfx.Config{
				Address:     cfg.HTTP.Address,
				ProxyHeader: cfg.HTTP.ProxyHeader,
				Proxies:     cfg.HTTP.Proxies,
			}
		}),
		fx.Provide(func(cfg Config) badgerfx.Config {
			return badgerfx.Config{
				Dir: cfg.Storage.DataDir,
			}
		}),
		fx.Provide(func(cfg Config) git.Config {
			return git.Config{
				Timeout: cfg.Git.Timeout,
			}
		}),
		fx.Provide(func(cfg Config) repos.Config {
			return repos.Config{
				CodeDir:                cfg.Git.CodeDir,
				UpstreamRemote:         cfg.Git.Remote,
				DefaultSymlinkPatterns: cfg.Share.SymlinkPatterns,
				DefaultCopyPatterns:    cfg.Share.CopyPatterns,
			}
		}),
	)
}
