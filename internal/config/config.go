package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-core-fx/config"
)

type http struct {
	Address     string   `koanf:"address"`
	ProxyHeader string   `koanf:"proxy_header"`
	Proxies     []string `koanf:"proxies"`
}

type storageConfig struct {
	DataDir string `koanf:"data_dir"`
}

type gitConfig struct {
	// CodeDir is the root under which repositories are cloned as
	// <code_dir>/<owner>/<name>.
	CodeDir string        `koanf:"code_dir"`
	Remote  string        `koanf:"remote"`
	Timeout time.Duration `koanf:"timeout"`
}

type shareConfig struct {
	SymlinkPatterns string `koanf:"symlink_patterns"`
	CopyPatterns    string `koanf:"copy_patterns"`
}

type Config struct {
	HTTP http `koanf:"http"`

	Storage storageConfig `koanf:"storage"`
	Git     gitConfig     `koanf:"git"`
	Share   shareConfig   `koanf:"share"`
}

func Default() Config {
	home, _ := os.UserHomeDir()

	//nolint:exhaustruct,mnd //default values
	return Config{
		HTTP: http{
			Address:     "127.0.0.1:3000",
			ProxyHeader: "X-Forwarded-For",
			Proxies:     []string{},
		},

		Storage: storageConfig{
			DataDir: "./data",
		},

		Git: gitConfig{
			CodeDir: filepath.Join(home, "code"),
			Remote:  "origin",
			Timeout: 30 * time.Second,
		},

		Share: shareConfig{
			SymlinkPatterns: ".env,.env.*,.claude/**",
			CopyPatterns:    "",
		},
	}
}

func New() (Config, error) {
	cfg := Default()

	options := []config.Option{}
	if yamlPath := os.Getenv("CONFIG_PATH"); yamlPath != "" {
		options = append(options, config.WithLocalYAML(yamlPath))
	}

	if err := config.Load(&cfg, options...); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}
