package install

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// PackageManager identifies a detected package ecosystem.
type PackageManager string

const (
	Bun   PackageManager = "bun"
	Pnpm  PackageManager = "pnpm"
	Npm   PackageManager = "npm"
	Cargo PackageManager = "cargo"
	Go    PackageManager = "go"
)

// Command returns the executable to invoke.
func (pm PackageManager) Command() string {
	return string(pm)
}

// InstallArgs returns the arguments that install dependencies for the
// ecosystem.
func (pm PackageManager) InstallArgs() []string {
	switch pm {
	case Cargo:
		return []string{"build"}
	case Go:
		return []string{"mod", "download"}
	default:
		return []string{"install"}
	}
}

// Detect returns the package managers applicable to a directory. JavaScript
// managers are mutually exclusive, chosen by lockfile; cargo and go modules
// can coexist with them.
func Detect(dir string) []PackageManager {
	var managers []PackageManager

	switch {
	case exists(dir, "bun.lock") || exists(dir, "bun.lockb"):
		managers = append(managers, Bun)
	case exists(dir, "pnpm-lock.yaml"):
		managers = append(managers, Pnpm)
	case exists(dir, "package-lock.json"), exists(dir, "package.json"):
		managers = append(managers, Npm)
	}

	if exists(dir, "Cargo.toml") {
		managers = append(managers, Cargo)
	}
	if exists(dir, "go.mod") {
		managers = append(managers, Go)
	}

	return managers
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// Service runs dependency installation as subprocesses.
type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Run installs dependencies for one package manager in dir.
func (s *Service) Run(ctx context.Context, dir string, pm PackageManager) error {
	s.logger.Info("installing dependencies",
		zap.String("dir", dir),
		zap.String("manager", pm.Command()))

	cmd := exec.CommandContext(ctx, pm.Command(), pm.InstallArgs()...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s failed: %w: %s",
			pm.Command(), strings.Join(pm.InstallArgs(), " "), err,
			strings.TrimSpace(stderr.String()))
	}

	return nil
}
