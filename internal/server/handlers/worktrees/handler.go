package worktrees

import (
	"errors"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arbor-dev/arbor/internal/repos"
)

// Handler exposes worktree deletion. Worktrees are keyed by absolute path, so
// the path arrives as a wildcard segment rather than a route parameter.
type Handler struct {
	reposSvc *repos.Service

	logger *zap.Logger
}

func NewHandler(reposSvc *repos.Service, logger *zap.Logger) handler.Handler {
	return &Handler{
		reposSvc: reposSvc,

		logger: logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/worktrees")

	r.Use(h.errorsHandler)
	r.Delete("/*", h.delete)
}

func (h *Handler) delete(c *fiber.Ctx) error {
	// The wildcard strips the leading slash of the absolute path.
	path := "/" + c.Params("*")
	if path == "/" {
		return fiber.NewError(fiber.StatusBadRequest, "worktree path is required")
	}

	if err := h.reposSvc.DeleteWorktree(c.Context(), path); err != nil {
		return fmt.Errorf("failed to delete worktree: %w", err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	if errors.Is(err, repos.ErrWorktreeNotFound) || errors.Is(err, repos.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}
