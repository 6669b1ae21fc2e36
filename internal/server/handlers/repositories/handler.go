package repositories

import (
	"errors"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbor-dev/arbor/internal/git"
	"github.com/arbor-dev/arbor/internal/repos"
	"github.com/arbor-dev/arbor/internal/server/validation"
)

type Handler struct {
	reposSvc *repos.Service

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(reposSvc *repos.Service, validator *validator.Validate, logger *zap.Logger) handler.Handler {
	return &Handler{
		reposSvc: reposSvc,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/repositories")

	r.Use(h.errorsHandler)
	r.Post("/", validation.DecorateWithBodyEx(h.validator, h.post))
	r.Get("/", h.list)
	r.Get("/:id", h.get)
	r.Delete("/:id", h.delete)
	r.Post("/:id/refresh", h.refresh)
	r.Get("/:id/worktrees", h.listWorktrees)
	r.Post("/:id/worktrees", validation.DecorateWithBodyEx(h.validator, h.postWorktree))
	r.Get("/:id/config", h.getConfig)
	r.Put("/:id/config", validation.DecorateWithBodyEx(h.validator, h.putConfig))
}

// post starts the clone pipeline. Accepted means the row was written and the
// pipeline dispatched, not that the clone succeeded.
func (h *Handler) post(c *fiber.Ctx, req *POSTRequest) error {
	repo, err := h.reposSvc.Clone(c.Context(), req.URL, req.SkipInstall)
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(newRepositoryResponse(repo))
}

func (h *Handler) list(c *fiber.Ctx) error {
	repositories, err := h.reposSvc.ListRepositories(c.Context())
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	responses := make([]RepositoryResponse, len(repositories))
	for i, repo := range repositories {
		responses[i] = newRepositoryResponse(&repo)
	}

	return c.JSON(responses)
}

func (h *Handler) get(c *fiber.Ctx) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	repo, err := h.reposSvc.GetRepository(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get repository: %w", err)
	}

	return c.JSON(newRepositoryResponse(repo))
}

func (h *Handler) delete(c *fiber.Ctx) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	if err := h.reposSvc.DeleteRepository(c.Context(), id); err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) refresh(c *fiber.Ctx) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	if err := h.reposSvc.Refresh(c.Context(), id); err != nil {
		return fmt.Errorf("failed to refresh repository: %w", err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *Handler) listWorktrees(c *fiber.Ctx) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	worktrees, err := h.reposSvc.ListWorktrees(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to list worktrees: %w", err)
	}

	responses := make([]WorktreeResponse, len(worktrees))
	for i, worktree := range worktrees {
		responses[i] = newWorktreeResponse(&worktree)
	}

	return c.JSON(responses)
}

func (h *Handler) postWorktree(c *fiber.Ctx, req *POSTWorktreeRequest) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	worktree, err := h.reposSvc.CreateWorktree(c.Context(), id, req.Branch, req.SkipInstall)
	if err != nil {
		return fmt.Errorf("failed to create worktree: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(newWorktreeResponse(worktree))
}

func (h *Handler) getConfig(c *fiber.Ctx) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	config, err := h.reposSvc.GetWorktreeConfig(c.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get worktree config: %w", err)
	}

	return c.JSON(newConfigResponse(config))
}

func (h *Handler) putConfig(c *fiber.Ctx, req *PUTConfigRequest) error {
	id, err := h.id(c)
	if err != nil {
		return err
	}

	config, err := h.reposSvc.UpdateWorktreeConfig(c.Context(), &repos.WorktreeConfig{
		RepoID:          id,
		SymlinkPatterns: req.SymlinkPatterns,
		CopyPatterns:    req.CopyPatterns,
		UpstreamRemote:  req.UpstreamRemote,
	})
	if err != nil {
		return fmt.Errorf("failed to update worktree config: %w", err)
	}

	return c.JSON(newConfigResponse(config))
}

func (h *Handler) id(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return id, nil
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, repos.ErrNotFound),
		errors.Is(err, repos.ErrWorktreeNotFound),
		errors.Is(err, repos.ErrConfigNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, repos.ErrConflict), errors.Is(err, repos.ErrWorktreeConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, repos.ErrInvalidBranch), errors.Is(err, git.ErrInvalidURL):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, repos.ErrNotAllowed):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}
