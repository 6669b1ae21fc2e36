package state

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/go-core-fx/fiberfx/handler"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/arbor-dev/arbor/internal/state"
)

// Handler exposes the live state stream and a one-shot snapshot for polling
// clients.
type Handler struct {
	broadcaster *state.Broadcaster

	logger *zap.Logger
}

func NewHandler(broadcaster *state.Broadcaster, logger *zap.Logger) handler.Handler {
	return &Handler{
		broadcaster: broadcaster,

		logger: logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/state")

	r.Get("/", h.stream)
	r.Get("/snapshot", h.snapshot)
}

func (h *Handler) snapshot(c *fiber.Ctx) error {
	snapshot, err := h.broadcaster.Snapshot(c.Context())
	if err != nil {
		return fmt.Errorf("failed to compute snapshot: %w", err)
	}

	return c.JSON(snapshot)
}

// stream delivers one immediate snapshot on connect, then every broadcast
// snapshot until the client goes away.
func (h *Handler) stream(c *fiber.Ctx) error {
	initial, err := h.broadcaster.Snapshot(c.Context())
	if err != nil {
		return fmt.Errorf("failed to compute snapshot: %w", err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	id, updates := h.broadcaster.Subscribe()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.broadcaster.Unsubscribe(id)

		if !h.writeEvent(w, initial) {
			return
		}

		for snapshot := range updates {
			if !h.writeEvent(w, snapshot) {
				return
			}
		}
	}))

	return nil
}

// writeEvent reports false when the client is gone and the stream should end.
func (h *Handler) writeEvent(w *bufio.Writer, snapshot state.FullState) bool {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("failed to encode snapshot", zap.Error(err))
		return false
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}

	return w.Flush() == nil
}
