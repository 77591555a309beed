package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"postback-relay/internal/config"
	"postback-relay/internal/model"
	"postback-relay/internal/repository"
	"postback-relay/internal/service"
)

const readyTimeout = 2 * time.Second

type PostbackController interface {
	ReceivePostback(c *fiber.Ctx) error
	Health(c *fiber.Ctx) error
	Ready(c *fiber.Ctx) error
}

// postbackController exposes HTTP handlers for tracker postbacks and probes.
type postbackController struct {
	postbackService service.PostbackService
	cfg             *config.Config
	stores          []repository.Pinger
}

// NewPostbackController builds a PostbackController. stores are checked by
// the readiness probe.
func NewPostbackController(svc service.PostbackService, cfg *config.Config, stores ...repository.Pinger) PostbackController {
	return &postbackController{postbackService: svc, cfg: cfg, stores: stores}
}

// ReceivePostback always answers 200; the JSON body carries the outcome.
func (h *postbackController) ReceivePostback(c *fiber.Ctx) error {
	kind := c.Params("kind")
	requestID, _ := c.Locals("requestid").(string)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	if !h.cfg.KindEnabled(kind) {
		slog.Warn("postback rejected: unsupported tracker kind", "request_id", requestID, "kind", kind)
		return c.Status(fiber.StatusOK).JSON(model.Outcome{Status: model.OutcomeForbidden}.Response())
	}

	ctx := c.UserContext()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	out := h.postbackService.Process(ctx, model.PostbackRequest{
		RequestID:   requestID,
		Kind:        kind,
		Secret:      c.Query("secret"),
		ContentType: string(c.Request().Header.ContentType()),
		Body:        c.Body(),
	})

	return c.Status(fiber.StatusOK).JSON(out.Response())
}

// Health is the liveness probe.
func (h *postbackController) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": h.cfg.ServiceName})
}

// Ready reports whether every backing store answers.
func (h *postbackController) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readyTimeout)
	defer cancel()

	for _, store := range h.stores {
		if err := store.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not_ready"})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
