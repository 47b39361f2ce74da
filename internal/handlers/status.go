package handlers

import (
	"github.com/gofiber/fiber/v2"

	"fraudsentry/internal/services/broadcaster"
	"fraudsentry/internal/services/mlmodel"
	"fraudsentry/internal/stream"
)

// StatusHandler reports pipeline health: model availability and
// consumer liveness.
type StatusHandler struct {
	model       *mlmodel.Model
	consumer    *stream.Consumer
	broadcaster *broadcaster.Broadcaster
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(model *mlmodel.Model, consumer *stream.Consumer, b *broadcaster.Broadcaster) *StatusHandler {
	return &StatusHandler{model: model, consumer: consumer, broadcaster: b}
}

// Status reports component liveness.
func (h *StatusHandler) Status(c *fiber.Ctx) error {
	processed, errored := h.consumer.Stats()
	return c.JSON(fiber.Map{
		"model_available":    h.model.Available(),
		"model_version":      h.model.Version(),
		"consumer_running":   h.consumer.Running(),
		"consumer_processed": processed,
		"consumer_errors":    errored,
		"active_subscribers": h.broadcaster.ActiveCount(),
	})
}

// HealthCheck is the basic liveness probe.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "fraud-detection-api",
	})
}
