package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

type AutomationHandler struct {
	s service.AutomationService
}

func NewAutomationHandler(service service.AutomationService) *AutomationHandler {
	return &AutomationHandler{s: service}
}

// Process runs one claim-and-process cycle. Item failures are reported with
// 200; only a store failure yields 500.
func (h *AutomationHandler) Process(c *fiber.Ctx) error {
	res, err := h.s.ProcessNext(c.UserContext())
	if err != nil {
		slog.Error("automation cycle failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if res == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "no items",
		})
	}

	return c.Status(fiber.StatusOK).JSON(res)
}
