package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type QueueHandler struct {
	s service.ScheduleService
}

func NewQueueHandler(service service.ScheduleService) *QueueHandler {
	return &QueueHandler{s: service}
}

func (h *QueueHandler) Schedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	item, err := h.s.Schedule(c.UserContext(), userID, req)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *QueueHandler) BulkSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BulkScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request",
		})
	}

	items, err := h.s.BulkSchedule(c.UserContext(), userID, req)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"count": len(items),
		"items": items,
	})
}
