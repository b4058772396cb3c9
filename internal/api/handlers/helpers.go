package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
