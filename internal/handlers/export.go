package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/export"
)

func (h *Handler) ExportBacklog(c *fiber.Ctx) error {
	var req export.Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	result, err := h.exporter.ExportBacklog(c.UserContext(), req)
	if err != nil {
		return fail(c, "export backlog", err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Backlog exported to " + result.EmailTo,
		"data":    result,
	})
}
