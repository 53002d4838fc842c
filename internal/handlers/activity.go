package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetBoardActivity returns paginated activity for a board
func (h *Handler) GetBoardActivity(c *fiber.Ctx) error {
	boardID, ok := paramID(c, "board")
	if !ok {
		return nil
	}
	if _, err := h.store.GetBoard(c.UserContext(), boardID); err != nil {
		return fail(c, "fetch activity", err)
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	offset := (page - 1) * limit

	activities, total, err := h.store.ListActivity(c.UserContext(), boardID, limit, offset)
	if err != nil {
		return fail(c, "fetch activity", err)
	}

	return c.JSON(fiber.Map{
		"activities": activities,
		"total":      total,
		"page":       page,
		"limit":      limit,
	})
}
