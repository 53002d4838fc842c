package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/models"
)

func (h *Handler) GetColumns(c *fiber.Ctx) error {
	boardID, err := queryID(c, "boardId")
	if err != nil {
		return badRequest(c, "Invalid board ID")
	}
	columns, err := h.store.ListColumns(c.UserContext(), boardID)
	if err != nil {
		return fail(c, "fetch columns", err)
	}
	return c.JSON(columns)
}

func (h *Handler) GetColumn(c *fiber.Ctx) error {
	id, ok := paramID(c, "column")
	if !ok {
		return nil
	}
	column, err := h.store.GetColumn(c.UserContext(), id)
	if err != nil {
		return fail(c, "fetch column", err)
	}
	return c.JSON(column)
}

func (h *Handler) CreateColumn(c *fiber.Ctx) error {
	var req models.CreateColumnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	column, err := h.gateway.CreateColumn(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, "create column", err)
	}
	return c.Status(fiber.StatusCreated).JSON(column)
}

func (h *Handler) UpdateColumn(c *fiber.Ctx) error {
	id, ok := paramID(c, "column")
	if !ok {
		return nil
	}
	var patch models.ColumnPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid request body")
	}
	column, err := h.gateway.UpdateColumn(c.UserContext(), actor(c), id, patch)
	if err != nil {
		return fail(c, "update column", err)
	}
	return c.JSON(column)
}

func (h *Handler) MoveColumn(c *fiber.Ctx) error {
	id, ok := paramID(c, "column")
	if !ok {
		return nil
	}
	var req models.MoveColumnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	column, err := h.gateway.MoveColumn(c.UserContext(), actor(c), id, req.NewPosition)
	if err != nil {
		return fail(c, "move column", err)
	}
	return c.JSON(column)
}

// DeleteColumn archives the column; its cards stay addressable by id.
func (h *Handler) DeleteColumn(c *fiber.Ctx) error {
	id, ok := paramID(c, "column")
	if !ok {
		return nil
	}
	column, err := h.gateway.DeleteColumn(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, "delete column", err)
	}
	return c.JSON(column)
}
