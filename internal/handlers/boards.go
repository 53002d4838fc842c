package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/models"
)

func (h *Handler) GetBoards(c *fiber.Ctx) error {
	boards, err := h.store.ListBoards(c.UserContext())
	if err != nil {
		return fail(c, "fetch boards", err)
	}
	return c.JSON(boards)
}

// GetDefaultBoard returns the first active board, creating one when none exist.
func (h *Handler) GetDefaultBoard(c *fiber.Ctx) error {
	a := actor(c)
	if a.Username == "" {
		a.Username = "system"
	}
	board, created, err := h.gateway.EnsureBoard(c.UserContext(), a)
	if err != nil {
		return fail(c, "load default board", err)
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(board)
	}
	return c.JSON(board)
}

func (h *Handler) GetBoard(c *fiber.Ctx) error {
	id, ok := paramID(c, "board")
	if !ok {
		return nil
	}
	board, err := h.store.FindBoard(c.UserContext(), id)
	if err != nil {
		return fail(c, "fetch board", err)
	}
	return c.JSON(board)
}

func (h *Handler) CreateBoard(c *fiber.Ctx) error {
	var req models.CreateBoardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	board, err := h.gateway.CreateBoard(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, "create board", err)
	}
	return c.Status(fiber.StatusCreated).JSON(board)
}

func (h *Handler) UpdateBoard(c *fiber.Ctx) error {
	id, ok := paramID(c, "board")
	if !ok {
		return nil
	}
	var patch models.BoardPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid request body")
	}
	board, err := h.gateway.UpdateBoard(c.UserContext(), actor(c), id, patch)
	if err != nil {
		return fail(c, "update board", err)
	}
	return c.JSON(board)
}

func (h *Handler) DeleteBoard(c *fiber.Ctx) error {
	id, ok := paramID(c, "board")
	if !ok {
		return nil
	}
	board, err := h.gateway.DeleteBoard(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, "delete board", err)
	}
	return c.JSON(board)
}
