package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/store"
)

func (h *Handler) GetCards(c *fiber.Ctx) error {
	var filter store.CardFilter
	var err error
	if filter.ColumnID, err = queryID(c, "columnId"); err != nil {
		return badRequest(c, "Invalid column ID")
	}
	if filter.BoardID, err = queryID(c, "boardId"); err != nil {
		return badRequest(c, "Invalid board ID")
	}
	cards, err := h.store.ListCards(c.UserContext(), filter)
	if err != nil {
		return fail(c, "fetch cards", err)
	}
	return c.JSON(cards)
}

func (h *Handler) GetCard(c *fiber.Ctx) error {
	id, ok := paramID(c, "card")
	if !ok {
		return nil
	}
	card, err := h.store.GetCard(c.UserContext(), id)
	if err != nil {
		return fail(c, "fetch card", err)
	}
	return c.JSON(card)
}

func (h *Handler) CreateCard(c *fiber.Ctx) error {
	var req models.CreateCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	card, err := h.gateway.CreateCard(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, "create card", err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

func (h *Handler) UpdateCard(c *fiber.Ctx) error {
	id, ok := paramID(c, "card")
	if !ok {
		return nil
	}
	var patch models.CardPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "Invalid request body")
	}
	card, err := h.gateway.UpdateCard(c.UserContext(), actor(c), id, patch)
	if err != nil {
		return fail(c, "update card", err)
	}
	return c.JSON(card)
}

func (h *Handler) MoveCard(c *fiber.Ctx) error {
	id, ok := paramID(c, "card")
	if !ok {
		return nil
	}
	var req models.MoveCardRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	card, err := h.gateway.MoveCard(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, "move card", err)
	}
	return c.JSON(card)
}

func (h *Handler) DeleteCard(c *fiber.Ctx) error {
	id, ok := paramID(c, "card")
	if !ok {
		return nil
	}
	card, err := h.gateway.DeleteCard(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, "delete card", err)
	}
	return c.JSON(card)
}
