package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/middleware"
)

// GetNotifications returns paginated notifications for the current user
func (h *Handler) GetNotifications(c *fiber.Ctx) error {
	username := middleware.GetUsername(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	offset := (page - 1) * limit

	inbox, err := h.store.ListNotifications(c.UserContext(), username, limit, offset)
	if err != nil {
		return fail(c, "fetch notifications", err)
	}

	return c.JSON(fiber.Map{
		"notifications": inbox.Notifications,
		"total":         inbox.Total,
		"unread":        inbox.Unread,
		"page":          page,
		"limit":         limit,
	})
}

// MarkNotificationRead marks a single notification as read
func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, ok := paramID(c, "notification")
	if !ok {
		return nil
	}
	if err := h.store.MarkNotificationRead(c.UserContext(), middleware.GetUsername(c), id); err != nil {
		return fail(c, "mark notification read", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// MarkAllRead marks all notifications as read for the current user
func (h *Handler) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.store.MarkAllNotificationsRead(c.UserContext(), middleware.GetUsername(c))
	if err != nil {
		return fail(c, "mark notifications read", err)
	}
	return c.JSON(fiber.Map{"success": true, "updated": n})
}
