package handlers

import (
	"math/rand"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/arnold/kanban-live/internal/middleware"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/session"
)

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	login := protocol.LoginRequest{
		Username:    strings.TrimSpace(req.Username),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Email:       strings.TrimSpace(req.Email),
		Color:       req.Color,
	}
	if err := session.ValidateLogin(login); err != nil {
		return fail(c, "create user", err)
	}

	user := &models.User{
		Username:    login.Username,
		DisplayName: login.DisplayName,
		Email:       login.Email,
		Color:       login.Color,
	}
	if user.Color == "" {
		user.Color = models.UserColors[rand.Intn(len(models.UserColors))]
	}
	if err := h.store.CreateUser(c.UserContext(), user); err != nil {
		return fail(c, "create user", err)
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	user, err := h.store.FindUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return fail(c, "fetch user", err)
	}
	return c.JSON(user)
}

func (h *Handler) GetOnlineUsers(c *fiber.Ctx) error {
	users, err := h.store.ListOnlineUsers(c.UserContext())
	if err != nil {
		return fail(c, "fetch online users", err)
	}
	return c.JSON(users)
}

// RegisterDeviceToken stores the push token for the calling user.
func (h *Handler) RegisterDeviceToken(c *fiber.Ctx) error {
	var req models.DeviceTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return badRequest(c, "Token is required")
	}
	if err := h.store.SetDeviceToken(c.UserContext(), middleware.GetUsername(c), req.Token); err != nil {
		return fail(c, "register device token", err)
	}
	return c.JSON(fiber.Map{
		"message": "Device token registered",
	})
}
