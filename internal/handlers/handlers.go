package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/arnold/kanban-live/internal/dispatch"
	"github.com/arnold/kanban-live/internal/export"
	"github.com/arnold/kanban-live/internal/middleware"
	"github.com/arnold/kanban-live/internal/session"
	"github.com/arnold/kanban-live/internal/store"
)

// Handler serves the REST surface and the websocket endpoint.
type Handler struct {
	store    *store.Store
	gateway  *dispatch.Gateway
	exporter *export.Service
	sessions *session.Handler
}

func New(s *store.Store, g *dispatch.Gateway, exporter *export.Service, sessions *session.Handler) *Handler {
	return &Handler{
		store:    s,
		gateway:  g,
		exporter: exporter,
		sessions: sessions,
	}
}

func actor(c *fiber.Ctx) dispatch.Actor {
	return dispatch.Actor{
		Username:     middleware.GetUsername(c),
		ConnectionID: middleware.GetConnectionID(c),
	}
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}

// paramID parses a uuid route parameter, writing a 400 when it is malformed.
func paramID(c *fiber.Ctx, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		badRequest(c, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// fail maps domain errors onto HTTP statuses.
func fail(c *fiber.Ctx, what string, err error) error {
	status := fiber.StatusInternalServerError
	message := "Failed to " + what
	switch {
	case errors.Is(err, dispatch.ErrInvalid),
		errors.Is(err, export.ErrInvalid),
		errors.Is(err, session.ErrInvalidLogin):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrNotFound):
		status, message = fiber.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrDuplicate):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, export.ErrWebhook):
		glog.Warningf("%s: %v", what, err)
		message = err.Error()
	default:
		glog.Errorf("%s: %v", what, err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
