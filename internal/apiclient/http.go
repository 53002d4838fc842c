// Package apiclient is the client side transport: REST calls through Fiber's
// HTTP agent and the websocket through gorilla/websocket.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arnold/kanban-live/internal/dispatch"
	"github.com/arnold/kanban-live/internal/middleware"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server. It matches the store and
// dispatch sentinels with errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case store.ErrNotFound:
		return e.Status == fiber.StatusNotFound
	case store.ErrDuplicate:
		return e.Status == fiber.StatusConflict
	case dispatch.ErrInvalid:
		return e.Status == fiber.StatusBadRequest
	}
	return false
}

// HTTP calls the REST API.
type HTTP struct {
	base    string
	timeout time.Duration

	mu     sync.RWMutex
	token  string
	connID string
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTP{base: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// Authenticate sets the bearer token and the websocket connection that
// mutations should be attributed to.
func (h *HTTP) Authenticate(token, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	h.connID = connectionID
}

func (h *HTTP) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	url := h.base + path
	var agent *fiber.Agent
	switch method {
	case fiber.MethodGet:
		agent = fiber.Get(url)
	case fiber.MethodPost:
		agent = fiber.Post(url)
	case fiber.MethodPatch:
		agent = fiber.Patch(url)
	case fiber.MethodDelete:
		agent = fiber.Delete(url)
	default:
		return fmt.Errorf("api: unsupported method %s", method)
	}

	h.mu.RLock()
	if h.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+h.token)
	}
	if h.connID != "" {
		agent.Set(middleware.ConnectionHeader, h.connID)
	}
	h.mu.RUnlock()

	if body != nil {
		agent.JSON(body)
	}
	code, raw, errs := agent.Timeout(h.timeout).Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("api: %s %s: %w", method, path, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &msg)
		return &APIError{Status: code, Message: msg.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (h *HTTP) DefaultBoard(ctx context.Context) (*models.Board, error) {
	var board models.Board
	if err := h.do(ctx, fiber.MethodGet, "/api/boards/default", nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (h *HTTP) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := h.do(ctx, fiber.MethodGet, "/api/boards/"+id.String(), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (h *HTTP) UpdateBoard(ctx context.Context, id uuid.UUID, patch models.BoardPatch) (*models.Board, error) {
	var board models.Board
	if err := h.do(ctx, fiber.MethodPatch, "/api/boards/"+id.String(), patch, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (h *HTTP) CreateColumn(ctx context.Context, req models.CreateColumnRequest) (*models.Column, error) {
	var column models.Column
	if err := h.do(ctx, fiber.MethodPost, "/api/columns", req, &column); err != nil {
		return nil, err
	}
	return &column, nil
}

func (h *HTTP) UpdateColumn(ctx context.Context, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error) {
	var column models.Column
	if err := h.do(ctx, fiber.MethodPatch, "/api/columns/"+id.String(), patch, &column); err != nil {
		return nil, err
	}
	return &column, nil
}

func (h *HTTP) MoveColumn(ctx context.Context, id uuid.UUID, newPosition int) (*models.Column, error) {
	var column models.Column
	req := models.MoveColumnRequest{NewPosition: newPosition}
	if err := h.do(ctx, fiber.MethodPatch, "/api/columns/"+id.String()+"/move", req, &column); err != nil {
		return nil, err
	}
	return &column, nil
}

func (h *HTTP) DeleteColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	var column models.Column
	if err := h.do(ctx, fiber.MethodDelete, "/api/columns/"+id.String(), nil, &column); err != nil {
		return nil, err
	}
	return &column, nil
}

func (h *HTTP) CreateCard(ctx context.Context, req models.CreateCardRequest) (*models.Card, error) {
	var card models.Card
	if err := h.do(ctx, fiber.MethodPost, "/api/cards", req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (h *HTTP) UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error) {
	var card models.Card
	if err := h.do(ctx, fiber.MethodPatch, "/api/cards/"+id.String(), patch, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (h *HTTP) MoveCard(ctx context.Context, id uuid.UUID, req models.MoveCardRequest) (*models.Card, error) {
	var card models.Card
	if err := h.do(ctx, fiber.MethodPatch, "/api/cards/"+id.String()+"/move", req, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (h *HTTP) DeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := h.do(ctx, fiber.MethodDelete, "/api/cards/"+id.String(), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (h *HTTP) OnlineUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := h.do(ctx, fiber.MethodGet, "/api/users/online", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
