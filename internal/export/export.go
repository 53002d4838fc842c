// Package export hands a board snapshot to an external workflow webhook that
// mails the backlog.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/validation"
	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

var (
	ErrInvalid = errors.New("invalid export request")
	ErrWebhook = errors.New("export webhook failed")
)

type Boards interface {
	FindBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	ListArchivedCards(ctx context.Context, boardID uuid.UUID) ([]models.Card, error)
}

type Request struct {
	BoardID         uuid.UUID `json:"boardId" validate:"required"`
	EmailTo         string    `json:"emailTo" validate:"required,email"`
	BoardName       string    `json:"boardName,omitempty"`
	IncludeArchived bool      `json:"includeArchived,omitempty"`
}

type BoardData struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Columns       []models.Column `json:"columns"`
	ArchivedCards []models.Card   `json:"archivedCards,omitempty"`
}

// Payload is the body posted to the webhook.
type Payload struct {
	BoardID         uuid.UUID `json:"boardId"`
	BoardName       string    `json:"boardName"`
	EmailTo         string    `json:"emailTo"`
	IncludeArchived bool      `json:"includeArchived"`
	BoardData       BoardData `json:"boardData"`
}

type Result struct {
	BoardID      uuid.UUID       `json:"boardId"`
	BoardName    string          `json:"boardName"`
	EmailTo      string          `json:"emailTo"`
	TotalCards   int             `json:"totalCards"`
	TotalColumns int             `json:"totalColumns"`
	ExportDate   time.Time       `json:"exportDate"`
	Response     json.RawMessage `json:"n8nResponse,omitempty"`
}

type Service struct {
	boards  Boards
	url     string
	timeout time.Duration
	now     func() time.Time
}

func New(boards Boards, webhookURL string, timeout time.Duration) *Service {
	return &Service{
		boards:  boards,
		url:     webhookURL,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r Request) validate() error {
	if err := validation.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ExportBacklog posts the board to the webhook and summarizes what was sent.
func (s *Service) ExportBacklog(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	board, err := s.boards.FindBoard(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}

	name := req.BoardName
	if name == "" {
		name = board.Name
	}
	payload := Payload{
		BoardID:         board.ID,
		BoardName:       name,
		EmailTo:         strings.TrimSpace(req.EmailTo),
		IncludeArchived: req.IncludeArchived,
		BoardData: BoardData{
			Name:        board.Name,
			Description: board.Description,
			CreatedAt:   board.CreatedAt,
			UpdatedAt:   board.UpdatedAt,
			Columns:     board.Columns,
		},
	}
	if req.IncludeArchived {
		archived, err := s.boards.ListArchivedCards(ctx, board.ID)
		if err != nil {
			return nil, err
		}
		payload.BoardData.ArchivedCards = archived
	}

	total := 0
	for _, col := range board.Columns {
		total += len(col.Cards)
	}

	response, err := s.post(payload)
	if err != nil {
		return nil, err
	}
	glog.Infof("export: board %s sent to %s (%d cards)", board.ID, payload.EmailTo, total)

	return &Result{
		BoardID:      board.ID,
		BoardName:    name,
		EmailTo:      payload.EmailTo,
		TotalCards:   total,
		TotalColumns: len(board.Columns),
		ExportDate:   s.now(),
		Response:     response,
	}, nil
}

func (s *Service) post(payload Payload) (json.RawMessage, error) {
	agent := fiber.Post(s.url).JSON(payload)
	if s.timeout > 0 {
		agent = agent.Timeout(s.timeout)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrWebhook, errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrWebhook, code)
	}
	if len(body) == 0 || !json.Valid(body) {
		return nil, nil
	}
	return json.RawMessage(body), nil
}
