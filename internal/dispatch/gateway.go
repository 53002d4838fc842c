// Package dispatch is the single path by which a board mutation becomes
// durable. Each operation validates, persists through the store, records an
// activity row and only then broadcasts the canonical result to the board
// room, skipping the connection that issued it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

var ErrInvalid = errors.New("invalid request")

// appendPosition places an item after its last sibling.
const appendPosition = math.MaxInt32

// Actor identifies who issued a mutation and from which connection.
type Actor struct {
	Username     string
	ConnectionID string
}

type Store interface {
	EnsureBoard(ctx context.Context, name string) (*models.Board, bool, error)
	CreateBoard(ctx context.Context, board *models.Board) error
	UpdateBoard(ctx context.Context, id uuid.UUID, patch models.BoardPatch) (*models.Board, error)
	SoftDeleteBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)

	CreateColumn(ctx context.Context, column *models.Column, position *int) error
	UpdateColumn(ctx context.Context, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error)
	MoveColumn(ctx context.Context, id uuid.UUID, newPosition int) (*models.Column, error)
	SoftDeleteColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)

	CreateCard(ctx context.Context, card *models.Card, position *int) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error)
	MoveCard(ctx context.Context, id, targetColumnID uuid.UUID, newPosition int) (*models.Card, uuid.UUID, error)
	SoftDeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error)

	LogActivity(ctx context.Context, boardID uuid.UUID, actor, actionType string, targetID *uuid.UUID, metadata map[string]interface{}) error
}

type Broadcaster interface {
	Broadcast(boardID uuid.UUID, excludeID string, msg []byte) int
}

// Notifier is told when a card gets a new assignee.
type Notifier interface {
	CardAssigned(ctx context.Context, card *models.Card, assignee, assignedBy string)
}

type Gateway struct {
	store            Store
	rooms            Broadcaster
	notify           Notifier
	defaultBoardName string
}

type Option func(*Gateway)

func WithNotifier(n Notifier) Option {
	return func(g *Gateway) { g.notify = n }
}

func WithDefaultBoardName(name string) Option {
	return func(g *Gateway) { g.defaultBoardName = name }
}

func New(s Store, rooms Broadcaster, opts ...Option) *Gateway {
	g := &Gateway{
		store:            s,
		rooms:            rooms,
		defaultBoardName: "Kanban Board",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func position(p *int) (int, error) {
	if p == nil {
		return appendPosition, nil
	}
	if *p < 0 {
		return 0, invalid("position must not be negative")
	}
	return *p, nil
}

func (g *Gateway) record(ctx context.Context, boardID uuid.UUID, actor Actor, action string, target uuid.UUID, metadata map[string]interface{}) {
	if err := g.store.LogActivity(ctx, boardID, actor.Username, action, &target, metadata); err != nil {
		glog.Warningf("dispatch: record %s on %s: %v", action, boardID, err)
	}
}

func (g *Gateway) broadcast(boardID uuid.UUID, actor Actor, event string, data interface{}) {
	msg, err := protocol.Encode(event, data)
	if err != nil {
		glog.Errorf("dispatch: encode %s: %v", event, err)
		return
	}
	n := g.rooms.Broadcast(boardID, actor.ConnectionID, msg)
	glog.V(1).Infof("dispatch: %s by %s to %d connection(s) on %s", event, actor.Username, n, boardID)
}

func (g *Gateway) assigned(ctx context.Context, card *models.Card, previous *string, actor Actor) {
	if g.notify == nil || card.AssignedTo == nil {
		return
	}
	assignee := *card.AssignedTo
	if assignee == actor.Username || (previous != nil && *previous == assignee) {
		return
	}
	g.notify.CardAssigned(ctx, card, assignee, actor.Username)
}

// EnsureBoard returns the oldest active board, creating the shared default
// board when none exists.
func (g *Gateway) EnsureBoard(ctx context.Context, actor Actor) (*models.Board, bool, error) {
	board, created, err := g.store.EnsureBoard(ctx, g.defaultBoardName)
	if err != nil || !created {
		return board, false, err
	}
	g.record(ctx, board.ID, actor, models.ActionBoardCreated, board.ID, nil)
	glog.Infof("dispatch: created default board %s", board.ID)
	return board, true, nil
}

func (g *Gateway) CreateBoard(ctx context.Context, actor Actor, req models.CreateBoardRequest) (*models.Board, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("board name is required")
	}
	board := &models.Board{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
	}
	if err := g.store.CreateBoard(ctx, board); err != nil {
		return nil, err
	}
	g.record(ctx, board.ID, actor, models.ActionBoardCreated, board.ID, map[string]interface{}{"name": board.Name})
	return board, nil
}

func (g *Gateway) UpdateBoard(ctx context.Context, actor Actor, id uuid.UUID, patch models.BoardPatch) (*models.Board, error) {
	if patch.Empty() {
		return nil, invalid("no fields to update")
	}
	if blank(patch.Name) {
		return nil, invalid("board name must not be empty")
	}
	board, err := g.store.UpdateBoard(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	g.record(ctx, board.ID, actor, models.ActionBoardUpdated, board.ID, nil)
	g.broadcast(board.ID, actor, protocol.EventBoardUpdated, protocol.BoardUpdated{
		ID:        board.ID,
		Updates:   patch,
		UpdatedBy: actor.Username,
		BoardID:   board.ID,
	})
	return board, nil
}

func (g *Gateway) DeleteBoard(ctx context.Context, actor Actor, id uuid.UUID) (*models.Board, error) {
	board, err := g.store.SoftDeleteBoard(ctx, id)
	if err != nil {
		return nil, err
	}
	g.record(ctx, board.ID, actor, models.ActionBoardDeleted, board.ID, nil)
	g.broadcast(board.ID, actor, protocol.EventBoardDeleted, protocol.Deleted{
		ID:        board.ID,
		BoardID:   board.ID,
		DeletedBy: actor.Username,
	})
	return board, nil
}

func (g *Gateway) CreateColumn(ctx context.Context, actor Actor, req models.CreateColumnRequest) (*models.Column, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("column name is required")
	}
	if req.BoardID == uuid.Nil {
		return nil, invalid("boardId is required")
	}
	at, err := position(req.Position)
	if err != nil {
		return nil, err
	}
	column := &models.Column{
		BoardID:     req.BoardID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
	}
	if err := g.store.CreateColumn(ctx, column, &at); err != nil {
		return nil, err
	}
	g.record(ctx, column.BoardID, actor, models.ActionColumnCreated, column.ID, map[string]interface{}{"name": column.Name})
	g.broadcast(column.BoardID, actor, protocol.EventColumnCreated, protocol.ColumnCreated{
		Column:    *column,
		BoardID:   column.BoardID,
		CreatedBy: actor.Username,
	})
	return column, nil
}

func (g *Gateway) UpdateColumn(ctx context.Context, actor Actor, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error) {
	if patch.Empty() {
		return nil, invalid("no fields to update")
	}
	if blank(patch.Name) {
		return nil, invalid("column name must not be empty")
	}
	column, err := g.store.UpdateColumn(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	g.record(ctx, column.BoardID, actor, models.ActionColumnUpdated, column.ID, nil)
	g.broadcast(column.BoardID, actor, protocol.EventColumnUpdated, protocol.ColumnUpdated{
		ID:        column.ID,
		Updates:   patch,
		UpdatedBy: actor.Username,
		BoardID:   column.BoardID,
	})
	return column, nil
}

func (g *Gateway) MoveColumn(ctx context.Context, actor Actor, id uuid.UUID, newPosition int) (*models.Column, error) {
	if newPosition < 0 {
		return nil, invalid("position must not be negative")
	}
	column, err := g.store.MoveColumn(ctx, id, newPosition)
	if err != nil {
		return nil, err
	}
	g.record(ctx, column.BoardID, actor, models.ActionColumnMoved, column.ID, map[string]interface{}{"position": column.Position})
	g.broadcast(column.BoardID, actor, protocol.EventColumnMoved, protocol.ColumnMoved{
		ColumnID:    column.ID,
		NewPosition: column.Position,
		MovedBy:     actor.Username,
		BoardID:     column.BoardID,
	})
	return column, nil
}

func (g *Gateway) DeleteColumn(ctx context.Context, actor Actor, id uuid.UUID) (*models.Column, error) {
	column, err := g.store.SoftDeleteColumn(ctx, id)
	if err != nil {
		return nil, err
	}
	g.record(ctx, column.BoardID, actor, models.ActionColumnDeleted, column.ID, nil)
	g.broadcast(column.BoardID, actor, protocol.EventColumnDeleted, protocol.Deleted{
		ID:        column.ID,
		BoardID:   column.BoardID,
		DeletedBy: actor.Username,
	})
	return column, nil
}

func (g *Gateway) CreateCard(ctx context.Context, actor Actor, req models.CreateCardRequest) (*models.Card, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, invalid("card title is required")
	}
	if req.ColumnID == uuid.Nil {
		return nil, invalid("columnId is required")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return nil, invalid("unknown priority %q", req.Priority)
	}
	at, err := position(req.Position)
	if err != nil {
		return nil, err
	}
	card := &models.Card{
		ColumnID:    req.ColumnID,
		BoardID:     req.BoardID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		Tags:        models.Tags(req.Tags),
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		card.AssignedTo = req.AssignedTo
	}
	if err := g.store.CreateCard(ctx, card, &at); err != nil {
		return nil, err
	}
	g.record(ctx, card.BoardID, actor, models.ActionCardCreated, card.ID, map[string]interface{}{"title": card.Title})
	g.broadcast(card.BoardID, actor, protocol.EventCardCreated, protocol.CardCreated{
		Card:      *card,
		ColumnID:  card.ColumnID,
		BoardID:   card.BoardID,
		CreatedBy: actor.Username,
	})
	g.assigned(ctx, card, nil, actor)
	return card, nil
}

func (g *Gateway) UpdateCard(ctx context.Context, actor Actor, id uuid.UUID, patch models.CardPatch) (*models.Card, error) {
	if patch.Empty() {
		return nil, invalid("no fields to update")
	}
	if blank(patch.Title) {
		return nil, invalid("card title must not be empty")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, invalid("unknown priority %q", *patch.Priority)
	}
	before, err := g.store.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	card, err := g.store.UpdateCard(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	g.record(ctx, card.BoardID, actor, models.ActionCardUpdated, card.ID, nil)
	g.broadcast(card.BoardID, actor, protocol.EventCardUpdated, protocol.CardUpdated{
		ID:        card.ID,
		Updates:   patch,
		UpdatedBy: actor.Username,
		BoardID:   card.BoardID,
	})
	g.assigned(ctx, card, before.AssignedTo, actor)
	return card, nil
}

// MoveCard puts the card into req.TargetColumnID. A nil NewPosition appends.
// The broadcast carries the card's canonical position after the move.
func (g *Gateway) MoveCard(ctx context.Context, actor Actor, id uuid.UUID, req models.MoveCardRequest) (*models.Card, error) {
	if req.TargetColumnID == uuid.Nil {
		return nil, invalid("targetColumnId is required")
	}
	at, err := position(req.NewPosition)
	if err != nil {
		return nil, err
	}
	card, from, err := g.store.MoveCard(ctx, id, req.TargetColumnID, at)
	if err != nil {
		return nil, err
	}
	g.record(ctx, card.BoardID, actor, models.ActionCardMoved, card.ID, map[string]interface{}{
		"fromColumnId": from,
		"toColumnId":   card.ColumnID,
		"position":     card.Position,
	})
	g.broadcast(card.BoardID, actor, protocol.EventCardMoved, protocol.CardMoved{
		CardID:         card.ID,
		FromColumnID:   from,
		TargetColumnID: card.ColumnID,
		NewPosition:    card.Position,
		MovedBy:        actor.Username,
		BoardID:        card.BoardID,
	})
	return card, nil
}

func (g *Gateway) DeleteCard(ctx context.Context, actor Actor, id uuid.UUID) (*models.Card, error) {
	card, err := g.store.SoftDeleteCard(ctx, id)
	if err != nil {
		return nil, err
	}
	g.record(ctx, card.BoardID, actor, models.ActionCardDeleted, card.ID, nil)
	g.broadcast(card.BoardID, actor, protocol.EventCardDeleted, protocol.Deleted{
		ID:        card.ID,
		BoardID:   card.BoardID,
		DeletedBy: actor.Username,
	})
	return card, nil
}
