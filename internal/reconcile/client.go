package reconcile

import (
	"context"
	"fmt"
	"maps"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

// API performs durable requests against the server.
type API interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
	UpdateBoard(ctx context.Context, id uuid.UUID, patch models.BoardPatch) (*models.Board, error)

	CreateColumn(ctx context.Context, req models.CreateColumnRequest) (*models.Column, error)
	UpdateColumn(ctx context.Context, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error)
	MoveColumn(ctx context.Context, id uuid.UUID, newPosition int) (*models.Column, error)
	DeleteColumn(ctx context.Context, id uuid.UUID) (*models.Column, error)

	CreateCard(ctx context.Context, req models.CreateCardRequest) (*models.Card, error)
	UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error)
	MoveCard(ctx context.Context, id uuid.UUID, req models.MoveCardRequest) (*models.Card, error)
	DeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
}

type Policy int

const (
	// Optimistic applies the intent locally before the request is sent.
	Optimistic Policy = iota
	// AwaitServer changes local state only from the server's response.
	AwaitServer
)

func (p Policy) String() string {
	if p == AwaitServer {
		return "await-server"
	}
	return "optimistic"
}

type Kind string

const (
	KindCreateColumn Kind = "create-column"
	KindUpdateColumn Kind = "update-column"
	KindMoveColumn   Kind = "move-column"
	KindDeleteColumn Kind = "delete-column"
	KindCreateCard   Kind = "create-card"
	KindUpdateCard   Kind = "update-card"
	KindMoveCard     Kind = "move-card"
	KindDeleteCard   Kind = "delete-card"
	KindUpdateBoard  Kind = "update-board"
)

// Policies is the default table of how each mutation kind reaches local
// state. NewClient takes a copy. Creates wait for the server, which assigns
// their identifiers.
var Policies = map[Kind]Policy{
	KindCreateColumn: AwaitServer,
	KindCreateCard:   AwaitServer,
	KindUpdateColumn: Optimistic,
	KindMoveColumn:   Optimistic,
	KindDeleteColumn: Optimistic,
	KindUpdateCard:   Optimistic,
	KindMoveCard:     Optimistic,
	KindDeleteCard:   Optimistic,
	KindUpdateBoard:  Optimistic,
}

// Client couples an Engine with the server API. Each mutation reaches local
// state as its Policies entry says. A failed request is logged and returned;
// optimistic state is left as applied until the next Sync.
type Client struct {
	engine   *Engine
	api      API
	policies map[Kind]Policy
}

func NewClient(engine *Engine, api API) *Client {
	return &Client{engine: engine, api: api, policies: maps.Clone(Policies)}
}

func (c *Client) Engine() *Engine { return c.engine }

// Sync reloads the board from the server.
func (c *Client) Sync(ctx context.Context, boardID uuid.UUID) error {
	board, err := c.api.GetBoard(ctx, boardID)
	if err != nil {
		return c.failed("sync", err)
	}
	c.engine.Load(*board)
	return nil
}

// Receive merges one websocket frame.
func (c *Client) Receive(frame []byte) (Outcome, error) {
	env, err := protocol.Decode(frame)
	if err != nil {
		return Ignored, err
	}
	outcome, err := c.engine.Apply(env)
	if err != nil {
		glog.V(1).Infof("reconcile %s: %s %s: %v", c.engine.Username(), env.Event, outcome, err)
	}
	return outcome, err
}

func (c *Client) failed(kind Kind, err error) error {
	glog.Warningf("reconcile %s: %s failed, local state kept until resync: %v", c.engine.Username(), kind, err)
	return fmt.Errorf("%s: %w", kind, err)
}

// run applies local before persist for Optimistic kinds and after a
// successful persist otherwise. local may be nil.
func (c *Client) run(kind Kind, local, persist func() error) error {
	if local == nil {
		local = func() error { return nil }
	}
	if c.policies[kind] == Optimistic {
		if err := local(); err != nil {
			return err
		}
		if err := persist(); err != nil {
			return c.failed(kind, err)
		}
		return nil
	}
	if err := persist(); err != nil {
		return c.failed(kind, err)
	}
	if err := local(); err != nil {
		glog.Warningf("reconcile %s: %s applied after server: %v", c.engine.Username(), kind, err)
	}
	return nil
}

func (c *Client) confirmCard(card *models.Card) {
	if err := c.engine.ConfirmCard(*card); err != nil {
		glog.Warningf("reconcile %s: confirm card %s: %v", c.engine.Username(), card.ID, err)
	}
}

func (c *Client) CreateColumn(ctx context.Context, req models.CreateColumnRequest) (*models.Column, error) {
	var column *models.Column
	err := c.run(KindCreateColumn, nil, func() (err error) {
		column, err = c.api.CreateColumn(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.engine.ConfirmColumn(*column)
	return column, nil
}

func (c *Client) CreateCard(ctx context.Context, req models.CreateCardRequest) (*models.Card, error) {
	var card *models.Card
	err := c.run(KindCreateCard, nil, func() (err error) {
		card, err = c.api.CreateCard(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.confirmCard(card)
	return card, nil
}

// MoveCard moves the card and persists it. to follows ordering.Move within a
// column and ordering.Insert across columns.
func (c *Client) MoveCard(ctx context.Context, id, targetColumnID uuid.UUID, to int) (*models.Card, error) {
	var card *models.Card
	err := c.run(KindMoveCard,
		func() error {
			_, err := c.engine.MoveCardLocal(id, targetColumnID, to)
			return err
		},
		func() (err error) {
			card, err = c.api.MoveCard(ctx, id, models.MoveCardRequest{TargetColumnID: targetColumnID, NewPosition: &to})
			return err
		})
	if err != nil {
		return nil, err
	}
	c.confirmCard(card)
	return card, nil
}

func (c *Client) UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error) {
	var card *models.Card
	err := c.run(KindUpdateCard,
		func() error { return c.engine.UpdateCardLocal(id, patch) },
		func() (err error) {
			card, err = c.api.UpdateCard(ctx, id, patch)
			return err
		})
	if err != nil {
		return nil, err
	}
	c.confirmCard(card)
	return card, nil
}

func (c *Client) DeleteCard(ctx context.Context, id uuid.UUID) error {
	return c.run(KindDeleteCard,
		func() error { return c.engine.DeleteCardLocal(id) },
		func() error {
			_, err := c.api.DeleteCard(ctx, id)
			return err
		})
}

func (c *Client) MoveColumn(ctx context.Context, id uuid.UUID, to int) (*models.Column, error) {
	var column *models.Column
	err := c.run(KindMoveColumn,
		func() error { return c.engine.MoveColumnLocal(id, to) },
		func() (err error) {
			column, err = c.api.MoveColumn(ctx, id, to)
			return err
		})
	if err != nil {
		return nil, err
	}
	c.engine.ConfirmColumn(*column)
	return column, nil
}

func (c *Client) UpdateColumn(ctx context.Context, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error) {
	var column *models.Column
	err := c.run(KindUpdateColumn,
		func() error { return c.engine.UpdateColumnLocal(id, patch) },
		func() (err error) {
			column, err = c.api.UpdateColumn(ctx, id, patch)
			return err
		})
	if err != nil {
		return nil, err
	}
	c.engine.ConfirmColumn(*column)
	return column, nil
}

func (c *Client) DeleteColumn(ctx context.Context, id uuid.UUID) error {
	return c.run(KindDeleteColumn,
		func() error { return c.engine.DeleteColumnLocal(id) },
		func() error {
			_, err := c.api.DeleteColumn(ctx, id)
			return err
		})
}

func (c *Client) UpdateBoard(ctx context.Context, patch models.BoardPatch) (*models.Board, error) {
	var board *models.Board
	err := c.run(KindUpdateBoard,
		func() error {
			c.engine.UpdateBoardLocal(patch)
			return nil
		},
		func() (err error) {
			board, err = c.api.UpdateBoard(ctx, c.engine.BoardID(), patch)
			return err
		})
	if err != nil {
		return nil, err
	}
	c.engine.ConfirmBoard(*board)
	return board, nil
}
