// Package reconcile keeps one client's copy of a board convergent with the
// server and with its peers.
//
// Local intents are applied optimistically or only after the server answers,
// according to Policies. Server responses replace the local guess with the
// canonical entity. Broadcasts from peers are merged by entity id: creates
// are deduplicated, everything else is applied as received, and broadcasts
// carrying the local user as actor are dropped because the local path
// already reflects them.
//
// Confirmations are not ordered against broadcasts. A peer's move that
// arrives before the reply to our own move of the same card is overwritten
// by the older reply, and the view stays behind the server until the next
// Sync. Same-entity races are last writer wins.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/ordering"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/google/uuid"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Outcome reports what Apply did with a broadcast.
type Outcome int

const (
	Applied Outcome = iota
	Suppressed
	Duplicate
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Suppressed:
		return "suppressed"
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Engine is a client's board view. All methods are safe for concurrent use.
type Engine struct {
	username string

	mu     sync.Mutex
	board  models.Board
	online map[string]protocol.PresenceEvent
}

func NewEngine(username string) *Engine {
	return &Engine{
		username: username,
		online:   make(map[string]protocol.PresenceEvent),
	}
}

func (e *Engine) Username() string { return e.username }

// Load replaces the view with a server snapshot.
func (e *Engine) Load(board models.Board) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.board = cloneBoard(board)
	renumberColumns(&e.board)
}

// Snapshot returns a copy of the current view.
func (e *Engine) Snapshot() models.Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneBoard(e.board)
}

func (e *Engine) BoardID() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.board.ID
}

// Online returns the usernames seen online, sorted.
func (e *Engine) Online() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.online))
	for name := range e.online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneBoard(b models.Board) models.Board {
	out := b
	out.Columns = make([]models.Column, len(b.Columns))
	for i, col := range b.Columns {
		out.Columns[i] = col
		out.Columns[i].Cards = append([]models.Card{}, col.Cards...)
	}
	return out
}

func renumberColumns(b *models.Board) {
	for i := range b.Columns {
		b.Columns[i].Position = i
		renumberCards(&b.Columns[i])
	}
}

func renumberCards(c *models.Column) {
	for i := range c.Cards {
		c.Cards[i].Position = i
	}
}

func (e *Engine) columnIndex(id uuid.UUID) int {
	for i, col := range e.board.Columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// findCard returns the column and card index of a card, or -1, -1.
func (e *Engine) findCard(id uuid.UUID) (int, int) {
	for ci, col := range e.board.Columns {
		for ki, card := range col.Cards {
			if card.ID == id {
				return ci, ki
			}
		}
	}
	return -1, -1
}

func unknown(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrUnknownEntity)
}

// Mutations shared by the optimistic, confirmation and broadcast paths.
// Callers hold e.mu.

func (e *Engine) insertColumn(column models.Column, at int) {
	if column.Cards == nil {
		column.Cards = []models.Card{}
	}
	e.board.Columns = ordering.Insert(e.board.Columns, column, at)
	renumberColumns(&e.board)
}

func (e *Engine) moveColumn(id uuid.UUID, to int) error {
	i := e.columnIndex(id)
	if i < 0 {
		return unknown("column", id)
	}
	e.board.Columns = ordering.Move(e.board.Columns, i, to)
	renumberColumns(&e.board)
	return nil
}

func (e *Engine) patchColumn(id uuid.UUID, patch models.ColumnPatch) error {
	i := e.columnIndex(id)
	if i < 0 {
		return unknown("column", id)
	}
	patch.Apply(&e.board.Columns[i])
	return nil
}

func (e *Engine) removeColumn(id uuid.UUID) error {
	i := e.columnIndex(id)
	if i < 0 {
		return unknown("column", id)
	}
	e.board.Columns = ordering.Remove(e.board.Columns, i)
	renumberColumns(&e.board)
	return nil
}

func (e *Engine) insertCard(card models.Card, at int) error {
	ci := e.columnIndex(card.ColumnID)
	if ci < 0 {
		return unknown("column", card.ColumnID)
	}
	col := &e.board.Columns[ci]
	col.Cards = ordering.Insert(col.Cards, card, at)
	renumberCards(col)
	return nil
}

// moveCard mirrors the server: a same-column move follows ordering.Move, a
// cross-column move inserts at the index with no adjustment.
func (e *Engine) moveCard(id, targetColumnID uuid.UUID, to int) (uuid.UUID, error) {
	ci, ki := e.findCard(id)
	if ci < 0 {
		return uuid.Nil, unknown("card", id)
	}
	ti := e.columnIndex(targetColumnID)
	if ti < 0 {
		return uuid.Nil, unknown("column", targetColumnID)
	}
	source := &e.board.Columns[ci]
	from := source.ID
	if ci == ti {
		source.Cards = ordering.Move(source.Cards, ki, to)
		renumberCards(source)
		return from, nil
	}
	card := source.Cards[ki]
	card.ColumnID = targetColumnID
	source.Cards = ordering.Remove(source.Cards, ki)
	renumberCards(source)

	target := &e.board.Columns[ti]
	target.Cards = ordering.Insert(target.Cards, card, to)
	renumberCards(target)
	return from, nil
}

func (e *Engine) patchCard(id uuid.UUID, patch models.CardPatch) error {
	ci, ki := e.findCard(id)
	if ci < 0 {
		return unknown("card", id)
	}
	patch.Apply(&e.board.Columns[ci].Cards[ki])
	return nil
}

func (e *Engine) removeCard(id uuid.UUID) error {
	ci, ki := e.findCard(id)
	if ci < 0 {
		return unknown("card", id)
	}
	col := &e.board.Columns[ci]
	col.Cards = ordering.Remove(col.Cards, ki)
	renumberCards(col)
	return nil
}

// Optimistic local intents.

func (e *Engine) MoveCardLocal(id, targetColumnID uuid.UUID, to int) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveCard(id, targetColumnID, to)
}

func (e *Engine) UpdateCardLocal(id uuid.UUID, patch models.CardPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patchCard(id, patch)
}

func (e *Engine) DeleteCardLocal(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeCard(id)
}

func (e *Engine) MoveColumnLocal(id uuid.UUID, to int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.moveColumn(id, to)
}

func (e *Engine) UpdateColumnLocal(id uuid.UUID, patch models.ColumnPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.patchColumn(id, patch)
}

func (e *Engine) DeleteColumnLocal(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeColumn(id)
}

func (e *Engine) UpdateBoardLocal(patch models.BoardPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	patch.Apply(&e.board)
}

// Server confirmations. Each replaces the local entity wholesale.

// ConfirmCard places the server's card at its canonical column and position,
// replacing any local copy. A stale card still wins over newer peer moves.
func (e *Engine) ConfirmCard(card models.Card) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ci, ki := e.findCard(card.ID); ci >= 0 {
		col := &e.board.Columns[ci]
		col.Cards = ordering.Remove(col.Cards, ki)
		renumberCards(col)
	}
	if !card.IsActive {
		return nil
	}
	return e.insertCard(card, card.Position)
}

// ConfirmColumn places the server's column at its canonical position.
func (e *Engine) ConfirmColumn(column models.Column) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.columnIndex(column.ID); i >= 0 {
		if column.Cards == nil {
			column.Cards = e.board.Columns[i].Cards
		}
		e.board.Columns = ordering.Remove(e.board.Columns, i)
	}
	if !column.IsActive {
		renumberColumns(&e.board)
		return
	}
	e.insertColumn(column, column.Position)
}

// ConfirmBoard takes the server's board fields, keeping the local columns.
func (e *Engine) ConfirmBoard(board models.Board) {
	e.mu.Lock()
	defer e.mu.Unlock()
	columns := e.board.Columns
	e.board = board
	e.board.Columns = columns
}

// Apply merges a server broadcast into the view.
func (e *Engine) Apply(env protocol.Envelope) (Outcome, error) {
	switch env.Event {
	case protocol.EventUserConnected, protocol.EventUserDisconnected:
		var ev protocol.PresenceEvent
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if env.Event == protocol.EventUserConnected {
			e.online[ev.Username] = ev
		} else {
			delete(e.online, ev.Username)
		}
		return Applied, nil
	}

	key := protocol.ActorKey(env.Event)
	if key == "" {
		return Ignored, nil
	}
	boardID, actor, err := scope(env, key)
	if err != nil {
		return Ignored, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if boardID != e.board.ID {
		return Ignored, nil
	}
	if actor == e.username {
		return Suppressed, nil
	}
	return settle(e.applyRemote(env))
}

// scope reads the board and actor of a mutation broadcast.
func scope(env protocol.Envelope, actorKey string) (uuid.UUID, string, error) {
	var fields map[string]json.RawMessage
	if err := env.Payload(&fields); err != nil {
		return uuid.Nil, "", err
	}
	var head struct {
		BoardID uuid.UUID `json:"boardId"`
	}
	if err := env.Payload(&head); err != nil {
		return uuid.Nil, "", err
	}
	var actor string
	if raw, ok := fields[actorKey]; ok {
		if err := json.Unmarshal(raw, &actor); err != nil {
			return uuid.Nil, "", fmt.Errorf("%w: %s: %v", protocol.ErrMalformed, actorKey, err)
		}
	}
	return head.BoardID, actor, nil
}

// settle reports a broadcast about an entity this view does not hold as
// ignored.
func settle(outcome Outcome, err error) (Outcome, error) {
	if errors.Is(err, ErrUnknownEntity) {
		return Ignored, err
	}
	return outcome, err
}

func (e *Engine) applyRemote(env protocol.Envelope) (Outcome, error) {
	switch env.Event {
	case protocol.EventColumnCreated:
		var ev protocol.ColumnCreated
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if e.columnIndex(ev.Column.ID) >= 0 {
			return Duplicate, nil
		}
		e.insertColumn(ev.Column, ev.Column.Position)

	case protocol.EventCardCreated:
		var ev protocol.CardCreated
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if ci, _ := e.findCard(ev.Card.ID); ci >= 0 {
			return Duplicate, nil
		}
		ev.Card.ColumnID = ev.ColumnID
		if err := e.insertCard(ev.Card, ev.Card.Position); err != nil {
			return Ignored, err
		}

	case protocol.EventCardMoved:
		var ev protocol.CardMoved
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if _, err := e.moveCard(ev.CardID, ev.TargetColumnID, ev.NewPosition); err != nil {
			return Ignored, err
		}

	case protocol.EventCardUpdated:
		var ev protocol.CardUpdated
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if err := e.patchCard(ev.ID, ev.Updates); err != nil {
			return Ignored, err
		}

	case protocol.EventCardDeleted:
		var ev protocol.Deleted
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if err := e.removeCard(ev.ID); err != nil {
			return Ignored, err
		}

	case protocol.EventColumnMoved:
		var ev protocol.ColumnMoved
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if err := e.moveColumn(ev.ColumnID, ev.NewPosition); err != nil {
			return Ignored, err
		}

	case protocol.EventColumnUpdated:
		var ev protocol.ColumnUpdated
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if err := e.patchColumn(ev.ID, ev.Updates); err != nil {
			return Ignored, err
		}

	case protocol.EventColumnDeleted:
		var ev protocol.Deleted
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		if err := e.removeColumn(ev.ID); err != nil {
			return Ignored, err
		}

	case protocol.EventBoardUpdated:
		var ev protocol.BoardUpdated
		if err := env.Payload(&ev); err != nil {
			return Ignored, err
		}
		ev.Updates.Apply(&e.board)

	case protocol.EventBoardDeleted:
		e.board.IsActive = false
		e.board.Columns = []models.Column{}

	default:
		return Ignored, nil
	}
	return Applied, nil
}
