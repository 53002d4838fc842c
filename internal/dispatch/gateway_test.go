package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/realtime"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/arnold/kanban-live/internal/testutil"
	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
)

type assignment struct {
	cardID   uuid.UUID
	assignee string
	by       string
}

type recordingNotifier struct {
	calls []assignment
}

func (n *recordingNotifier) CardAssigned(_ context.Context, card *models.Card, assignee, by string) {
	n.calls = append(n.calls, assignment{card.ID, assignee, by})
}

type fixture struct {
	store    *store.Store
	hub      *realtime.Hub
	gateway  *Gateway
	notifier *recordingNotifier
	board    *models.Board
	origin   *realtime.Client
	peer     *realtime.Client
	actor    Actor
}

func newFixture(t *testing.T) *fixture {
	s := store.New(testutil.NewDB(t))
	hub := realtime.NewHub()
	notifier := &recordingNotifier{}
	g := New(s, hub, WithNotifier(notifier), WithDefaultBoardName("Team"))

	board, _, err := g.EnsureBoard(context.Background(), Actor{Username: "system"})
	if err != nil {
		t.Fatalf("ensure board: %v", err)
	}
	origin := realtime.NewClient("origin", 32)
	peer := realtime.NewClient("peer", 32)
	for _, c := range []*realtime.Client{origin, peer} {
		hub.Add(c)
		hub.Join(board.ID, c.ID)
	}
	return &fixture{
		store:    s,
		hub:      hub,
		gateway:  g,
		notifier: notifier,
		board:    board,
		origin:   origin,
		peer:     peer,
		actor:    Actor{Username: "alice", ConnectionID: "origin"},
	}
}

func received(c *realtime.Client) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case msg := <-c.Messages():
			env, _ := protocol.Decode(msg)
			out = append(out, env)
		default:
			return out
		}
	}
}

func (f *fixture) column(t *testing.T, name string) *models.Column {
	t.Helper()
	col, err := f.gateway.CreateColumn(context.Background(), f.actor, models.CreateColumnRequest{Name: name, BoardID: f.board.ID})
	if err != nil {
		t.Fatalf("create column: %v", err)
	}
	return col
}

func (f *fixture) card(t *testing.T, columnID uuid.UUID, title string) *models.Card {
	t.Helper()
	card, err := f.gateway.CreateCard(context.Background(), f.actor, models.CreateCardRequest{Title: title, ColumnID: columnID})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}

func TestEnsureBoardIsLazy(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, f.board.Name, "Team")

	again, created, err := f.gateway.EnsureBoard(context.Background(), f.actor)
	assert.Equal(t, err, nil)
	assert.Equal(t, created, false)
	assert.Equal(t, again.ID, f.board.ID)
}

func TestCreateColumnBroadcastsToOthers(t *testing.T) {
	f := newFixture(t)
	col := f.column(t, "Todo")

	assert.Equal(t, len(received(f.origin)), 0)
	envs := received(f.peer)
	assert.Equal(t, len(envs), 1)
	assert.Equal(t, envs[0].Event, protocol.EventColumnCreated)

	var ev protocol.ColumnCreated
	assert.Equal(t, envs[0].Payload(&ev), nil)
	assert.Equal(t, ev.Column.ID, col.ID)
	assert.Equal(t, ev.BoardID, f.board.ID)
	assert.Equal(t, ev.CreatedBy, "alice")
}

func TestCreateCardBroadcastAndActivity(t *testing.T) {
	f := newFixture(t)
	col := f.column(t, "Todo")
	received(f.peer)

	card := f.card(t, col.ID, "Write docs")
	assert.Equal(t, card.BoardID, f.board.ID)

	envs := received(f.peer)
	assert.Equal(t, envs[0].Event, protocol.EventCardCreated)
	var ev protocol.CardCreated
	assert.Equal(t, envs[0].Payload(&ev), nil)
	assert.Equal(t, ev.Card.ID, card.ID)
	assert.Equal(t, ev.ColumnID, col.ID)

	activity, total, err := f.store.ListActivity(context.Background(), f.board.ID, 10, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, total, int64(3))
	assert.Equal(t, activity[0].ActionType, models.ActionCardCreated)
	assert.Equal(t, activity[0].Actor, "alice")
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.column(t, "Todo")
	received(f.peer)

	_, err := f.gateway.CreateColumn(ctx, f.actor, models.CreateColumnRequest{Name: " ", BoardID: f.board.ID})
	assert.Equal(t, errors.Is(err, ErrInvalid), true)
	_, err = f.gateway.CreateCard(ctx, f.actor, models.CreateCardRequest{Title: "x", ColumnID: col.ID, Priority: "whenever"})
	assert.Equal(t, errors.Is(err, ErrInvalid), true)
	neg := -1
	_, err = f.gateway.MoveCard(ctx, f.actor, uuid.New(), models.MoveCardRequest{TargetColumnID: col.ID, NewPosition: &neg})
	assert.Equal(t, errors.Is(err, ErrInvalid), true)
	_, err = f.gateway.UpdateCard(ctx, f.actor, uuid.New(), models.CardPatch{})
	assert.Equal(t, errors.Is(err, ErrInvalid), true)

	assert.Equal(t, len(received(f.peer)), 0)
}

func TestNotFoundAbortsBeforeBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.column(t, "Todo")
	received(f.peer)

	_, err := f.gateway.MoveCard(ctx, f.actor, uuid.New(), models.MoveCardRequest{TargetColumnID: col.ID})
	assert.Equal(t, errors.Is(err, store.ErrNotFound), true)
	_, err = f.gateway.CreateCard(ctx, f.actor, models.CreateCardRequest{Title: "x", ColumnID: uuid.New()})
	assert.Equal(t, errors.Is(err, store.ErrNotFound), true)
	_, err = f.gateway.DeleteColumn(ctx, f.actor, uuid.New())
	assert.Equal(t, errors.Is(err, store.ErrNotFound), true)

	assert.Equal(t, len(received(f.peer)), 0)
}

func TestMoveCardBroadcastsCanonicalPosition(t *testing.T) {
	f := newFixture(t)
	todo := f.column(t, "Todo")
	done := f.column(t, "Done")
	a := f.card(t, todo.ID, "A")
	f.card(t, todo.ID, "B")
	received(f.peer)

	moved, err := f.gateway.MoveCard(context.Background(), f.actor, a.ID, models.MoveCardRequest{TargetColumnID: done.ID})
	assert.Equal(t, err, nil)
	assert.Equal(t, moved.ColumnID, done.ID)
	assert.Equal(t, moved.Position, 0)

	envs := received(f.peer)
	assert.Equal(t, envs[0].Event, protocol.EventCardMoved)
	var ev protocol.CardMoved
	assert.Equal(t, envs[0].Payload(&ev), nil)
	assert.Equal(t, ev.CardID, a.ID)
	assert.Equal(t, ev.FromColumnID, todo.ID)
	assert.Equal(t, ev.TargetColumnID, done.ID)
	assert.Equal(t, ev.NewPosition, 0)
	assert.Equal(t, ev.MovedBy, "alice")
}

func TestUpdateAndDeleteEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.column(t, "Todo")
	card := f.card(t, col.ID, "A")
	received(f.peer)

	title := "B"
	_, err := f.gateway.UpdateCard(ctx, f.actor, card.ID, models.CardPatch{Title: &title})
	assert.Equal(t, err, nil)
	_, err = f.gateway.DeleteCard(ctx, f.actor, card.ID)
	assert.Equal(t, err, nil)
	name := "Doing"
	_, err = f.gateway.UpdateColumn(ctx, f.actor, col.ID, models.ColumnPatch{Name: &name})
	assert.Equal(t, err, nil)
	_, err = f.gateway.DeleteColumn(ctx, f.actor, col.ID)
	assert.Equal(t, err, nil)

	envs := received(f.peer)
	var names []string
	for _, e := range envs {
		names = append(names, e.Event)
	}
	assert.Equal(t, names, []string{
		protocol.EventCardUpdated,
		protocol.EventCardDeleted,
		protocol.EventColumnUpdated,
		protocol.EventColumnDeleted,
	})

	var upd protocol.CardUpdated
	assert.Equal(t, envs[0].Payload(&upd), nil)
	assert.Equal(t, *upd.Updates.Title, "B")
	assert.Equal(t, upd.UpdatedBy, "alice")

	var del protocol.Deleted
	assert.Equal(t, envs[1].Payload(&del), nil)
	assert.Equal(t, del.ID, card.ID)
	assert.Equal(t, del.DeletedBy, "alice")
}

func TestBoardUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Renamed"
	board, err := f.gateway.UpdateBoard(ctx, f.actor, f.board.ID, models.BoardPatch{Name: &name})
	assert.Equal(t, err, nil)
	assert.Equal(t, board.Name, "Renamed")

	_, err = f.gateway.DeleteBoard(ctx, f.actor, f.board.ID)
	assert.Equal(t, err, nil)

	envs := received(f.peer)
	assert.Equal(t, len(envs), 2)
	assert.Equal(t, envs[0].Event, protocol.EventBoardUpdated)
	assert.Equal(t, envs[1].Event, protocol.EventBoardDeleted)

	created, isNew, err := f.gateway.EnsureBoard(ctx, f.actor)
	assert.Equal(t, err, nil)
	assert.Equal(t, isNew, true)
	assert.NotEqual(t, created.ID, f.board.ID)
}

func TestAssignmentNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.column(t, "Todo")

	bob := "bob"
	card, err := f.gateway.CreateCard(ctx, f.actor, models.CreateCardRequest{Title: "A", ColumnID: col.ID, AssignedTo: &bob})
	assert.Equal(t, err, nil)
	assert.Equal(t, f.notifier.calls, []assignment{{card.ID, "bob", "alice"}})

	title := "A2"
	_, err = f.gateway.UpdateCard(ctx, f.actor, card.ID, models.CardPatch{Title: &title, AssignedTo: &bob})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(f.notifier.calls), 1)

	self := "alice"
	_, err = f.gateway.UpdateCard(ctx, f.actor, card.ID, models.CardPatch{AssignedTo: &self})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(f.notifier.calls), 1)

	carol := "carol"
	_, err = f.gateway.UpdateCard(ctx, f.actor, card.ID, models.CardPatch{AssignedTo: &carol})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(f.notifier.calls), 2)
	assert.Equal(t, f.notifier.calls[1].assignee, "carol")
}

// Two concurrent moves of the same card: both succeed and the later write
// determines where the card ends up.
func TestSameCardMovesLastWriterWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	todo := f.column(t, "Todo")
	doing := f.column(t, "Doing")
	done := f.column(t, "Done")
	card := f.card(t, todo.ID, "A")

	bob := Actor{Username: "bob", ConnectionID: "peer"}
	_, err := f.gateway.MoveCard(ctx, f.actor, card.ID, models.MoveCardRequest{TargetColumnID: doing.ID})
	assert.Equal(t, err, nil)
	_, err = f.gateway.MoveCard(ctx, bob, card.ID, models.MoveCardRequest{TargetColumnID: done.ID})
	assert.Equal(t, err, nil)

	got, err := f.store.GetCard(ctx, card.ID)
	assert.Equal(t, err, nil)
	assert.Equal(t, got.ColumnID, done.ID)
	for _, id := range []uuid.UUID{todo.ID, doing.ID} {
		id := id
		cards, err := f.store.ListCards(ctx, store.CardFilter{ColumnID: &id})
		assert.Equal(t, err, nil)
		assert.Equal(t, len(cards), 0)
	}
}
