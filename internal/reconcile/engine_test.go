package reconcile

import (
	"errors"
	"testing"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
)

type boardFixture struct {
	board models.Board
	cols  []uuid.UUID
	cards map[string]uuid.UUID
}

// newBoard builds a board with columns named by the keys in order and cards
// titled by the values.
func newBoard(layout ...[]string) boardFixture {
	f := boardFixture{board: models.Board{ID: uuid.New(), Name: "Sprint", IsActive: true}, cards: map[string]uuid.UUID{}}
	for i, titles := range layout {
		col := models.Column{ID: uuid.New(), BoardID: f.board.ID, Name: titles[0], Position: i, IsActive: true}
		for j, title := range titles[1:] {
			id := uuid.New()
			f.cards[title] = id
			col.Cards = append(col.Cards, models.Card{
				ID: id, ColumnID: col.ID, BoardID: f.board.ID, Title: title, Position: j, IsActive: true,
			})
		}
		f.cols = append(f.cols, col.ID)
		f.board.Columns = append(f.board.Columns, col)
	}
	return f
}

func titlesOf(b models.Board) [][]string {
	var out [][]string
	for _, col := range b.Columns {
		row := []string{col.Name}
		for i, card := range col.Cards {
			if card.Position != i || card.ColumnID != col.ID {
				row = append(row, "!"+card.Title)
				continue
			}
			row = append(row, card.Title)
		}
		out = append(out, row)
	}
	return out
}

func envelope(t *testing.T, event string, data interface{}) protocol.Envelope {
	t.Helper()
	frame, err := protocol.Encode(event, data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestLocalMoveWithinColumn(t *testing.T) {
	f := newBoard([]string{"Todo", "A", "B", "C", "D"})
	e := NewEngine("alice")
	e.Load(f.board)

	from, err := e.MoveCardLocal(f.cards["A"], f.cols[0], 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, from, f.cols[0])
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "B", "C", "A", "D"}})
}

func TestLocalMoveAcrossColumns(t *testing.T) {
	f := newBoard([]string{"Todo", "A", "B", "C"}, []string{"Done", "X"})
	e := NewEngine("alice")
	e.Load(f.board)

	_, err := e.MoveCardLocal(f.cards["B"], f.cols[1], 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A", "C"}, {"Done", "B", "X"}})
}

func TestLocalIntentOnUnknownCard(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	_, err := e.MoveCardLocal(uuid.New(), f.cols[0], 0)
	assert.Equal(t, errors.Is(err, ErrUnknownEntity), true)
	assert.Equal(t, errors.Is(e.DeleteColumnLocal(uuid.New()), ErrUnknownEntity), true)
}

func TestApplySuppressesOwnActor(t *testing.T) {
	f := newBoard([]string{"Todo", "A", "B"})
	e := NewEngine("alice")
	e.Load(f.board)

	out, err := e.Apply(envelope(t, protocol.EventCardMoved, protocol.CardMoved{
		CardID: f.cards["A"], TargetColumnID: f.cols[0], NewPosition: 1, MovedBy: "alice", BoardID: f.board.ID,
	}))
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Suppressed)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A", "B"}})
}

func TestApplyIgnoresOtherBoards(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	out, err := e.Apply(envelope(t, protocol.EventCardDeleted, protocol.Deleted{
		ID: f.cards["A"], BoardID: uuid.New(), DeletedBy: "bob",
	}))
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Ignored)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A"}})
}

func TestApplyCreateDeduplicates(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	card := models.Card{ID: uuid.New(), ColumnID: f.cols[0], BoardID: f.board.ID, Title: "B", Position: 1, IsActive: true}
	env := envelope(t, protocol.EventCardCreated, protocol.CardCreated{Card: card, ColumnID: f.cols[0], BoardID: f.board.ID, CreatedBy: "bob"})

	out, err := e.Apply(env)
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Applied)
	out, err = e.Apply(env)
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Duplicate)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A", "B"}})
}

func TestApplyColumnEvents(t *testing.T) {
	f := newBoard([]string{"Todo"}, []string{"Doing"})
	e := NewEngine("alice")
	e.Load(f.board)

	col := models.Column{ID: uuid.New(), BoardID: f.board.ID, Name: "Done", Position: 2, IsActive: true}
	out, _ := e.Apply(envelope(t, protocol.EventColumnCreated, protocol.ColumnCreated{Column: col, BoardID: f.board.ID, CreatedBy: "bob"}))
	assert.Equal(t, out, Applied)

	out, _ = e.Apply(envelope(t, protocol.EventColumnMoved, protocol.ColumnMoved{ColumnID: col.ID, NewPosition: 0, MovedBy: "bob", BoardID: f.board.ID}))
	assert.Equal(t, out, Applied)

	name := "Backlog"
	out, _ = e.Apply(envelope(t, protocol.EventColumnUpdated, protocol.ColumnUpdated{ID: f.cols[0], Updates: models.ColumnPatch{Name: &name}, UpdatedBy: "bob", BoardID: f.board.ID}))
	assert.Equal(t, out, Applied)

	out, _ = e.Apply(envelope(t, protocol.EventColumnDeleted, protocol.Deleted{ID: f.cols[1], BoardID: f.board.ID, DeletedBy: "bob"}))
	assert.Equal(t, out, Applied)

	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Done"}, {"Backlog"}})
	snap := e.Snapshot()
	assert.Equal(t, snap.Columns[1].Position, 1)
}

func TestApplyUnknownEntityIsIgnored(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	out, err := e.Apply(envelope(t, protocol.EventCardMoved, protocol.CardMoved{
		CardID: uuid.New(), TargetColumnID: f.cols[0], MovedBy: "bob", BoardID: f.board.ID,
	}))
	assert.Equal(t, out, Ignored)
	assert.Equal(t, errors.Is(err, ErrUnknownEntity), true)
}

func TestApplyUpdateLastReceivedWins(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	for _, title := range []string{"first", "second"} {
		title := title
		_, err := e.Apply(envelope(t, protocol.EventCardUpdated, protocol.CardUpdated{
			ID: f.cards["A"], Updates: models.CardPatch{Title: &title}, UpdatedBy: "bob", BoardID: f.board.ID,
		}))
		assert.Equal(t, err, nil)
	}
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "second"}})
}

func TestApplyBoardEvents(t *testing.T) {
	f := newBoard([]string{"Todo"})
	e := NewEngine("alice")
	e.Load(f.board)

	name := "Q3"
	out, _ := e.Apply(envelope(t, protocol.EventBoardUpdated, protocol.BoardUpdated{ID: f.board.ID, Updates: models.BoardPatch{Name: &name}, UpdatedBy: "bob", BoardID: f.board.ID}))
	assert.Equal(t, out, Applied)
	assert.Equal(t, e.Snapshot().Name, "Q3")

	out, _ = e.Apply(envelope(t, protocol.EventBoardDeleted, protocol.Deleted{ID: f.board.ID, BoardID: f.board.ID, DeletedBy: "bob"}))
	assert.Equal(t, out, Applied)
	assert.Equal(t, e.Snapshot().IsActive, false)
	assert.Equal(t, len(e.Snapshot().Columns), 0)
}

func TestPresenceEvents(t *testing.T) {
	e := NewEngine("alice")
	e.Apply(envelope(t, protocol.EventUserConnected, protocol.PresenceEvent{Username: "bob"}))
	e.Apply(envelope(t, protocol.EventUserConnected, protocol.PresenceEvent{Username: "alice"}))
	assert.Equal(t, e.Online(), []string{"alice", "bob"})

	e.Apply(envelope(t, protocol.EventUserDisconnected, protocol.PresenceEvent{Username: "bob"}))
	assert.Equal(t, e.Online(), []string{"alice"})

	out, err := e.Apply(envelope(t, protocol.EventUserJoinedBoard, protocol.RoomEvent{Username: "bob"}))
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Ignored)
}

func TestConfirmCardReplacesGuess(t *testing.T) {
	f := newBoard([]string{"Todo", "A", "B", "C"}, []string{"Done"})
	e := NewEngine("alice")
	e.Load(f.board)

	e.MoveCardLocal(f.cards["A"], f.cols[0], 2)
	canonical := models.Card{ID: f.cards["A"], ColumnID: f.cols[1], BoardID: f.board.ID, Title: "A*", Position: 0, IsActive: true}
	assert.Equal(t, e.ConfirmCard(canonical), nil)

	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "B", "C"}, {"Done", "A*"}})
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newBoard([]string{"Todo", "A"})
	e := NewEngine("alice")
	e.Load(f.board)

	snap := e.Snapshot()
	snap.Columns[0].Cards[0].Title = "mutated"
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A"}})
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, Duplicate.String(), "duplicate")
	assert.Equal(t, Policies[KindCreateCard], AwaitServer)
	assert.Equal(t, Policies[KindMoveCard].String(), "optimistic")
}

func TestLateConfirmOverridesPeerMove(t *testing.T) {
	f := newBoard([]string{"Todo", "A", "B", "C"})
	e := NewEngine("alice")
	e.Load(f.board)

	_, err := e.MoveCardLocal(f.cards["A"], f.cols[0], 2)
	assert.Equal(t, err, nil)
	reply := models.Card{ID: f.cards["A"], ColumnID: f.cols[0], BoardID: f.board.ID, Title: "A", Position: 2, IsActive: true}

	// bob's move lands on the server after ours but reaches us first
	out, err := e.Apply(envelope(t, protocol.EventCardMoved, protocol.CardMoved{
		CardID: f.cards["A"], FromColumnID: f.cols[0], TargetColumnID: f.cols[0],
		NewPosition: 0, MovedBy: "bob", BoardID: f.board.ID,
	}))
	assert.Equal(t, err, nil)
	assert.Equal(t, out, Applied)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A", "B", "C"}})

	assert.Equal(t, e.ConfirmCard(reply), nil)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "B", "C", "A"}})

	e.Load(f.board)
	assert.Equal(t, titlesOf(e.Snapshot()), [][]string{{"Todo", "A", "B", "C"}})
}
