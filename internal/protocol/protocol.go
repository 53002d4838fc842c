// Package protocol defines the websocket wire format: a JSON envelope
// {"event": name, "data": payload} and the payload shapes for each event.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/google/uuid"
)

// Event names sent over the websocket
const (
	EventUserLogin        = "user-login"
	EventUserLoggedIn     = "user-logged-in"
	EventUserLoginError   = "user-login-error"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"

	EventJoinBoard       = "join-board"
	EventLeaveBoard      = "leave-board"
	EventUserJoinedBoard = "user-joined-board"
	EventUserLeftBoard   = "user-left-board"

	EventCardCreated   = "card-created"
	EventCardUpdated   = "card-updated"
	EventCardMoved     = "card-moved"
	EventCardDeleted   = "card-deleted"
	EventColumnCreated = "column-created"
	EventColumnUpdated = "column-updated"
	EventColumnMoved   = "column-moved"
	EventColumnDeleted = "column-deleted"
	EventBoardUpdated  = "board-updated"
	EventBoardDeleted  = "board-deleted"

	EventPing  = "ping"
	EventPong  = "pong"
	EventError = "error"
)

var ErrMalformed = errors.New("malformed message")

type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps data in an envelope for event.
func Encode(event string, data interface{}) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}
	return env, nil
}

// Payload decodes the envelope data into v.
func (e Envelope) Payload(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformed, e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, e.Event, err)
	}
	return nil
}

var actorKeys = map[string]string{
	EventCardCreated:   "createdBy",
	EventColumnCreated: "createdBy",
	EventCardUpdated:   "updatedBy",
	EventColumnUpdated: "updatedBy",
	EventBoardUpdated:  "updatedBy",
	EventCardMoved:     "movedBy",
	EventColumnMoved:   "movedBy",
	EventCardDeleted:   "deletedBy",
	EventColumnDeleted: "deletedBy",
	EventBoardDeleted:  "deletedBy",
}

// ActorKey returns the payload field naming who made a mutation, or "" for
// events that are not board mutations.
func ActorKey(event string) string {
	return actorKeys[event]
}

// IsMutation reports whether a client may relay event to its board room.
// Board deletion is only ever announced by the server.
func IsMutation(event string) bool {
	return ActorKey(event) != "" && event != EventBoardDeleted
}

// Stamp overwrites the actor field of a mutation payload and returns the
// board it targets.
func Stamp(event string, data json.RawMessage, actor string) (json.RawMessage, uuid.UUID, error) {
	key := ActorKey(event)
	if key == "" {
		return nil, uuid.Nil, fmt.Errorf("%w: %s is not a mutation", ErrMalformed, event)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %s: %v", ErrMalformed, event, err)
	}
	var boardID uuid.UUID
	if err := json.Unmarshal(fields["boardId"], &boardID); err != nil || boardID == uuid.Nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %s: missing boardId", ErrMalformed, event)
	}
	name, _ := json.Marshal(actor)
	fields[key] = name
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return out, boardID, nil
}

type LoginRequest struct {
	Username    string `json:"username" validate:"required,min=2,max=20"`
	DisplayName string `json:"displayName" validate:"required,min=2,max=30"`
	Email       string `json:"email" validate:"required,email"`
	Color       string `json:"color,omitempty"`
}

type UserInfo struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

func NewUserInfo(u *models.User) UserInfo {
	return UserInfo{Username: u.Username, DisplayName: u.DisplayName, Color: u.Color}
}

type LoginResult struct {
	Success      bool     `json:"success"`
	User         UserInfo `json:"user"`
	Token        string   `json:"token"`
	ConnectionID string   `json:"connectionId"`
}

type LoginError struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PresenceEvent struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	Color       string    `json:"color,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type RoomRequest struct {
	BoardID  uuid.UUID `json:"boardId"`
	Username string    `json:"username,omitempty"`
}

type RoomEvent struct {
	Username  string    `json:"username"`
	SocketID  string    `json:"socketId"`
	BoardID   uuid.UUID `json:"boardId"`
	// Viewers counts the room's connections after the change.
	Viewers   int       `json:"viewers"`
	Timestamp time.Time `json:"timestamp"`
}

type ColumnCreated struct {
	Column    models.Column `json:"column"`
	BoardID   uuid.UUID     `json:"boardId"`
	CreatedBy string        `json:"createdBy"`
}

type CardCreated struct {
	Card      models.Card `json:"card"`
	ColumnID  uuid.UUID   `json:"columnId"`
	BoardID   uuid.UUID   `json:"boardId"`
	CreatedBy string      `json:"createdBy"`
}

type CardMoved struct {
	CardID         uuid.UUID `json:"cardId"`
	FromColumnID   uuid.UUID `json:"fromColumnId"`
	TargetColumnID uuid.UUID `json:"targetColumnId"`
	NewPosition    int       `json:"newPosition"`
	MovedBy        string    `json:"movedBy"`
	BoardID        uuid.UUID `json:"boardId"`
}

type ColumnMoved struct {
	ColumnID    uuid.UUID `json:"columnId"`
	NewPosition int       `json:"newPosition"`
	MovedBy     string    `json:"movedBy"`
	BoardID     uuid.UUID `json:"boardId"`
}

type CardUpdated struct {
	ID        uuid.UUID        `json:"id"`
	Updates   models.CardPatch `json:"updates"`
	UpdatedBy string           `json:"updatedBy"`
	BoardID   uuid.UUID        `json:"boardId"`
}

type ColumnUpdated struct {
	ID        uuid.UUID          `json:"id"`
	Updates   models.ColumnPatch `json:"updates"`
	UpdatedBy string             `json:"updatedBy"`
	BoardID   uuid.UUID          `json:"boardId"`
}

type BoardUpdated struct {
	ID        uuid.UUID         `json:"id"`
	Updates   models.BoardPatch `json:"updates"`
	UpdatedBy string            `json:"updatedBy"`
	BoardID   uuid.UUID         `json:"boardId"`
}

// Deleted announces a soft delete of a card, column or board.
type Deleted struct {
	ID        uuid.UUID `json:"id"`
	BoardID   uuid.UUID `json:"boardId"`
	DeletedBy string    `json:"deletedBy"`
}

type ErrorEvent struct {
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}
