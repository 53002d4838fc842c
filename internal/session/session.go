// Package session implements the per-connection websocket protocol: login,
// board room membership, relay of client mutations and disconnect cleanup.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/presence"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/realtime"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/arnold/kanban-live/internal/validation"
	"github.com/golang/glog"
	"github.com/google/uuid"
)

type State int

const (
	Anonymous State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrInvalidLogin = errors.New("invalid login")

type Users interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

type Boards interface {
	GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error)
}

// Rooms is the hub surface a session drives.
type Rooms interface {
	Add(c *realtime.Client)
	Remove(id string) []uuid.UUID
	Join(boardID uuid.UUID, id string) bool
	Leave(boardID uuid.UUID, id string) bool
	InRoom(boardID uuid.UUID, id string) bool
	RoomSize(boardID uuid.UUID) int
	Broadcast(boardID uuid.UUID, excludeID string, msg []byte) int
	BroadcastAll(excludeID string, msg []byte) int
	SendTo(id string, msg []byte) bool
}

// TokenIssuer signs a token binding username to a connection.
type TokenIssuer func(username, connectionID string) (string, error)

// Handler holds the collaborators shared by all sessions.
type Handler struct {
	users    Users
	boards   Boards
	rooms    Rooms
	presence *presence.Registry
	issue    TokenIssuer

	now  func() time.Time
	pick func(n int) int
}

func NewHandler(users Users, boards Boards, rooms Rooms, registry *presence.Registry, issue TokenIssuer) *Handler {
	return &Handler{
		users:    users,
		boards:   boards,
		rooms:    rooms,
		presence: registry,
		issue:    issue,
		now:      func() time.Time { return time.Now().UTC() },
		pick:     rand.Intn,
	}
}

// Session is the protocol state of one connection. Handle is called from the
// connection's read loop; Close may race with it from the transport.
type Session struct {
	h      *Handler
	connID string

	mu    sync.Mutex
	state State
	user  *models.User
	rooms map[uuid.UUID]bool
}

// Open registers client with the hub and starts an anonymous session.
func (h *Handler) Open(client *realtime.Client) *Session {
	h.rooms.Add(client)
	return &Session{
		h:      h,
		connID: client.ID,
		state:  Anonymous,
		rooms:  make(map[uuid.UUID]bool),
	}
}

func (s *Session) ConnectionID() string { return s.connID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the bound user once authenticated.
func (s *Session) User() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Session) Joined(boardID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[boardID]
}

// Handle processes one inbound frame. Failures are reported to the peer as
// private error events and never end the session.
func (s *Session) Handle(ctx context.Context, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		s.fail("", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return
	}

	switch {
	case env.Event == protocol.EventUserLogin:
		s.login(ctx, env)
	case env.Event == protocol.EventJoinBoard:
		s.join(ctx, env)
	case env.Event == protocol.EventLeaveBoard:
		s.leave(env)
	case env.Event == protocol.EventPing:
		s.reply(protocol.EventPong, map[string]time.Time{"timestamp": s.h.now()})
	case protocol.IsMutation(env.Event):
		s.relay(env)
	default:
		s.fail(env.Event, "unknown event")
	}
}

func ValidateLogin(req protocol.LoginRequest) error {
	if err := validation.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLogin, err)
	}
	return nil
}

func (s *Session) login(ctx context.Context, env protocol.Envelope) {
	if s.state == Authenticated {
		s.loginError("already logged in")
		return
	}
	var req protocol.LoginRequest
	if err := env.Payload(&req); err != nil {
		s.loginError(err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateLogin(req); err != nil {
		s.loginError(err.Error())
		return
	}

	user, err := s.h.users.FindUserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		user = &models.User{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Email:       req.Email,
			Color:       req.Color,
		}
		if user.Color == "" {
			user.Color = models.UserColors[s.h.pick(len(models.UserColors))]
		}
		err = s.h.users.CreateUser(ctx, user)
	}
	switch {
	case errors.Is(err, store.ErrDuplicate):
		s.loginError("email already registered")
		return
	case err != nil:
		glog.Errorf("session %s: login %s: %v", s.connID, req.Username, err)
		s.loginError("login failed")
		return
	}

	token, err := s.h.issue(user.Username, s.connID)
	if err != nil {
		glog.Errorf("session %s: issue token: %v", s.connID, err)
		s.loginError("login failed")
		return
	}

	if displaced := s.h.presence.Register(ctx, s.connID, *user); displaced != "" {
		msg, _ := protocol.Encode(protocol.EventError, protocol.ErrorEvent{
			Event:   protocol.EventUserLogin,
			Message: "signed in from another connection",
		})
		s.h.rooms.SendTo(displaced, msg)
	}
	s.user = user
	s.state = Authenticated
	glog.Infof("session %s: %s logged in", s.connID, user.Username)

	s.reply(protocol.EventUserLoggedIn, protocol.LoginResult{
		Success:      true,
		User:         protocol.NewUserInfo(user),
		Token:        token,
		ConnectionID: s.connID,
	})
	s.broadcastAll(protocol.EventUserConnected, protocol.PresenceEvent{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Color:       user.Color,
		Timestamp:   s.h.now(),
	})
}

func (s *Session) join(ctx context.Context, env protocol.Envelope) {
	if s.state != Authenticated {
		s.fail(env.Event, "not authenticated")
		return
	}
	var req protocol.RoomRequest
	if err := env.Payload(&req); err != nil {
		s.fail(env.Event, err.Error())
		return
	}
	if _, err := s.h.boards.GetBoard(ctx, req.BoardID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			glog.Errorf("session %s: join %s: %v", s.connID, req.BoardID, err)
		}
		s.fail(env.Event, "board not found")
		return
	}
	if s.h.rooms.InRoom(req.BoardID, s.connID) {
		return
	}
	if !s.h.rooms.Join(req.BoardID, s.connID) {
		s.fail(env.Event, "connection closed")
		return
	}
	s.rooms[req.BoardID] = true
	s.roomEvent(protocol.EventUserJoinedBoard, req.BoardID)
}

func (s *Session) leave(env protocol.Envelope) {
	if s.state != Authenticated {
		s.fail(env.Event, "not authenticated")
		return
	}
	var req protocol.RoomRequest
	if err := env.Payload(&req); err != nil {
		s.fail(env.Event, err.Error())
		return
	}
	if !s.rooms[req.BoardID] {
		return
	}
	s.h.rooms.Leave(req.BoardID, s.connID)
	delete(s.rooms, req.BoardID)
	s.roomEvent(protocol.EventUserLeftBoard, req.BoardID)
}

// relay forwards a client mutation to the rest of its board room with the
// actor field set to the session's user.
func (s *Session) relay(env protocol.Envelope) {
	if s.state != Authenticated {
		s.fail(env.Event, "not authenticated")
		return
	}
	data, boardID, err := protocol.Stamp(env.Event, env.Data, s.user.Username)
	if err != nil {
		s.fail(env.Event, err.Error())
		return
	}
	if !s.rooms[boardID] {
		s.fail(env.Event, "not joined to board")
		return
	}
	msg, err := protocol.Encode(env.Event, data)
	if err != nil {
		s.fail(env.Event, err.Error())
		return
	}
	n := s.h.rooms.Broadcast(boardID, s.connID, msg)
	glog.V(2).Infof("session %s: relayed %s to %d peer(s) on %s", s.connID, env.Event, n, boardID)
}

// Close leaves every room, releases presence and announces the disconnect.
// Calling it again is a no-op.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return
	}
	s.state = Closed

	s.h.rooms.Remove(s.connID)
	if s.user != nil {
		for boardID := range s.rooms {
			s.roomEvent(protocol.EventUserLeftBoard, boardID)
		}
	}
	s.rooms = map[uuid.UUID]bool{}

	member, ok := s.h.presence.Unregister(ctx, s.connID)
	if !ok {
		return
	}
	glog.Infof("session %s: %s disconnected", s.connID, member.User.Username)
	s.broadcastAll(protocol.EventUserDisconnected, protocol.PresenceEvent{
		Username:    member.User.Username,
		DisplayName: member.User.DisplayName,
		Color:       member.User.Color,
		Timestamp:   s.h.now(),
	})
}

func (s *Session) roomEvent(event string, boardID uuid.UUID) {
	msg, err := protocol.Encode(event, protocol.RoomEvent{
		Username:  s.user.Username,
		SocketID:  s.connID,
		BoardID:   boardID,
		Viewers:   s.h.rooms.RoomSize(boardID),
		Timestamp: s.h.now(),
	})
	if err != nil {
		glog.Errorf("session %s: encode %s: %v", s.connID, event, err)
		return
	}
	s.h.rooms.Broadcast(boardID, s.connID, msg)
}

func (s *Session) broadcastAll(event string, data interface{}) {
	msg, err := protocol.Encode(event, data)
	if err != nil {
		glog.Errorf("session %s: encode %s: %v", s.connID, event, err)
		return
	}
	s.h.rooms.BroadcastAll("", msg)
}

func (s *Session) reply(event string, data interface{}) {
	msg, err := protocol.Encode(event, data)
	if err != nil {
		glog.Errorf("session %s: encode %s: %v", s.connID, event, err)
		return
	}
	s.h.rooms.SendTo(s.connID, msg)
}

func (s *Session) loginError(message string) {
	s.reply(protocol.EventUserLoginError, protocol.LoginError{Success: false, Message: message})
}

func (s *Session) fail(event, message string) {
	s.reply(protocol.EventError, protocol.ErrorEvent{Event: event, Message: message})
}
