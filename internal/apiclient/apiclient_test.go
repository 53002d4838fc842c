package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arnold/kanban-live/internal/dispatch"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type seen struct {
	method string
	path   string
	auth   string
	conn   string
	body   string
}

func recorder(t *testing.T, status int, reply interface{}) (*httptest.Server, *[]seen) {
	var (
		mu  sync.Mutex
		got []seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, seen{r.Method, r.URL.Path, r.Header.Get("Authorization"), r.Header.Get("X-Connection-ID"), string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestMoveCardRequest(t *testing.T) {
	cardID, colID := uuid.New(), uuid.New()
	srv, got := recorder(t, http.StatusOK, models.Card{ID: cardID, ColumnID: colID, Position: 2})

	h := NewHTTP(srv.URL+"/", time.Second)
	h.Authenticate("tok", "conn-1")
	pos := 2
	card, err := h.MoveCard(context.Background(), cardID, models.MoveCardRequest{TargetColumnID: colID, NewPosition: &pos})
	assert.Equal(t, err, nil)
	assert.Equal(t, card.ID, cardID)
	assert.Equal(t, card.Position, 2)

	req := (*got)[0]
	assert.Equal(t, req.method, http.MethodPatch)
	assert.Equal(t, req.path, "/api/cards/"+cardID.String()+"/move")
	assert.Equal(t, req.auth, "Bearer tok")
	assert.Equal(t, req.conn, "conn-1")

	var body models.MoveCardRequest
	assert.Equal(t, json.Unmarshal([]byte(req.body), &body), nil)
	assert.Equal(t, body.TargetColumnID, colID)
	assert.Equal(t, *body.NewPosition, 2)
}

func TestAnonymousGet(t *testing.T) {
	boardID := uuid.New()
	srv, got := recorder(t, http.StatusOK, models.Board{ID: boardID, Name: "Sprint"})

	board, err := NewHTTP(srv.URL, 0).GetBoard(context.Background(), boardID)
	assert.Equal(t, err, nil)
	assert.Equal(t, board.Name, "Sprint")
	assert.Equal(t, (*got)[0].auth, "")
	assert.Equal(t, (*got)[0].method, http.MethodGet)
}

func TestErrorStatusMapsToSentinels(t *testing.T) {
	cases := map[int]error{
		http.StatusNotFound:   store.ErrNotFound,
		http.StatusConflict:   store.ErrDuplicate,
		http.StatusBadRequest: dispatch.ErrInvalid,
	}
	for status, sentinel := range cases {
		srv, _ := recorder(t, status, map[string]string{"error": "nope"})
		_, err := NewHTTP(srv.URL, time.Second).DeleteCard(context.Background(), uuid.New())
		assert.Equal(t, errors.Is(err, sentinel), true)

		var apiErr *APIError
		assert.Equal(t, errors.As(err, &apiErr), true)
		assert.Equal(t, apiErr.Message, "nope")
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTP("http://127.0.0.1:1", time.Second).DefaultBoard(ctx)
	assert.Equal(t, errors.Is(err, context.Canceled), true)
}

// echoServer answers user-login and then echoes every frame back.
func echoServer(t *testing.T, accept bool) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, _ := protocol.Decode(frame)
			if env.Event != protocol.EventUserLogin {
				_ = conn.WriteMessage(websocket.TextMessage, frame)
				continue
			}
			var reply []byte
			if accept {
				reply, _ = protocol.Encode(protocol.EventUserLoggedIn, protocol.LoginResult{
					Success: true, User: protocol.UserInfo{Username: "alice"}, Token: "tok", ConnectionID: "c1",
				})
			} else {
				reply, _ = protocol.Encode(protocol.EventUserLoginError, protocol.LoginError{Message: "taken"})
			}
			pong, _ := protocol.Encode(protocol.EventUserConnected, protocol.PresenceEvent{Username: "alice"})
			_ = conn.WriteMessage(websocket.TextMessage, pong)
			_ = conn.WriteMessage(websocket.TextMessage, reply)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSocketLoginAndListen(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sock, err := Dial(ctx, echoServer(t, true))
	assert.Equal(t, err, nil)

	res, err := sock.Login(ctx, protocol.LoginRequest{Username: "alice"})
	assert.Equal(t, err, nil)
	assert.Equal(t, res.ConnectionID, "c1")
	assert.Equal(t, res.Token, "tok")

	frames := make(chan protocol.Envelope, 1)
	listenCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- sock.Listen(listenCtx, func(frame []byte) {
			env, _ := protocol.Decode(frame)
			frames <- env
		})
	}()

	assert.Equal(t, sock.Send(protocol.EventPing, nil), nil)
	select {
	case env := <-frames:
		assert.Equal(t, env.Event, protocol.EventPing)
	case <-ctx.Done():
		t.Fatal("no echo")
	}

	stop()
	assert.Equal(t, errors.Is(<-done, context.Canceled), true)
}

func TestSocketLoginRejected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sock, err := Dial(ctx, echoServer(t, false))
	assert.Equal(t, err, nil)
	defer sock.Close()

	_, err = sock.Login(ctx, protocol.LoginRequest{Username: "alice"})
	assert.Equal(t, errors.Is(err, ErrLoginRejected), true)
}
