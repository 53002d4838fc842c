package apiclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnold/kanban-live/internal/protocol"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

var ErrLoginRejected = errors.New("login rejected")

// Socket is a client websocket speaking the envelope protocol. Writes are
// serialized; reads belong to a single goroutine (Login, then Listen).
type Socket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func Dial(ctx context.Context, url string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Socket{conn: conn}, nil
}

func (s *Socket) Send(event string, data interface{}) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Login sends user-login and waits for the answer. Frames that arrive before
// it are discarded.
func (s *Socket) Login(ctx context.Context, req protocol.LoginRequest) (*protocol.LoginResult, error) {
	if err := s.Send(protocol.EventUserLogin, req); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
		defer s.conn.SetReadDeadline(time.Time{})
	}
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		env, err := protocol.Decode(frame)
		if err != nil {
			continue
		}
		switch env.Event {
		case protocol.EventUserLoggedIn:
			var res protocol.LoginResult
			if err := env.Payload(&res); err != nil {
				return nil, err
			}
			return &res, nil
		case protocol.EventUserLoginError:
			var res protocol.LoginError
			_ = env.Payload(&res)
			return nil, fmt.Errorf("%w: %s", ErrLoginRejected, res.Message)
		}
	}
}

// Listen reads frames into handle until the connection fails or ctx ends.
func (s *Socket) Listen(ctx context.Context, handle func(frame []byte)) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPingHandler(func(data string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				glog.Warningf("ws: read: %v", err)
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(frame)
	}
}

func (s *Socket) Close() error {
	s.mu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	s.mu.Unlock()
	return s.conn.Close()
}
