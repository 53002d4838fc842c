package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"github.com/arnold/kanban-live/internal/realtime"
)

// WebSocketUpgrade rejects plain HTTP requests to the socket endpoint.
// Authentication happens in-band through the login event.
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// HandleWebSocket runs one realtime session for the lifetime of the connection.
func (h *Handler) HandleWebSocket(conn *websocket.Conn) {
	ctx := context.Background()
	client := realtime.NewClient(ulid.Make().String(), realtime.DefaultQueueSize)
	sess := h.sessions.Open(client)
	glog.V(1).Infof("ws %s: connected from %s", client.ID, conn.RemoteAddr())

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.WritePump(conn)
		// Unblock the read loop when the hub drops us or a write fails.
		conn.Close()
	}()

	conn.SetReadLimit(realtime.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				glog.V(1).Infof("ws %s: read: %v", client.ID, err)
			}
			break
		}
		sess.Handle(ctx, frame)
	}

	sess.Close(ctx)
	<-done
	glog.V(1).Infof("ws %s: disconnected", client.ID)
}
