package realtime

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/golang/glog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	PongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than PongWait
	pingPeriod = (PongWait * 9) / 10

	// Maximum message size allowed from peer
	MaxMessageSize = 512 * 1024

	DefaultQueueSize = 256
)

// Socket is the write side of a websocket connection.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
}

// Client is one live connection's outbound queue.
type Client struct {
	ID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{ID: id, send: make(chan []byte, queueSize)}
}

// Enqueue queues msg without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Messages exposes the queue. It is closed when the client is closed.
func (c *Client) Messages() <-chan []byte {
	return c.send
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WritePump drains the queue onto sock, one envelope per frame, and pings the
// peer periodically. It returns when the queue is closed or a write fails.
func (c *Client) WritePump(sock Socket) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sock.WriteMessage(websocket.TextMessage, message); err != nil {
				glog.V(1).Infof("ws %s: write: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			_ = sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
