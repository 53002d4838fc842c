// Package realtime fans websocket frames out to board rooms.
package realtime

import (
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

// Hub manages connected clients and their board rooms. A client whose queue
// is full when a frame is delivered is removed and closed, so one slow peer
// never blocks a broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[uuid.UUID]map[string]*Client // boardID -> clients by id
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[uuid.UUID]map[string]*Client),
	}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	glog.V(1).Infof("ws %s: connected (total: %d)", c.ID, len(h.clients))
}

// Remove detaches the client from every room and closes its queue. It returns
// the rooms the client had joined.
func (h *Hub) Remove(id string) []uuid.UUID {
	h.mu.Lock()
	c, ok := h.clients[id]
	var left []uuid.UUID
	if ok {
		delete(h.clients, id)
		for boardID, members := range h.rooms {
			if _, in := members[id]; in {
				left = append(left, boardID)
				h.leaveLocked(boardID, id)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.Close()
		glog.V(1).Infof("ws %s: removed", id)
	}
	return left
}

// Join adds a connected client to a board room.
func (h *Hub) Join(boardID uuid.UUID, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	if h.rooms[boardID] == nil {
		h.rooms[boardID] = make(map[string]*Client)
	}
	h.rooms[boardID][id] = c
	glog.V(1).Infof("ws %s: joined board %s (total: %d)", id, boardID, len(h.rooms[boardID]))
	return true
}

// Leave reports whether the client was in the room.
func (h *Hub) Leave(boardID uuid.UUID, id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(boardID, id)
}

func (h *Hub) leaveLocked(boardID uuid.UUID, id string) bool {
	members, ok := h.rooms[boardID]
	if !ok {
		return false
	}
	if _, in := members[id]; !in {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.rooms, boardID)
	}
	return true
}

func (h *Hub) InRoom(boardID uuid.UUID, id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[boardID][id]
	return ok
}

func (h *Hub) RoomSize(boardID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

// Broadcast queues msg for every member of the board room except excludeID
// and returns the number of clients it reached.
func (h *Hub) Broadcast(boardID uuid.UUID, excludeID string, msg []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[boardID]))
	for id, c := range h.rooms[boardID] {
		if id != excludeID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.deliver(targets, msg)
}

// BroadcastAll queues msg for every connected client except excludeID.
func (h *Hub) BroadcastAll(excludeID string, msg []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, c := range h.clients {
		if id != excludeID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	return h.deliver(targets, msg)
}

// SendTo queues msg for a single client.
func (h *Hub) SendTo(id string, msg []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return h.deliver([]*Client{c}, msg) == 1
}

func (h *Hub) deliver(targets []*Client, msg []byte) int {
	sent := 0
	for _, c := range targets {
		if c.Enqueue(msg) {
			sent++
			continue
		}
		glog.Warningf("ws %s: send queue full, dropping client", c.ID)
		h.Remove(c.ID)
	}
	return sent
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.rooms = make(map[uuid.UUID]map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
