// Package presence tracks which user is bound to each live connection.
//
// A Registry is created when the server starts and closed at shutdown. A user
// holds at most one connection: a newer login replaces the older binding, so
// the displaced connection's eventual disconnect does not mark the user
// offline.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/golang/glog"
)

// StatusStore persists the online flag and current socket of a user.
type StatusStore interface {
	SetOnline(ctx context.Context, username, socketID string) error
	MarkOffline(ctx context.Context, username, socketID string) error
}

type Member struct {
	ConnectionID string
	User         models.User
	Since        time.Time
}

type Registry struct {
	status StatusStore
	now    func() time.Time

	mu     sync.RWMutex
	byConn map[string]Member
	byUser map[string]string // username -> connection id
}

func New(status StatusStore) *Registry {
	return &Registry{
		status: status,
		now:    time.Now,
		byConn: make(map[string]Member),
		byUser: make(map[string]string),
	}
}

// Register binds connID to user and marks the user online. It returns the
// connection that previously held the user, if any.
func (r *Registry) Register(ctx context.Context, connID string, user models.User) (displaced string) {
	r.mu.Lock()
	if m, ok := r.byConn[connID]; ok && m.User.Username == user.Username {
		r.mu.Unlock()
		return ""
	}
	if m, ok := r.byConn[connID]; ok {
		delete(r.byUser, m.User.Username)
	}
	if prev, ok := r.byUser[user.Username]; ok {
		delete(r.byConn, prev)
		displaced = prev
	}
	r.byConn[connID] = Member{ConnectionID: connID, User: user, Since: r.now()}
	r.byUser[user.Username] = connID
	r.mu.Unlock()

	if err := r.status.SetOnline(ctx, user.Username, connID); err != nil {
		glog.Errorf("presence: mark %s online: %v", user.Username, err)
	}
	glog.V(1).Infof("presence: %s bound to %s", user.Username, connID)
	return displaced
}

// Unregister drops the binding for connID and marks its user offline. The
// second result is false when the connection was never registered.
func (r *Registry) Unregister(ctx context.Context, connID string) (Member, bool) {
	r.mu.Lock()
	m, ok := r.byConn[connID]
	if ok {
		delete(r.byConn, connID)
		if r.byUser[m.User.Username] == connID {
			delete(r.byUser, m.User.Username)
		}
	}
	r.mu.Unlock()
	if !ok {
		return Member{}, false
	}

	if err := r.status.MarkOffline(ctx, m.User.Username, connID); err != nil {
		glog.Errorf("presence: mark %s offline: %v", m.User.Username, err)
	}
	glog.V(1).Infof("presence: %s released %s", m.User.Username, connID)
	return m, true
}

// ListOnline returns the bound members sorted by username.
func (r *Registry) ListOnline() []Member {
	r.mu.RLock()
	members := make([]Member, 0, len(r.byConn))
	for _, m := range r.byConn {
		members = append(members, m)
	}
	r.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].User.Username < members[j].User.Username
	})
	return members
}

// Close marks every bound user offline and empties the registry.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	members := r.byConn
	r.byConn = make(map[string]Member)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	for _, m := range members {
		if err := r.status.MarkOffline(ctx, m.User.Username, m.ConnectionID); err != nil {
			glog.Errorf("presence: mark %s offline: %v", m.User.Username, err)
		}
	}
}
