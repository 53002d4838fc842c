package services

import (
	"context"
	"errors"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/golang/glog"
)

type Inbox interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// NotificationService records inbox entries and mirrors them as push
// notifications to offline users.
type NotificationService struct {
	inbox Inbox
	push  *PushService
}

func NewNotificationService(inbox Inbox, push *PushService) *NotificationService {
	return &NotificationService{inbox: inbox, push: push}
}

func (s *NotificationService) CardAssigned(ctx context.Context, card *models.Card, assignee, assignedBy string) {
	boardID, cardID := card.BoardID, card.ID
	s.Notify(ctx, &models.Notification{
		Username: assignee,
		Type:     models.NotificationCardAssigned,
		Title:    "Card assigned to you",
		Body:     assignedBy + " assigned you \"" + card.Title + "\"",
		BoardID:  &boardID,
		CardID:   &cardID,
	})
}

// Notify stores n and pushes it. Entries for unknown users are dropped.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) {
	if err := s.inbox.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			glog.V(1).Infof("notify: skip %s: %v", n.Username, err)
			return
		}
		glog.Warningf("notify: store for %s: %v", n.Username, err)
	}
	s.push.SendToUser(ctx, n.Username, n.Title, n.Body, n.PushData())
}
