package services

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/store"
	"github.com/arnold/kanban-live/internal/testutil"
	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"
)

type fakeSender struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.sent = append(f.sent, msg)
	return "projects/test/messages/1", f.err
}

func seedUsers(t *testing.T) *store.Store {
	s := store.New(testutil.NewDB(t))
	ctx := context.Background()
	for _, name := range []string{"bob", "carol", "dave"} {
		u := &models.User{Username: name, DisplayName: name, Email: name + "@example.com"}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	assert.Equal(t, s.SetDeviceToken(ctx, "bob", "bob-token"), nil)
	assert.Equal(t, s.SetDeviceToken(ctx, "carol", "carol-token"), nil)
	assert.Equal(t, s.SetOnline(ctx, "carol", "conn-1"), nil)
	return s
}

func TestCardAssignedPushesOfflineUser(t *testing.T) {
	s := seedUsers(t)
	sender := &fakeSender{}
	notify := NewNotificationService(s, NewPushService(sender, s))
	card := &models.Card{ID: uuid.New(), BoardID: uuid.New(), Title: "Ship it"}

	notify.CardAssigned(context.Background(), card, "bob", "alice")
	assert.Equal(t, len(sender.sent), 1)
	assert.Equal(t, sender.sent[0].Token, "bob-token")
	assert.Equal(t, sender.sent[0].Data["cardId"], card.ID.String())
	assert.Equal(t, sender.sent[0].Data["type"], models.NotificationCardAssigned)
	assert.Equal(t, sender.sent[0].Notification.Body, `alice assigned you "Ship it"`)

	inbox, err := s.ListNotifications(context.Background(), "bob", 20, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, inbox.Total, int64(1))
	assert.Equal(t, inbox.Unread, int64(1))
	assert.Equal(t, inbox.Notifications[0].Title, "Card assigned to you")
}

func TestCardAssignedSkipsPush(t *testing.T) {
	s := seedUsers(t)
	sender := &fakeSender{}
	notify := NewNotificationService(s, NewPushService(sender, s))
	card := &models.Card{ID: uuid.New(), Title: "x"}

	notify.CardAssigned(context.Background(), card, "carol", "alice") // online
	notify.CardAssigned(context.Background(), card, "dave", "alice")  // no token
	notify.CardAssigned(context.Background(), card, "ghost", "alice") // unknown
	assert.Equal(t, len(sender.sent), 0)

	// online and tokenless users still get an inbox entry
	for _, name := range []string{"carol", "dave"} {
		inbox, err := s.ListNotifications(context.Background(), name, 20, 0)
		assert.Equal(t, err, nil)
		assert.Equal(t, inbox.Total, int64(1))
	}
}

func TestDisabledPushStillRecords(t *testing.T) {
	s := seedUsers(t)
	push := InitPush(context.Background(), "", s)
	assert.Equal(t, push.Enabled(), false)

	notify := NewNotificationService(s, push)
	notify.CardAssigned(context.Background(), &models.Card{ID: uuid.New(), Title: "x"}, "bob", "alice")
	inbox, err := s.ListNotifications(context.Background(), "bob", 20, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, inbox.Total, int64(1))

	var nilPush *PushService
	assert.Equal(t, nilPush.Enabled(), false)
	nilPush.SendToUser(context.Background(), "bob", "t", "b", nil)
}

func TestInboxReadState(t *testing.T) {
	s := seedUsers(t)
	ctx := context.Background()
	notify := NewNotificationService(s, nil)
	for i := 0; i < 3; i++ {
		notify.Notify(ctx, &models.Notification{Username: "bob", Type: models.NotificationCardAssigned, Title: "t", Body: "b"})
	}

	inbox, err := s.ListNotifications(ctx, "bob", 2, 0)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(inbox.Notifications), 2)
	assert.Equal(t, inbox.Total, int64(3))

	assert.Equal(t, s.MarkNotificationRead(ctx, "bob", inbox.Notifications[0].ID), nil)
	assert.Equal(t, errors.Is(s.MarkNotificationRead(ctx, "carol", inbox.Notifications[1].ID), store.ErrNotFound), true)

	n, err := s.MarkAllNotificationsRead(ctx, "bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, n, int64(2))

	inbox, _ = s.ListNotifications(ctx, "bob", 20, 0)
	assert.Equal(t, inbox.Unread, int64(0))
	assert.NotEqual(t, inbox.Notifications[0].ReadAt, nil)
}

func TestSendFailureIsLogged(t *testing.T) {
	s := seedUsers(t)
	sender := &fakeSender{err: errors.New("quota exceeded")}
	push := NewPushService(sender, s)
	push.SendToUser(context.Background(), "bob", "t", "b", nil)
	assert.Equal(t, len(sender.sent), 1)
}
