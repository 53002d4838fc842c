package services

import (
	"context"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/kanban-live/internal/models"
	"github.com/golang/glog"
	"google.golang.org/api/option"
)

const pushTimeout = 5 * time.Second

// Sender delivers one FCM message. *messaging.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type Users interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PushService handles sending push notifications via Firebase Cloud Messaging
type PushService struct {
	sender Sender
	users  Users
}

func NewPushService(sender Sender, users Users) *PushService {
	return &PushService{sender: sender, users: users}
}

// InitPush initializes the Firebase push notification service.
// Returns a disabled service if no service account is configured (dev mode)
// or Firebase cannot be reached.
func InitPush(ctx context.Context, serviceAccountPath string, users Users) *PushService {
	if serviceAccountPath == "" {
		glog.Info("FCM: no service account configured, push notifications disabled")
		return NewPushService(nil, users)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		glog.Errorf("FCM: failed to initialize Firebase app: %v", err)
		return NewPushService(nil, users)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		glog.Errorf("FCM: failed to get messaging client: %v", err)
		return NewPushService(nil, users)
	}

	glog.Info("FCM: push notifications enabled")
	return NewPushService(client, users)
}

func (p *PushService) Enabled() bool {
	return p != nil && p.sender != nil
}

// SendToUser sends a push notification to an offline user by username.
// No-op if push is not configured or the user has no FCM token.
func (p *PushService) SendToUser(ctx context.Context, username, title, body string, data map[string]string) {
	if !p.Enabled() {
		return
	}

	user, err := p.users.FindUserByUsername(ctx, username)
	if err != nil {
		glog.V(1).Infof("FCM: skip %s: %v", username, err)
		return
	}
	if user.FCMToken == "" || user.IsOnline {
		return
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	if data != nil {
		msg.Data = data
	}

	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	if _, err := p.sender.Send(ctx, msg); err != nil {
		glog.Warningf("FCM: failed to send to user %s: %v", username, err)
	}
}
