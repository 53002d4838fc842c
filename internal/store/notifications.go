package store

import (
	"context"
	"fmt"
	"time"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateNotification stores an inbox entry for an existing user.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", n.Username).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("user %s: %w", n.Username, ErrNotFound)
		}
		if err := tx.Create(n).Error; err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		return nil
	})
}

// NotificationPage is one page of a user's inbox.
type NotificationPage struct {
	Notifications []models.Notification
	Total         int64
	Unread        int64
}

func (s *Store) ListNotifications(ctx context.Context, username string, limit, offset int) (*NotificationPage, error) {
	db := s.conn(ctx)
	page := &NotificationPage{}
	err := db.Where("username = ?", username).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&page.Notifications).Error
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if err := db.Model(&models.Notification{}).Where("username = ?", username).Count(&page.Total).Error; err != nil {
		return nil, err
	}
	err = db.Model(&models.Notification{}).
		Where("username = ? AND read = ?", username, false).
		Count(&page.Unread).Error
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, username string, id uuid.UUID) error {
	res := s.conn(ctx).Model(&models.Notification{}).
		Where("id = ? AND username = ?", id, username).
		Updates(map[string]any{"read": true, "read_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkAllNotificationsRead returns how many entries changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, username string) (int64, error) {
	res := s.conn(ctx).Model(&models.Notification{}).
		Where("username = ? AND read = ?", username, false).
		Updates(map[string]any{"read": true, "read_at": time.Now()})
	return res.RowsAffected, res.Error
}
