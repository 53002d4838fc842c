package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnold/kanban-live/internal/models"
	"gorm.io/gorm"
)

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.conn(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user. A taken username or email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.User{}).
			Where("username = ? OR email = ?", user.Username, user.Email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("user %s: %w", user.Username, ErrDuplicate)
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
}

// SetOnline marks the user online and records its current socket.
func (s *Store) SetOnline(ctx context.Context, username, socketID string) error {
	now := s.now()
	res := s.conn(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Updates(map[string]interface{}{
			"is_online": true,
			"socket_id": socketID,
			"last_seen": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return nil
}

// MarkOffline clears the user's socket and stamps last seen, but only while
// socketID is still the user's current socket. A newer login is left intact.
func (s *Store) MarkOffline(ctx context.Context, username, socketID string) error {
	now := s.now()
	return s.conn(ctx).Model(&models.User{}).
		Where("username = ? AND socket_id = ?", username, socketID).
		Updates(map[string]interface{}{
			"is_online": false,
			"socket_id": nil,
			"last_seen": now,
		}).Error
}

// ResetPresence marks every user offline. Used at startup and shutdown since
// no connection survives a restart.
func (s *Store) ResetPresence(ctx context.Context) error {
	return s.conn(ctx).Model(&models.User{}).
		Where("is_online = ?", true).
		Updates(map[string]interface{}{
			"is_online": false,
			"socket_id": nil,
		}).Error
}

func (s *Store) ListOnlineUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).Where("is_online = ?", true).Order("username ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	return users, nil
}

// SetDeviceToken stores the FCM registration token used for push delivery.
func (s *Store) SetDeviceToken(ctx context.Context, username, token string) error {
	res := s.conn(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("fcm_token", token)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return nil
}
