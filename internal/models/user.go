package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Username    string     `json:"username" gorm:"uniqueIndex;not null"`
	DisplayName string     `json:"displayName" gorm:"not null"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Color       string     `json:"color" gorm:"default:'#007bff'"`
	IsOnline    bool       `json:"isOnline" gorm:"index;default:false"`
	LastSeen    *time.Time `json:"lastSeen"`
	SocketID    *string    `json:"socketId"`
	FCMToken    string     `json:"-" gorm:"column:fcm_token"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// User DTOs
type CreateUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Color       string `json:"color"`
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// UserColors is the palette assigned to users that did not pick a color.
var UserColors = []string{
	"#007bff", "#28a745", "#dc3545", "#ffc107", "#17a2b8",
	"#6f42c1", "#e83e8c", "#fd7e14", "#20c997", "#6c757d",
}
