package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const NotificationCardAssigned = "card_assigned"

// Notification is one inbox entry. BoardID and CardID let a client navigate
// to the subject.
type Notification struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string     `json:"username" gorm:"index;not null"`
	Type      string     `json:"type" gorm:"not null"`
	Title     string     `json:"title" gorm:"not null"`
	Body      string     `json:"body"`
	BoardID   *uuid.UUID `json:"boardId,omitempty" gorm:"type:uuid"`
	CardID    *uuid.UUID `json:"cardId,omitempty" gorm:"type:uuid"`
	Read      bool       `json:"read" gorm:"index;default:false"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// PushData is the FCM data payload for the entry.
func (n *Notification) PushData() map[string]string {
	data := map[string]string{"type": n.Type}
	if n.BoardID != nil {
		data["boardId"] = n.BoardID.String()
	}
	if n.CardID != nil {
		data["cardId"] = n.CardID.String()
	}
	return data
}
