package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionBoardCreated  = "board_created"
	ActionBoardUpdated  = "board_updated"
	ActionBoardDeleted  = "board_deleted"
	ActionColumnCreated = "column_created"
	ActionColumnUpdated = "column_updated"
	ActionColumnMoved   = "column_moved"
	ActionColumnDeleted = "column_deleted"
	ActionCardCreated   = "card_created"
	ActionCardUpdated   = "card_updated"
	ActionCardMoved     = "card_moved"
	ActionCardDeleted   = "card_deleted"
)

type Activity struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	BoardID    uuid.UUID  `json:"boardId" gorm:"type:uuid;index;not null"`
	Actor      string     `json:"actor" gorm:"not null"`
	ActionType string     `json:"actionType" gorm:"not null"`
	TargetID   *uuid.UUID `json:"targetId" gorm:"type:uuid"` // card or column ID depending on action
	Metadata   *string    `json:"metadata"`                  // JSON string for extra context
	CreatedAt  time.Time  `json:"createdAt"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
