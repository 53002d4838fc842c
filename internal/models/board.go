package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Board is the shared workspace. Its column list is never stored on the row;
// it is loaded from the columns table ordered by position.
type Board struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Color       string    `json:"color" gorm:"default:'#3B82F6'"`
	IsActive    bool      `json:"isActive" gorm:"index;not null;default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Columns     []Column  `json:"columns" gorm:"foreignKey:BoardID"`
}

func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Board DTOs
type CreateBoardRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type BoardPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

func (p BoardPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil
}

func (p BoardPatch) Apply(b *Board) {
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Color != nil {
		b.Color = *p.Color
	}
}

// Fields returns the column updates for GORM.
func (p BoardPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Color != nil {
		fields["color"] = *p.Color
	}
	return fields
}
