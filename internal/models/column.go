package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Column struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BoardID     uuid.UUID `json:"boardId" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	Color       string    `json:"color" gorm:"default:'#6B7280'"`
	Position    int       `json:"position" gorm:"not null;default:0"`
	IsActive    bool      `json:"isActive" gorm:"index;not null;default:true"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Cards       []Card    `json:"cards" gorm:"foreignKey:ColumnID"`
}

func (c *Column) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Column DTOs
type CreateColumnRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BoardID     uuid.UUID `json:"boardId"`
	Position    *int      `json:"position"`
	Color       string    `json:"color"`
}

type MoveColumnRequest struct {
	NewPosition int `json:"newPosition"`
}

type ColumnPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

func (p ColumnPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Color == nil
}

func (p ColumnPatch) Apply(c *Column) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
}

func (p ColumnPatch) Fields() map[string]interface{} {
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
