package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Tags is stored as a JSON array in a text column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (t *Tags) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("tags: unsupported type %T", value)
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("tags: %w", err)
	}
	*t = tags
	return nil
}

type Card struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ColumnID    uuid.UUID  `json:"columnId" gorm:"type:uuid;index;not null"`
	BoardID     uuid.UUID  `json:"boardId" gorm:"type:uuid;index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	Description string     `json:"description"`
	Position    int        `json:"position" gorm:"not null;default:0"`
	Priority    Priority   `json:"priority" gorm:"not null;default:'medium'"`
	AssignedTo  *string    `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        Tags       `json:"tags" gorm:"type:text"`
	IsActive    bool       `json:"isActive" gorm:"index;not null;default:true"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	if c.Tags == nil {
		c.Tags = Tags{}
	}
	return nil
}

// Card DTOs
type CreateCardRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ColumnID    uuid.UUID  `json:"columnId"`
	BoardID     uuid.UUID  `json:"boardId"`
	Position    *int       `json:"position"`
	Priority    Priority   `json:"priority"`
	AssignedTo  *string    `json:"assignedTo"`
	DueDate     *time.Time `json:"dueDate"`
	Tags        []string   `json:"tags"`
}

type MoveCardRequest struct {
	TargetColumnID uuid.UUID `json:"targetColumnId"`
	NewPosition    *int      `json:"newPosition"`
}

// CardPatch carries a partial update. An empty AssignedTo clears the assignee.
type CardPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
}

func (p CardPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.AssignedTo == nil && p.DueDate == nil && p.Tags == nil
}

func (p CardPatch) Apply(c *Card) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == "" {
			c.AssignedTo = nil
		} else {
			assignee := *p.AssignedTo
			c.AssignedTo = &assignee
		}
	}
	if p.DueDate != nil {
		due := *p.DueDate
		c.DueDate = &due
	}
	if p.Tags != nil {
		c.Tags = append(Tags{}, (*p.Tags)...)
	}
}

func (p CardPatch) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Priority != nil {
		fields["priority"] = *p.Priority
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == "" {
			fields["assigned_to"] = nil
		} else {
			fields["assigned_to"] = *p.AssignedTo
		}
	}
	if p.DueDate != nil {
		fields["due_date"] = *p.DueDate
	}
	if p.Tags != nil {
		fields["tags"] = Tags(append([]string{}, (*p.Tags)...))
	}
	return fields
}
