package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/google/uuid"
)

// LogActivity records an action on a board. Metadata is stored as JSON when
// non-nil.
func (s *Store) LogActivity(ctx context.Context, boardID uuid.UUID, actor, actionType string, targetID *uuid.UUID, metadata map[string]interface{}) error {
	activity := models.Activity{
		BoardID:    boardID,
		Actor:      actor,
		ActionType: actionType,
		TargetID:   targetID,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		str := string(raw)
		activity.Metadata = &str
	}
	if err := s.conn(ctx).Create(&activity).Error; err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// ListActivity returns a page of a board's activity, newest first, and the
// total count.
func (s *Store) ListActivity(ctx context.Context, boardID uuid.UUID, limit, offset int) ([]models.Activity, int64, error) {
	db := s.conn(ctx)
	var total int64
	if err := db.Model(&models.Activity{}).Where("board_id = ?", boardID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var activities []models.Activity
	err := db.Where("board_id = ?", boardID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	return activities, total, nil
}
