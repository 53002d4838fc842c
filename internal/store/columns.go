package store

import (
	"context"
	"fmt"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/ordering"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func columnIDs(tx *gorm.DB, boardID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := activeOrdered(tx.Model(&models.Column{}).Where("board_id = ?", boardID)).Pluck("id", &ids).Error
	return ids, err
}

func writeColumnOrder(tx *gorm.DB, ids []uuid.UUID) error {
	for i, id := range ids {
		if err := tx.Model(&models.Column{}).Where("id = ?", id).Update("position", i).Error; err != nil {
			return fmt.Errorf("reorder column %s: %w", id, err)
		}
	}
	return nil
}

// CreateColumn inserts column at position (appended when nil) among the
// board's active columns and renumbers them.
func (s *Store) CreateColumn(ctx context.Context, column *models.Column, position *int) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var board models.Board
		if err := firstActive(tx, &board, "board", column.BoardID); err != nil {
			return err
		}
		ids, err := columnIDs(tx, board.ID)
		if err != nil {
			return err
		}
		if column.ID == uuid.Nil {
			column.ID = uuid.New()
		}
		at := len(ids)
		if position != nil {
			at = *position
		}
		ids = ordering.Insert(ids, column.ID, at)

		column.Position = ordering.IndexOf(ids, column.ID)
		column.IsActive = true
		if err := tx.Create(column).Error; err != nil {
			return fmt.Errorf("create column: %w", err)
		}
		normalizeColumn(column)
		return writeColumnOrder(tx, ids)
	})
}

// GetColumn returns an active column with its active cards.
func (s *Store) GetColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	var column models.Column
	if err := firstActive(s.conn(ctx).Preload("Cards", activeOrdered), &column, "column", id); err != nil {
		return nil, err
	}
	normalizeColumn(&column)
	return &column, nil
}

// ListColumns returns active columns, optionally restricted to one board.
func (s *Store) ListColumns(ctx context.Context, boardID *uuid.UUID) ([]models.Column, error) {
	query := s.conn(ctx).Preload("Cards", activeOrdered)
	if boardID != nil {
		query = query.Where("board_id = ?", *boardID)
	}
	var columns []models.Column
	if err := activeOrdered(query).Find(&columns).Error; err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	for i := range columns {
		normalizeColumn(&columns[i])
	}
	return columns, nil
}

func (s *Store) UpdateColumn(ctx context.Context, id uuid.UUID, patch models.ColumnPatch) (*models.Column, error) {
	var column models.Column
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &column, "column", id); err != nil {
			return err
		}
		if fields := patch.Fields(); len(fields) > 0 {
			if err := tx.Model(&column).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.Preload("Cards", activeOrdered).First(&column, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	normalizeColumn(&column)
	return &column, nil
}

// MoveColumn reorders a column within its board. newPosition follows
// ordering.Move.
func (s *Store) MoveColumn(ctx context.Context, id uuid.UUID, newPosition int) (*models.Column, error) {
	var column models.Column
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &column, "column", id); err != nil {
			return err
		}
		ids, err := columnIDs(tx, column.BoardID)
		if err != nil {
			return err
		}
		ids = ordering.Move(ids, ordering.IndexOf(ids, id), newPosition)
		if err := writeColumnOrder(tx, ids); err != nil {
			return err
		}
		return tx.Preload("Cards", activeOrdered).First(&column, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	normalizeColumn(&column)
	return &column, nil
}

// SoftDeleteColumn deactivates the column and closes the gap it leaves. The
// column's cards are left untouched and stay addressable by id.
func (s *Store) SoftDeleteColumn(ctx context.Context, id uuid.UUID) (*models.Column, error) {
	var column models.Column
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &column, "column", id); err != nil {
			return err
		}
		if err := tx.Model(&column).Update("is_active", false).Error; err != nil {
			return err
		}
		ids, err := columnIDs(tx, column.BoardID)
		if err != nil {
			return err
		}
		return writeColumnOrder(tx, ids)
	})
	if err != nil {
		return nil, err
	}
	column.IsActive = false
	return &column, nil
}
