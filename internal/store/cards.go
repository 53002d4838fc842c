package store

import (
	"context"
	"fmt"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/arnold/kanban-live/internal/ordering"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CardFilter struct {
	ColumnID *uuid.UUID
	BoardID  *uuid.UUID
}

func cardIDs(tx *gorm.DB, columnID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := activeOrdered(tx.Model(&models.Card{}).Where("column_id = ?", columnID)).Pluck("id", &ids).Error
	return ids, err
}

// writeCardOrder assigns dense positions and the owning column to ids.
func writeCardOrder(tx *gorm.DB, columnID uuid.UUID, ids []uuid.UUID) error {
	for i, id := range ids {
		err := tx.Model(&models.Card{}).Where("id = ?", id).
			Updates(map[string]interface{}{"column_id": columnID, "position": i}).Error
		if err != nil {
			return fmt.Errorf("reorder card %s: %w", id, err)
		}
	}
	return nil
}

// CreateCard inserts card into its column at position (appended when nil).
// A zero BoardID is filled from the column; a mismatching one is rejected.
func (s *Store) CreateCard(ctx context.Context, card *models.Card, position *int) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var column models.Column
		if err := firstActive(tx, &column, "column", card.ColumnID); err != nil {
			return err
		}
		if card.BoardID == uuid.Nil {
			card.BoardID = column.BoardID
		} else if card.BoardID != column.BoardID {
			return fmt.Errorf("column %s on board %s: %w", column.ID, card.BoardID, ErrNotFound)
		}
		ids, err := cardIDs(tx, column.ID)
		if err != nil {
			return err
		}
		if card.ID == uuid.Nil {
			card.ID = uuid.New()
		}
		at := len(ids)
		if position != nil {
			at = *position
		}
		ids = ordering.Insert(ids, card.ID, at)

		card.Position = ordering.IndexOf(ids, card.ID)
		card.IsActive = true
		if err := tx.Create(card).Error; err != nil {
			return fmt.Errorf("create card: %w", err)
		}
		return writeCardOrder(tx, column.ID, ids)
	})
}

func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := firstActive(s.conn(ctx), &card, "card", id); err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCards returns active cards whose column is active.
func (s *Store) ListCards(ctx context.Context, filter CardFilter) ([]models.Card, error) {
	db := s.conn(ctx)
	activeColumns := db.Model(&models.Column{}).Select("id").Where("is_active = ?", true)
	query := db.Where("column_id IN (?)", activeColumns)
	if filter.ColumnID != nil {
		query = query.Where("column_id = ?", *filter.ColumnID)
	}
	if filter.BoardID != nil {
		query = query.Where("board_id = ?", *filter.BoardID)
	}
	var cards []models.Card
	if err := activeOrdered(query).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// ListArchivedCards returns the soft-deleted cards of a board.
func (s *Store) ListArchivedCards(ctx context.Context, boardID uuid.UUID) ([]models.Card, error) {
	var cards []models.Card
	err := s.conn(ctx).
		Where("board_id = ? AND is_active = ?", boardID, false).
		Order("updated_at DESC").
		Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("list archived cards: %w", err)
	}
	return cards, nil
}

func (s *Store) UpdateCard(ctx context.Context, id uuid.UUID, patch models.CardPatch) (*models.Card, error) {
	var card models.Card
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &card, "card", id); err != nil {
			return err
		}
		if fields := patch.Fields(); len(fields) > 0 {
			if err := tx.Model(&card).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.First(&card, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// MoveCard places the card into targetColumnID at newPosition and renumbers
// the touched columns. It returns the canonical card and the column it left.
// Concurrent moves of the same card are last writer wins.
func (s *Store) MoveCard(ctx context.Context, id, targetColumnID uuid.UUID, newPosition int) (*models.Card, uuid.UUID, error) {
	var (
		card models.Card
		from uuid.UUID
	)
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &card, "card", id); err != nil {
			return err
		}
		var target models.Column
		if err := firstActive(tx, &target, "column", targetColumnID); err != nil {
			return err
		}
		if target.BoardID != card.BoardID {
			return fmt.Errorf("column %s on board %s: %w", target.ID, card.BoardID, ErrNotFound)
		}
		from = card.ColumnID

		source, err := cardIDs(tx, from)
		if err != nil {
			return err
		}
		index := ordering.IndexOf(source, id)

		if from == target.ID {
			if err := writeCardOrder(tx, target.ID, ordering.Move(source, index, newPosition)); err != nil {
				return err
			}
		} else {
			dest, err := cardIDs(tx, target.ID)
			if err != nil {
				return err
			}
			if err := writeCardOrder(tx, from, ordering.Remove(source, index)); err != nil {
				return err
			}
			if err := writeCardOrder(tx, target.ID, ordering.Insert(dest, id, newPosition)); err != nil {
				return err
			}
		}
		return tx.First(&card, "id = ?", id).Error
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &card, from, nil
}

// SoftDeleteCard deactivates the card and closes the gap in its column.
func (s *Store) SoftDeleteCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &card, "card", id); err != nil {
			return err
		}
		if err := tx.Model(&card).Update("is_active", false).Error; err != nil {
			return err
		}
		ids, err := cardIDs(tx, card.ColumnID)
		if err != nil {
			return err
		}
		return writeCardOrder(tx, card.ColumnID, ids)
	})
	if err != nil {
		return nil, err
	}
	card.IsActive = false
	return &card, nil
}
