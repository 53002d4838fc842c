package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnold/kanban-live/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Columns", activeOrdered).
		Preload("Columns.Cards", activeOrdered)
}

func normalizeBoard(b *models.Board) {
	if b.Columns == nil {
		b.Columns = []models.Column{}
	}
	for i := range b.Columns {
		normalizeColumn(&b.Columns[i])
	}
}

func normalizeColumn(c *models.Column) {
	if c.Cards == nil {
		c.Cards = []models.Card{}
	}
}

func (s *Store) CreateBoard(ctx context.Context, board *models.Board) error {
	board.IsActive = true
	if err := s.conn(ctx).Create(board).Error; err != nil {
		return fmt.Errorf("create board: %w", err)
	}
	normalizeBoard(board)
	return nil
}

// GetBoard returns the active board row without its columns.
func (s *Store) GetBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := firstActive(s.conn(ctx), &board, "board", id); err != nil {
		return nil, err
	}
	return &board, nil
}

// FindBoard returns the board with its active columns and cards, each list
// sorted by position.
func (s *Store) FindBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	if err := firstActive(withChildren(s.conn(ctx)), &board, "board", id); err != nil {
		return nil, err
	}
	normalizeBoard(&board)
	return &board, nil
}

func (s *Store) ListBoards(ctx context.Context) ([]models.Board, error) {
	var boards []models.Board
	err := withChildren(s.conn(ctx)).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&boards).Error
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	for i := range boards {
		normalizeBoard(&boards[i])
	}
	return boards, nil
}

// FirstBoard returns the oldest active board.
func (s *Store) FirstBoard(ctx context.Context) (*models.Board, error) {
	return firstBoard(s.conn(ctx))
}

func firstBoard(tx *gorm.DB) (*models.Board, error) {
	var board models.Board
	err := withChildren(tx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		First(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("board: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	normalizeBoard(&board)
	return &board, nil
}

// ensureBoardLock keys the postgres advisory lock taken by EnsureBoard.
const ensureBoardLock = 0x6b616e62

// EnsureBoard returns the oldest active board, creating one named name when
// none exists. created reports whether this call inserted it. On postgres
// the lookup and insert run under a transaction-scoped advisory lock, so
// concurrent callers agree on a single board.
func (s *Store) EnsureBoard(ctx context.Context, name string) (board *models.Board, created bool, err error) {
	err = s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", ensureBoardLock).Error; err != nil {
				return fmt.Errorf("lock boards: %w", err)
			}
		}
		found, err := firstBoard(tx)
		if err == nil {
			board = found
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		board = &models.Board{Name: name, IsActive: true}
		if err := tx.Create(board).Error; err != nil {
			return fmt.Errorf("create board: %w", err)
		}
		normalizeBoard(board)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return board, created, nil
}

func (s *Store) UpdateBoard(ctx context.Context, id uuid.UUID, patch models.BoardPatch) (*models.Board, error) {
	var board models.Board
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &board, "board", id); err != nil {
			return err
		}
		if fields := patch.Fields(); len(fields) > 0 {
			if err := tx.Model(&board).Updates(fields).Error; err != nil {
				return err
			}
		}
		return tx.First(&board, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *Store) SoftDeleteBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	var board models.Board
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := firstActive(tx, &board, "board", id); err != nil {
			return err
		}
		return tx.Model(&board).Update("is_active", false).Error
	})
	if err != nil {
		return nil, err
	}
	board.IsActive = false
	return &board, nil
}
