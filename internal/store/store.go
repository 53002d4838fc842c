// Package store is the persistence layer behind the dispatch gateway. Parent
// to child ordering is derived from the child's parent id and position; no
// parent row carries a list of child ids.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// firstActive loads an active row by id, mapping a missing row to ErrNotFound.
func firstActive(tx *gorm.DB, dest interface{}, kind string, id uuid.UUID) error {
	err := tx.Where("id = ? AND is_active = ?", id, true).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return err
}

func activeOrdered(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true).Order("position ASC").Order("created_at ASC")
}
