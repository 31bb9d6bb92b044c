package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func (r *Repository) BeginTransaction(ctx context.Context) (*gorm.DB, error) {
	r.logger.Debug("Starting transaction...")
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		r.logger.Errorf("Failed to start transaction: %v", tx.Error)
		return nil, tx.Error
	}
	return tx, nil
}

func (r *Repository) Commit(tx *gorm.DB) error {
	r.logger.Debug("Committing transaction...")
	if err := tx.Commit().Error; err != nil {
		r.logger.Errorf("Failed to commit transaction: %v", err)
		return err
	}
	return nil
}

func (r *Repository) Rollback(tx *gorm.DB) {
	r.logger.Debug("Rolling back transaction...")
	_ = tx.Rollback().Error
}

// inTransaction runs fn in one transaction. fn must use only the tx it is
// given. Any error or panic rolls everything back.
func (r *Repository) inTransaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx, err := r.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.Rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		r.Rollback(tx)
		return err
	}
	return r.Commit(tx)
}
