package repository

import (
	"context"
	"fmt"

	"github.com/Fi44er/tron_bot/internal/models"
)

// ListTransactions returns the user's newest journal rows first. An empty
// typ matches every type.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, typ models.TransactionType, limit int) ([]models.Transaction, error) {
	var rows []models.Transaction

	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	return rows, nil
}
