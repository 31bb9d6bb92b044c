package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/tron_bot/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		return fmt.Errorf("failed to create wallet for user %d: %w", wallet.UserID, err)
	}
	return nil
}

// GetActiveWallet returns the user's first active deposit wallet, or nil.
func (r *Repository) GetActiveWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id ASC").
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// ListActiveWallets returns one wallet per user: the first active one.
func (r *Repository) ListActiveWallets(ctx context.Context) ([]*models.Wallet, error) {
	var wallets []*models.Wallet

	first := r.db.Model(&models.Wallet{}).
		Select("MIN(id)").
		Where("is_active = ?", true).
		Group("user_id")

	err := r.db.WithContext(ctx).
		Where("id IN (?)", first).
		Order("id ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active wallets: %w", err)
	}
	return wallets, nil
}
