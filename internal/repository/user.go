package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Fi44er/tron_bot/internal/models"
	"gorm.io/gorm"
)

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user %d: %w", user.TelegramID, err)
	}
	return nil
}

// GetUserByID returns (nil, nil) when the user does not exist.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.findUser(ctx, "telegram_id = ?", telegramID)
}

func (r *Repository) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findUser(ctx, "referral_code = ?", code)
}

func (r *Repository) findUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by %s %v: %w", query, arg, err)
	}
	return &user, nil
}
