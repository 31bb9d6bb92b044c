package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const referralCodeAttempts = 5

func (s *Service) GetUser(ctx context.Context, telegramID int64) (*models.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

// RegisterUser returns the existing user for telegramID or creates one,
// linking the sponsor when sponsorCode matches somebody else.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, username, firstName, sponsorCode string) (*models.User, bool, error) {
	existing, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	user := &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		IsActive:   true,
	}

	if sponsorCode = strings.TrimSpace(sponsorCode); sponsorCode != "" {
		sponsor, err := s.repo.GetUserByReferralCode(ctx, sponsorCode)
		if err != nil {
			return nil, false, err
		}
		if sponsor != nil && sponsor.TelegramID != telegramID {
			user.SponsorID = &sponsor.ID
		}
	}

	for attempt := 0; attempt < referralCodeAttempts; attempt++ {
		user.ReferralCode = newReferralCode()
		err = s.repo.CreateUser(ctx, user)
		if err == nil {
			s.logger.WithField("telegram_id", telegramID).Info("New user registered")
			return user, true, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, err
		}

		// Lost a race on telegram_id rather than on the code.
		if again, getErr := s.repo.GetUserByTelegramID(ctx, telegramID); getErr == nil && again != nil {
			return again, false, nil
		}
	}
	return nil, false, fmt.Errorf("failed to allocate referral code: %w", err)
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
