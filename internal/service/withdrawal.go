package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/repository"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
)

const historyLimit = 10

// RequestWithdrawal validates a withdrawal and reserves amount plus fee. The
// payout itself happens on the next withdrawal reconciler run.
func (s *Service) RequestWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, toAddress string) (*models.Withdrawal, error) {
	toAddress = strings.TrimSpace(toAddress)
	if !s.keys.IsValidAddress(toAddress) {
		return nil, ErrInvalidAddress
	}

	amount = utils.RoundTRX(amount)
	if amount.LessThan(s.config.MinWithdrawalAmount) || amount.GreaterThan(s.config.MaxWithdrawalAmount) {
		return nil, fmt.Errorf("%w: must be between %s and %s TRX",
			ErrAmountOutOfBounds, s.config.MinWithdrawalAmount, s.config.MaxWithdrawalAmount)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	fee := utils.RoundTRX(amount.Mul(s.config.WithdrawalFeeRate))
	w, err := s.repo.ReserveWithdrawalWithinLimit(ctx, userID, amount, fee, toAddress, repository.WithdrawalLimit{
		Since: startOfDay(s.now()),
		Max:   s.config.DailyWithdrawalLimit,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", userID).Infof("Withdrawal #%d requested: %s to %s", w.ID, amount, toAddress)
	return w, nil
}

// Fee returns the fee charged on top of amount.
func (s *Service) Fee(amount decimal.Decimal) decimal.Decimal {
	return utils.RoundTRX(amount.Mul(s.config.WithdrawalFeeRate))
}

func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID, "", historyLimit)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
