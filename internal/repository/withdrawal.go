package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalLimit caps the sum of non-failed withdrawals created at or after
// Since.
type WithdrawalLimit struct {
	Since time.Time
	Max   decimal.Decimal
}

// ReserveWithdrawal debits amount+fee and records the pending withdrawal and
// its journal row atomically. The user row is locked, so concurrent requests
// can never push the balance below zero.
func (r *Repository) ReserveWithdrawal(ctx context.Context, userID int64, amount, fee decimal.Decimal, toAddress string) (*models.Withdrawal, error) {
	return r.reserveWithdrawal(ctx, userID, amount, fee, toAddress, nil)
}

// ReserveWithdrawalWithinLimit is ReserveWithdrawal plus a check against
// limit made under the same user row lock, so concurrent requests cannot
// together exceed it.
func (r *Repository) ReserveWithdrawalWithinLimit(ctx context.Context, userID int64, amount, fee decimal.Decimal, toAddress string, limit WithdrawalLimit) (*models.Withdrawal, error) {
	return r.reserveWithdrawal(ctx, userID, amount, fee, toAddress, &limit)
}

func (r *Repository) reserveWithdrawal(ctx context.Context, userID int64, amount, fee decimal.Decimal, toAddress string, limit *WithdrawalLimit) (*models.Withdrawal, error) {
	if !amount.IsPositive() || fee.IsNegative() || !fee.LessThan(amount) {
		return nil, ErrInvalidAmount
	}

	var withdrawal *models.Withdrawal
	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		user, err := lockUser(tx, userID)
		if err != nil {
			return err
		}

		if limit != nil {
			spent, err := sumWithdrawalsSince(tx, userID, limit.Since)
			if err != nil {
				return err
			}
			if spent.Add(amount).GreaterThan(limit.Max) {
				return ErrDailyLimitExceeded
			}
		}

		total := amount.Add(fee)
		if user.AccountBalance.LessThan(total) {
			return ErrInsufficientBalance
		}

		if err := tx.Model(user).Update("account_balance", user.AccountBalance.Sub(total)).Error; err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			UserID:    userID,
			AmountTRX: amount,
			FeeTRX:    fee,
			ToAddress: toAddress,
			Status:    models.WithdrawalPending,
		}
		if err := tx.Create(withdrawal).Error; err != nil {
			return err
		}

		return tx.Create(&models.Transaction{
			UserID:      userID,
			Type:        models.TransactionWithdrawal,
			AmountTRX:   amount,
			Status:      models.TransactionPending,
			Description: "User initiated withdrawal",
			ReferenceID: refID(withdrawal.ID),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reserve withdrawal for user %d: %w", userID, err)
	}

	return withdrawal, nil
}

// SumWithdrawalsSince totals the user's withdrawals created at or after since,
// failed ones excluded.
func (r *Repository) SumWithdrawalsSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	sum, err := sumWithdrawalsSince(r.db.WithContext(ctx), userID, since)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals for user %d: %w", userID, err)
	}
	return sum, nil
}

func sumWithdrawalsSince(tx *gorm.DB, userID int64, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.Model(&models.Withdrawal{}).
		Select("COALESCE(SUM(amount_trx), 0)").
		Where("user_id = ? AND created_at >= ? AND status <> ?", userID, since, models.WithdrawalFailed).
		Row().
		Scan(&sum)
	return sum, err
}

func (r *Repository) ListPendingOrProcessingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error) {
	var withdrawals []*models.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.WithdrawalStatus{models.WithdrawalPending, models.WithdrawalProcessing}).
		Order("created_at ASC, id ASC").
		Find(&withdrawals).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	return withdrawals, nil
}

func (r *Repository) GetWithdrawalByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := r.db.WithContext(ctx).First(&withdrawal, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get withdrawal by id %d: %w", id, err)
	}
	return &withdrawal, nil
}

// ClaimWithdrawal moves a pending withdrawal to processing. It reports false
// when another run got there first.
func (r *Repository) ClaimWithdrawal(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalPending).
		Update("status", models.WithdrawalProcessing)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim withdrawal %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkWithdrawalSubmitted stores the id of the signed transfer before it is
// broadcast, so a crash after broadcast can be resolved from chain state.
func (r *Repository) MarkWithdrawalSubmitted(ctx context.Context, id int64, txHash string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalProcessing).
		Update("tx_hash", txHash)
	if res.Error != nil {
		return fmt.Errorf("failed to mark withdrawal %d submitted: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWithdrawalFinalized
	}
	return nil
}

// ResolveWithdrawalCompleted finalizes a withdrawal whose transfer was
// accepted by the network. The reserved funds stay debited.
func (r *Repository) ResolveWithdrawalCompleted(ctx context.Context, id int64, txHash string) (*models.Withdrawal, error) {
	var withdrawal *models.Withdrawal
	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		w, err := lockOpenWithdrawal(tx, id)
		if err != nil {
			return err
		}
		user, err := lockUser(tx, w.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = tx.Model(w).Updates(map[string]interface{}{
			"status":       models.WithdrawalCompleted,
			"tx_hash":      txHash,
			"processed_at": now,
		}).Error
		if err != nil {
			return err
		}

		if err := tx.Model(user).Update("total_withdrawn", user.TotalWithdrawn.Add(w.AmountTRX)).Error; err != nil {
			return err
		}

		hash := txHash
		if err := settleJournal(tx, &models.Transaction{
			UserID:      w.UserID,
			Type:        models.TransactionWithdrawal,
			AmountTRX:   w.AmountTRX,
			Status:      models.TransactionCompleted,
			Description: "Withdrawal " + txHash,
			ReferenceID: refID(w.ID),
			TxHash:      &hash,
		}); err != nil {
			return err
		}

		w.Status = models.WithdrawalCompleted
		w.TxHash = &hash
		w.ProcessedAt = &now
		withdrawal = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete withdrawal %d: %w", id, err)
	}
	return withdrawal, nil
}

// ResolveWithdrawalFailed finalizes a withdrawal that will never be sent and
// refunds amount+fee to the user.
func (r *Repository) ResolveWithdrawalFailed(ctx context.Context, id int64, reason string) (*models.Withdrawal, error) {
	var withdrawal *models.Withdrawal
	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		w, err := lockOpenWithdrawal(tx, id)
		if err != nil {
			return err
		}
		user, err := lockUser(tx, w.UserID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = tx.Model(w).Updates(map[string]interface{}{
			"status":       models.WithdrawalFailed,
			"processed_at": now,
		}).Error
		if err != nil {
			return err
		}

		// Возврат зарезервированной суммы вместе с комиссией
		if err := tx.Model(user).Update("account_balance", user.AccountBalance.Add(w.Reserved())).Error; err != nil {
			return err
		}

		description := "Withdrawal failed: " + reason
		if w.TxHash != nil {
			description = fmt.Sprintf("%s (tx %s)", description, *w.TxHash)
		}
		if err := settleJournal(tx, &models.Transaction{
			UserID:      w.UserID,
			Type:        models.TransactionWithdrawal,
			AmountTRX:   w.AmountTRX,
			Status:      models.TransactionFailed,
			Description: description,
			ReferenceID: refID(w.ID),
			TxHash:      w.TxHash,
		}); err != nil {
			return err
		}

		w.Status = models.WithdrawalFailed
		w.ProcessedAt = &now
		withdrawal = w
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fail withdrawal %d: %w", id, err)
	}
	return withdrawal, nil
}

func lockOpenWithdrawal(tx *gorm.DB, id int64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := forUpdate(tx).First(&w, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, err
	}
	if w.Status.IsFinal() {
		return nil, ErrWithdrawalFinalized
	}
	return &w, nil
}
