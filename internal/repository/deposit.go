package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DepositParams struct {
	UserID        int64
	WalletID      int64
	TxHash        string
	Amount        decimal.Decimal
	Confirmations int64
	Status        models.DepositStatus
}

// FindDepositByTxHash returns (nil, nil) when the hash was never recorded.
func (r *Repository) FindDepositByTxHash(ctx context.Context, txHash string) (*models.Deposit, error) {
	var dep models.Deposit
	err := r.db.WithContext(ctx).First(&dep, "tx_hash = ?", txHash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", txHash, err)
	}
	return &dep, nil
}

// CreateDepositIfAbsent records a newly observed transfer together with its
// journal row. A confirmed deposit credits the user in the same transaction.
// When another writer already recorded the hash it returns the stored row
// and created=false without touching any balance.
func (r *Repository) CreateDepositIfAbsent(ctx context.Context, p DepositParams) (*models.Deposit, bool, error) {
	if !p.Amount.IsPositive() {
		return nil, false, ErrInvalidAmount
	}

	var (
		dep     *models.Deposit
		created bool
	)

	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		row := &models.Deposit{
			UserID:        p.UserID,
			WalletID:      p.WalletID,
			TxHash:        p.TxHash,
			AmountTRX:     p.Amount,
			Confirmations: p.Confirmations,
			Status:        p.Status,
		}
		if p.Status == models.DepositConfirmed {
			row.ConfirmedAt = &now
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}},
			DoNothing: true,
		}).Create(row)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			var existing models.Deposit
			if err := tx.First(&existing, "tx_hash = ?", p.TxHash).Error; err != nil {
				return err
			}
			dep = &existing
			return nil
		}

		journal := &models.Transaction{
			UserID:      p.UserID,
			Type:        models.TransactionDeposit,
			AmountTRX:   p.Amount,
			ReferenceID: refID(row.ID),
			TxHash:      &row.TxHash,
		}

		switch p.Status {
		case models.DepositConfirmed:
			if err := creditUser(tx, p.UserID, p.Amount); err != nil {
				return err
			}
			journal.Status = models.TransactionCompleted
			journal.Description = "Deposit confirmed " + p.TxHash
		case models.DepositFailed:
			journal.Status = models.TransactionFailed
			journal.Description = "Deposit failed on chain " + p.TxHash
		default:
			journal.Status = models.TransactionPending
			journal.Description = "User deposit detected"
		}

		if err := tx.Create(journal).Error; err != nil {
			return err
		}

		dep = row
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to record deposit %s: %w", p.TxHash, err)
	}

	return dep, created, nil
}

// CreditConfirmedDeposit promotes a pending deposit to confirmed and credits
// the owner. A deposit that is no longer pending yields ErrDepositNotPending.
func (r *Repository) CreditConfirmedDeposit(ctx context.Context, depositID int64, confirmations int64) (*models.Transaction, error) {
	var journal *models.Transaction

	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		dep, err := lockPendingDeposit(tx, depositID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = tx.Model(dep).Updates(map[string]interface{}{
			"status":        models.DepositConfirmed,
			"confirmations": confirmations,
			"confirmed_at":  now,
		}).Error
		if err != nil {
			return err
		}

		if err := creditUser(tx, dep.UserID, dep.AmountTRX); err != nil {
			return err
		}

		journal = &models.Transaction{
			UserID:      dep.UserID,
			Type:        models.TransactionDeposit,
			AmountTRX:   dep.AmountTRX,
			Status:      models.TransactionCompleted,
			Description: "Deposit confirmed " + dep.TxHash,
			ReferenceID: refID(dep.ID),
			TxHash:      &dep.TxHash,
		}
		return settleJournal(tx, journal)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit deposit %d: %w", depositID, err)
	}

	return journal, nil
}

// FailDeposit closes a pending deposit whose transfer reverted on chain.
func (r *Repository) FailDeposit(ctx context.Context, depositID int64, reason string) error {
	err := r.inTransaction(ctx, func(tx *gorm.DB) error {
		dep, err := lockPendingDeposit(tx, depositID)
		if err != nil {
			return err
		}

		if err := tx.Model(dep).Update("status", models.DepositFailed).Error; err != nil {
			return err
		}

		return settleJournal(tx, &models.Transaction{
			UserID:      dep.UserID,
			Type:        models.TransactionDeposit,
			AmountTRX:   dep.AmountTRX,
			Status:      models.TransactionFailed,
			Description: fmt.Sprintf("Deposit failed: %s", reason),
			ReferenceID: refID(dep.ID),
			TxHash:      &dep.TxHash,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to fail deposit %d: %w", depositID, err)
	}
	return nil
}

func lockPendingDeposit(tx *gorm.DB, depositID int64) (*models.Deposit, error) {
	var dep models.Deposit
	err := forUpdate(tx).First(&dep, "id = ?", depositID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	if dep.Status != models.DepositPending {
		return nil, ErrDepositNotPending
	}
	return &dep, nil
}

func creditUser(tx *gorm.DB, userID int64, amount decimal.Decimal) error {
	user, err := lockUser(tx, userID)
	if err != nil {
		return err
	}

	return tx.Model(user).Updates(map[string]interface{}{
		"account_balance": user.AccountBalance.Add(amount),
		"total_deposited": user.TotalDeposited.Add(amount),
	}).Error
}
