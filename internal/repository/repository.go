package repository

import (
	"errors"
	"strconv"

	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrDepositNotFound     = errors.New("deposit not found")
	ErrDepositNotPending   = errors.New("deposit is not pending")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalFinalized = errors.New("withdrawal already finalized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrDailyLimitExceeded  = errors.New("daily withdrawal limit exceeded")
)

// Repository is the account store. Every balance change happens inside a
// single database transaction together with the status change that caused it.
type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func NewRepository(db *gorm.DB, logger *utils.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockUser(tx *gorm.DB, userID int64) (*models.User, error) {
	var user models.User
	err := forUpdate(tx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func refID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// settleJournal moves the journal row mirroring row.ReferenceID to the state
// carried by row, creating it if it was never written.
func settleJournal(tx *gorm.DB, row *models.Transaction) error {
	var existing models.Transaction
	err := tx.Where("reference_id = ? AND type = ?", row.ReferenceID, row.Type).
		Order("id ASC").
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(row).Error
	}
	if err != nil {
		return err
	}

	err = tx.Model(&existing).Updates(map[string]interface{}{
		"status":      row.Status,
		"description": row.Description,
		"tx_hash":     row.TxHash,
		"amount_trx":  row.AmountTRX,
	}).Error
	if err != nil {
		return err
	}

	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	return nil
}
