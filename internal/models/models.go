package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositConfirmed DepositStatus = "confirmed"
	DepositFailed    DepositStatus = "failed"
)

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

// IsFinal reports whether no reconciler may touch the withdrawal again.
func (s WithdrawalStatus) IsFinal() bool {
	return s == WithdrawalCompleted || s == WithdrawalFailed
}

type TransactionType string

const (
	TransactionDeposit            TransactionType = "deposit"
	TransactionWithdrawal         TransactionType = "withdrawal"
	TransactionReferralCommission TransactionType = "referral_commission"
	TransactionFee                TransactionType = "fee"
	TransactionCustom             TransactionType = "custom"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	TelegramID   int64  `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	ReferralCode string `gorm:"uniqueIndex;size:16;not null" json:"referral_code"`

	SponsorID *int64 `gorm:"index" json:"sponsor_id"`
	Sponsor   *User  `gorm:"foreignKey:SponsorID" json:"-"`

	AccountBalance decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0;check:chk_users_account_balance,account_balance >= 0" json:"account_balance"`
	TotalDeposited decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0;check:chk_users_total_deposited,total_deposited >= 0" json:"total_deposited"`
	TotalWithdrawn decimal.Decimal `gorm:"type:numeric(18,6);not null;default:0;check:chk_users_total_withdrawn,total_withdrawn >= 0" json:"total_withdrawn"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Wallet struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	UserID              int64     `gorm:"index;not null" json:"user_id"`
	User                *User     `gorm:"foreignKey:UserID" json:"-"`
	Address             string    `gorm:"uniqueIndex;size:64;not null" json:"address"`
	PrivateKeyEncrypted string    `gorm:"not null" json:"-"`
	IsActive            bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Deposit is one observed inbound transfer. TxHash is the idempotency key.
type Deposit struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	WalletID      int64           `gorm:"index;not null" json:"wallet_id"`
	Wallet        *Wallet         `gorm:"foreignKey:WalletID" json:"-"`
	TxHash        string          `gorm:"uniqueIndex;size:128;not null" json:"tx_hash"`
	AmountTRX     decimal.Decimal `gorm:"column:amount_trx;type:numeric(18,6);not null" json:"amount_trx"`
	Confirmations int64           `gorm:"not null;default:0" json:"confirmations"`
	Status        DepositStatus   `gorm:"size:16;not null;default:pending;index" json:"status"`
	ConfirmedAt   *time.Time      `json:"confirmed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Withdrawal struct {
	ID          int64            `gorm:"primaryKey" json:"id"`
	UserID      int64            `gorm:"index;not null" json:"user_id"`
	AmountTRX   decimal.Decimal  `gorm:"column:amount_trx;type:numeric(18,6);not null;check:chk_withdrawals_amount,amount_trx > 0" json:"amount_trx"`
	FeeTRX      decimal.Decimal  `gorm:"column:fee_trx;type:numeric(18,6);not null;check:chk_withdrawals_fee,fee_trx >= 0" json:"fee_trx"`
	ToAddress   string           `gorm:"size:64;not null" json:"to_address"`
	TxHash      *string          `gorm:"size:128" json:"tx_hash"`
	Status      WithdrawalStatus `gorm:"size:16;not null;default:pending;index" json:"status"`
	ProcessedAt *time.Time       `json:"processed_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Reserved is what was debited from the user when the withdrawal was created.
func (w *Withdrawal) Reserved() decimal.Decimal {
	return w.AmountTRX.Add(w.FeeTRX)
}

// NetAmount is what actually leaves the hot wallet.
func (w *Withdrawal) NetAmount() decimal.Decimal {
	return w.AmountTRX.Sub(w.FeeTRX)
}

// Transaction is the user-visible journal row. It mirrors a Deposit or
// Withdrawal through ReferenceID and never drives balances.
type Transaction struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	UserID      int64             `gorm:"index;not null" json:"user_id"`
	Type        TransactionType   `gorm:"size:32;not null;index:idx_transactions_reference,priority:2" json:"type"`
	AmountTRX   decimal.Decimal   `gorm:"column:amount_trx;type:numeric(18,6);not null" json:"amount_trx"`
	Status      TransactionStatus `gorm:"size:16;not null;default:pending" json:"status"`
	Description string            `json:"description"`
	ReferenceID string            `gorm:"size:64;index:idx_transactions_reference,priority:1" json:"reference_id"`
	TxHash      *string           `gorm:"size:128" json:"tx_hash"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
