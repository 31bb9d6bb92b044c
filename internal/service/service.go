package service

import (
	"context"
	"errors"
	"time"

	"github.com/Fi44er/tron_bot/config"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/repository"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
)

var (
	ErrAmountOutOfBounds  = errors.New("amount out of bounds")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrDailyLimitExceeded = repository.ErrDailyLimitExceeded
	ErrUserNotFound       = errors.New("user not found")

	ErrInsufficientBalance = repository.ErrInsufficientBalance
)

type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)

	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetActiveWallet(ctx context.Context, userID int64) (*models.Wallet, error)

	ReserveWithdrawalWithinLimit(ctx context.Context, userID int64, amount, fee decimal.Decimal, toAddress string, limit repository.WithdrawalLimit) (*models.Withdrawal, error)

	ListTransactions(ctx context.Context, userID int64, typ models.TransactionType, limit int) ([]models.Transaction, error)
}

// KeyIssuer creates deposit addresses and validates payout addresses.
type KeyIssuer interface {
	GenerateKey() (address string, privateKeyHex string, err error)
	IsValidAddress(address string) bool
}

type KeySealer interface {
	Encrypt(plain string) (string, error)
}

// Service is the user facing surface: registration, deposit addresses and
// withdrawal requests. Settlement is left to the reconcilers.
type Service struct {
	repo   Repository
	keys   KeyIssuer
	sealer KeySealer
	config *config.Config
	logger *utils.Logger
	now    func() time.Time
}

func NewService(repo Repository, keys KeyIssuer, sealer KeySealer, cfg *config.Config, logger *utils.Logger) *Service {
	return &Service{
		repo:   repo,
		keys:   keys,
		sealer: sealer,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}
