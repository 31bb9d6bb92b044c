package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Fi44er/tron_bot/internal/ledger"
	"github.com/Fi44er/tron_bot/internal/metrics"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/notify"
	"github.com/Fi44er/tron_bot/internal/repository"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const depositWorker = "deposits"

type DepositStore interface {
	ListActiveWallets(ctx context.Context) ([]*models.Wallet, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	FindDepositByTxHash(ctx context.Context, txHash string) (*models.Deposit, error)
	CreateDepositIfAbsent(ctx context.Context, p repository.DepositParams) (*models.Deposit, bool, error)
	CreditConfirmedDeposit(ctx context.Context, depositID int64, confirmations int64) (*models.Transaction, error)
	FailDeposit(ctx context.Context, depositID int64, reason string) error
}

type DepositLedger interface {
	ListInboundTransfers(ctx context.Context, address string, limit int) ([]ledger.Transfer, error)
	Send(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (string, error)
	TreasuryAddress() string
}

type DepositOptions struct {
	ConfirmationThreshold int64
	ForwardRate           decimal.Decimal
	PageSize              int
	BatchSize             int
	BatchPause            time.Duration
	AdminChatID           int64
}

// DepositReconciler credits confirmed inbound transfers exactly once and
// sweeps a share of each credited deposit to the treasury.
type DepositReconciler struct {
	store    DepositStore
	ledger   DepositLedger
	keys     KeyOpener
	notifier notify.Notifier
	messages notify.Messages
	opts     DepositOptions
	logger   *utils.Logger
	pause    func(ctx context.Context, d time.Duration) error
}

func NewDepositReconciler(
	store DepositStore,
	ledger DepositLedger,
	keys KeyOpener,
	notifier notify.Notifier,
	messages notify.Messages,
	opts DepositOptions,
	logger *utils.Logger,
) *DepositReconciler {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &DepositReconciler{
		store:    store,
		ledger:   ledger,
		keys:     keys,
		notifier: notifier,
		messages: messages,
		opts:     opts,
		logger:   logger,
		pause:    sleep,
	}
}

func (r *DepositReconciler) Name() string { return depositWorker }

// Run does one full pass over every active deposit wallet.
func (r *DepositReconciler) Run(ctx context.Context) error {
	wallets, err := r.store.ListActiveWallets(ctx)
	if err != nil {
		return err
	}
	r.logger.Debugf("Checking deposits for %d wallets", len(wallets))

	for i, wallet := range wallets {
		if i > 0 && i%r.opts.BatchSize == 0 {
			if err := r.pause(ctx, r.opts.BatchPause); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		log := r.logger.WithFields(logrus.Fields{
			"worker":    depositWorker,
			"wallet_id": wallet.ID,
			"user_id":   wallet.UserID,
		})
		_ = isolate(depositWorker, log, func() error {
			return r.reconcileWallet(ctx, wallet, log)
		})
	}
	return nil
}

func (r *DepositReconciler) reconcileWallet(ctx context.Context, wallet *models.Wallet, log *logrus.Entry) error {
	transfers, err := r.ledger.ListInboundTransfers(ctx, wallet.Address, r.opts.PageSize)
	if err != nil {
		return err
	}

	for _, t := range transfers {
		if t.To != "" && t.To != wallet.Address {
			continue
		}
		if t.AmountSun <= 0 {
			continue
		}

		txLog := log.WithField("tx_hash", t.TxID)
		if err := r.reconcileTransfer(ctx, wallet, t, txLog); err != nil {
			txLog.WithError(err).Error("failed to reconcile transfer")
		}
	}
	return nil
}

func (r *DepositReconciler) reconcileTransfer(ctx context.Context, wallet *models.Wallet, t ledger.Transfer, log *logrus.Entry) error {
	existing, err := r.store.FindDepositByTxHash(ctx, t.TxID)
	if err != nil {
		return err
	}

	if existing != nil {
		return r.advance(ctx, wallet, existing, t, log)
	}

	status := models.DepositPending
	switch {
	case !t.Success:
		status = models.DepositFailed
	case t.Confirmations >= r.opts.ConfirmationThreshold:
		status = models.DepositConfirmed
	}

	dep, created, err := r.store.CreateDepositIfAbsent(ctx, repository.DepositParams{
		UserID:        wallet.UserID,
		WalletID:      wallet.ID,
		TxHash:        t.TxID,
		Amount:        t.Amount(),
		Confirmations: t.Confirmations,
		Status:        status,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Debug("deposit already recorded")
		return nil
	}

	log.WithFields(logrus.Fields{
		"amount": dep.AmountTRX.String(),
		"status": dep.Status,
	}).Info("Deposit recorded")

	if dep.Status == models.DepositConfirmed {
		r.afterCredit(ctx, wallet, dep, log)
	}
	return nil
}

// advance moves a pending deposit forward once the chain has settled it.
func (r *DepositReconciler) advance(ctx context.Context, wallet *models.Wallet, dep *models.Deposit, t ledger.Transfer, log *logrus.Entry) error {
	if dep.Status != models.DepositPending {
		return nil
	}

	if !t.Success {
		log.Warn("pending deposit reverted on chain")
		err := r.store.FailDeposit(ctx, dep.ID, "transfer reverted on chain")
		if errors.Is(err, repository.ErrDepositNotPending) {
			return nil
		}
		return err
	}

	if t.Confirmations < r.opts.ConfirmationThreshold {
		return nil
	}

	if _, err := r.store.CreditConfirmedDeposit(ctx, dep.ID, t.Confirmations); err != nil {
		if errors.Is(err, repository.ErrDepositNotPending) {
			return nil
		}
		return err
	}

	log.WithField("amount", dep.AmountTRX.String()).Info("Pending deposit confirmed")
	r.afterCredit(ctx, wallet, dep, log)
	return nil
}

func (r *DepositReconciler) afterCredit(ctx context.Context, wallet *models.Wallet, dep *models.Deposit, log *logrus.Entry) {
	metrics.RecordDepositCredited(dep.AmountTRX)

	user, err := r.store.GetUserByID(ctx, dep.UserID)
	switch {
	case err != nil:
		log.WithError(err).Warn("could not load user for deposit notification")
	case user != nil:
		tell(ctx, r.notifier, r.logger, user.TelegramID, r.messages.DepositCredited(dep.AmountTRX, dep.TxHash))
	}

	r.forward(ctx, wallet, dep, log)
}

// forward sweeps part of a credited deposit to the treasury. A failure here
// never undoes the credit; it only alerts the admin.
func (r *DepositReconciler) forward(ctx context.Context, wallet *models.Wallet, dep *models.Deposit, log *logrus.Entry) {
	amount := dep.AmountTRX.Mul(r.opts.ForwardRate).Truncate(utils.TRXPrecision)
	if !amount.IsPositive() {
		log.Warn("forward amount rounds to zero, skipping sweep")
		return
	}

	txID, err := r.sendFromWallet(ctx, wallet, amount)
	if err != nil {
		metrics.RecordForward(false)
		log.WithError(err).Error("failed to forward deposit to treasury")
		tell(ctx, r.notifier, r.logger, r.opts.AdminChatID,
			r.messages.ForwardFailed(dep.UserID, amount, wallet.Address, err))
		return
	}

	metrics.RecordForward(true)
	log.WithFields(logrus.Fields{"forward_tx": txID, "amount": amount.String()}).Info("Deposit forwarded to treasury")
	tell(ctx, r.notifier, r.logger, r.opts.AdminChatID,
		r.messages.ForwardSucceeded(dep.UserID, amount, wallet.Address, txID))
}

func (r *DepositReconciler) sendFromWallet(ctx context.Context, wallet *models.Wallet, amount decimal.Decimal) (string, error) {
	key, err := r.keys.Decrypt(wallet.PrivateKeyEncrypted)
	if err != nil {
		return "", err
	}
	return r.ledger.Send(ctx, key, r.ledger.TreasuryAddress(), amount)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
