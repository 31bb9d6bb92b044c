package worker

import (
	"context"
	"fmt"
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

const (
	withdrawalWorker = "withdrawals"

	reasonInsufficient = "insufficient balance"
	reasonExpired      = "transaction expired without confirmation"
	reasonChainFailed  = "transaction failed on chain"
)

type WithdrawalStore interface {
	ListPendingOrProcessingWithdrawals(ctx context.Context) ([]*models.Withdrawal, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ClaimWithdrawal(ctx context.Context, id int64) (bool, error)
	MarkWithdrawalSubmitted(ctx context.Context, id int64, txHash string) error
	ResolveWithdrawalCompleted(ctx context.Context, id int64, txHash string) (*models.Withdrawal, error)
	ResolveWithdrawalFailed(ctx context.Context, id int64, reason string) (*models.Withdrawal, error)
}

type WithdrawalLedger interface {
	Prepare(ctx context.Context, privateKeyHex, to string, amount decimal.Decimal) (*ledger.SignedTransfer, error)
	Broadcast(ctx context.Context, st *ledger.SignedTransfer) (string, error)
	TransactionState(ctx context.Context, txID string) (ledger.TxState, error)
}

type WithdrawalOptions struct {
	// TreasuryKey signs every payout.
	TreasuryKey string
	// SubmitExpiry is how long a submitted transfer may stay unseen on chain
	// before the withdrawal is failed and refunded.
	SubmitExpiry time.Duration
	// ItemTimeout bounds one withdrawal. It is detached from the run
	// deadline so a payout is never cut off between broadcast and resolve.
	ItemTimeout time.Duration
}

// WithdrawalReconciler executes queued withdrawals from the treasury and
// settles each one as completed or failed with refund.
type WithdrawalReconciler struct {
	store    WithdrawalStore
	ledger   WithdrawalLedger
	notifier notify.Notifier
	messages notify.Messages
	opts     WithdrawalOptions
	logger   *utils.Logger
	now      func() time.Time
}

func NewWithdrawalReconciler(
	store WithdrawalStore,
	ledger WithdrawalLedger,
	notifier notify.Notifier,
	messages notify.Messages,
	opts WithdrawalOptions,
	logger *utils.Logger,
) *WithdrawalReconciler {
	if opts.SubmitExpiry <= 0 {
		opts.SubmitExpiry = 2 * time.Minute
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = time.Minute
	}
	return &WithdrawalReconciler{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		messages: messages,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *WithdrawalReconciler) Name() string { return withdrawalWorker }

// Run processes every withdrawal that is pending or still in flight.
func (r *WithdrawalReconciler) Run(ctx context.Context) error {
	withdrawals, err := r.store.ListPendingOrProcessingWithdrawals(ctx)
	if err != nil {
		return err
	}
	r.logger.Debugf("Processing %d open withdrawals", len(withdrawals))

	for _, w := range withdrawals {
		if err := ctx.Err(); err != nil {
			return err
		}

		log := r.logger.WithFields(logrus.Fields{
			"worker":        withdrawalWorker,
			"withdrawal_id": w.ID,
			"user_id":       w.UserID,
		})
		_ = isolate(withdrawalWorker, log, func() error {
			itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.ItemTimeout)
			defer cancel()
			return r.process(itemCtx, w, log)
		})
	}
	return nil
}

func (r *WithdrawalReconciler) process(ctx context.Context, w *models.Withdrawal, log *logrus.Entry) error {
	user, err := r.store.GetUserByID(ctx, w.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("withdrawal %d: %w", w.ID, repository.ErrUserNotFound)
	}

	if w.Status == models.WithdrawalProcessing && w.TxHash != nil {
		return r.recoverSubmitted(ctx, w, user, log)
	}

	if !reservationHolds(user, w) {
		log.Warn("reservation check failed, refunding withdrawal")
		if r.fail(ctx, w, reasonInsufficient, log) {
			tell(ctx, r.notifier, r.logger, user.TelegramID, r.messages.WithdrawalInsufficient(w.AmountTRX))
		}
		return nil
	}

	if w.Status == models.WithdrawalPending {
		claimed, err := r.store.ClaimWithdrawal(ctx, w.ID)
		if err != nil {
			return err
		}
		if !claimed {
			log.Debug("withdrawal claimed by another run")
			return nil
		}
	}

	st, err := r.ledger.Prepare(ctx, r.opts.TreasuryKey, w.ToAddress, w.NetAmount())
	if err != nil {
		log.WithError(err).Error("failed to prepare payout")
		r.failAndNotify(ctx, w, user, err.Error(), log)
		return nil
	}

	if err := r.store.MarkWithdrawalSubmitted(ctx, w.ID, st.TxID); err != nil {
		// Nothing was broadcast; the next run retries from processing.
		return err
	}
	w.TxHash = &st.TxID

	txID, err := r.ledger.Broadcast(ctx, st)
	if err != nil {
		if ledger.OutcomeUnknown(err) {
			// The node may have accepted it. Leave it for chain lookup.
			log.WithError(err).Warn("broadcast outcome unknown, will resolve from chain state")
			return nil
		}
		log.WithError(err).Error("payout broadcast failed")
		r.failAndNotify(ctx, w, user, err.Error(), log)
		return nil
	}

	r.completeAndNotify(ctx, w, user, txID, log)
	return nil
}

// recoverSubmitted resolves a withdrawal whose transfer was signed and
// possibly broadcast by an earlier run.
func (r *WithdrawalReconciler) recoverSubmitted(ctx context.Context, w *models.Withdrawal, user *models.User, log *logrus.Entry) error {
	state, err := r.ledger.TransactionState(ctx, *w.TxHash)
	if err != nil {
		return err
	}

	switch state {
	case ledger.TxConfirmed:
		r.completeAndNotify(ctx, w, user, *w.TxHash, log)
	case ledger.TxFailed:
		r.failAndNotify(ctx, w, user, reasonChainFailed, log)
	default:
		if r.now().Sub(w.UpdatedAt) < r.opts.SubmitExpiry {
			log.Debug("submitted payout not on chain yet")
			return nil
		}
		r.failAndNotify(ctx, w, user, reasonExpired, log)
	}
	return nil
}

func (r *WithdrawalReconciler) completeAndNotify(ctx context.Context, w *models.Withdrawal, user *models.User, txID string, log *logrus.Entry) {
	done, err := r.store.ResolveWithdrawalCompleted(ctx, w.ID, txID)
	if err != nil {
		log.WithError(err).Error("failed to mark withdrawal completed")
		return
	}

	metrics.RecordWithdrawal(string(models.WithdrawalCompleted))
	log.WithField("tx_hash", txID).Info("Withdrawal completed")
	tell(ctx, r.notifier, r.logger, user.TelegramID,
		r.messages.WithdrawalCompleted(done.AmountTRX, done.FeeTRX, done.ToAddress, txID))
}

func (r *WithdrawalReconciler) failAndNotify(ctx context.Context, w *models.Withdrawal, user *models.User, reason string, log *logrus.Entry) {
	if r.fail(ctx, w, reason, log) {
		tell(ctx, r.notifier, r.logger, user.TelegramID, r.messages.WithdrawalFailed(w.AmountTRX, reason))
	}
}

// fail refunds and closes the withdrawal. It reports whether this call did it.
func (r *WithdrawalReconciler) fail(ctx context.Context, w *models.Withdrawal, reason string, log *logrus.Entry) bool {
	if _, err := r.store.ResolveWithdrawalFailed(ctx, w.ID, reason); err != nil {
		log.WithError(err).Error("failed to mark withdrawal failed")
		return false
	}

	metrics.RecordWithdrawal(string(models.WithdrawalFailed))
	log.WithField("reason", reason).Warn("Withdrawal failed and refunded")
	return true
}

// reservationHolds is a consistency check on a row that was already debited
// at creation time. It does not compare against the current balance.
func reservationHolds(user *models.User, w *models.Withdrawal) bool {
	return !user.AccountBalance.IsNegative() &&
		w.AmountTRX.IsPositive() &&
		!w.FeeTRX.IsNegative() &&
		w.FeeTRX.LessThan(w.AmountTRX)
}
