package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fi44er/tron_bot/internal/ledger"
	"github.com/Fi44er/tron_bot/internal/models"
	"github.com/Fi44er/tron_bot/internal/storetest"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (e *env) depositReconciler() *DepositReconciler {
	r := NewDepositReconciler(e.repo, e.ledger, e.cipher, e.notifier, e.messages, DepositOptions{
		ConfirmationThreshold: 19,
		ForwardRate:           decimal.RequireFromString("0.9"),
		PageSize:              50,
		BatchSize:             10,
		AdminChatID:           adminChatID,
	}, utils.NewNopLogger())
	r.pause = func(context.Context, time.Duration) error { return nil }
	return r
}

func transfer(hash string, trx int64, confirmations int64, success bool) ledger.Transfer {
	return ledger.Transfer{
		TxID:          hash,
		To:            walletAddress,
		AmountSun:     trx * ledger.SunPerTRX,
		Confirmations: confirmations,
		Success:       success,
	}
}

func (e *env) depositRows(t *testing.T) []models.Deposit {
	t.Helper()
	var rows []models.Deposit
	require.NoError(t, e.db.Order("id").Find(&rows).Error)
	return rows
}

func TestDepositReconciler_CreditsAndForwards(t *testing.T) {
	e := newEnv(t, "0")
	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-a", 100, 20, true)}, nil)
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("90")).Return("fwd-1", nil).Once()

	require.NoError(t, e.depositReconciler().Run(context.Background()))

	user := e.reloadUser(t)
	storetest.RequireAmount(t, "100", user.AccountBalance)
	storetest.RequireAmount(t, "100", user.TotalDeposited)

	rows := e.depositRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DepositConfirmed, rows[0].Status)

	journal, err := e.repo.ListTransactions(context.Background(), e.user.ID, models.TransactionDeposit, 0)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, models.TransactionCompleted, journal[0].Status)

	assert.Len(t, e.notifier.to(userChatID), 1)
	admin := e.notifier.to(adminChatID)
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0], "90.00 TRX")
	e.ledger.AssertExpectations(t)
}

func TestDepositReconciler_SecondRunIsNoop(t *testing.T) {
	e := newEnv(t, "0")
	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-b", 100, 20, true)}, nil)
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("90")).Return("fwd-1", nil).Once()

	r := e.depositReconciler()
	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, r.Run(context.Background()))

	user := e.reloadUser(t)
	storetest.RequireAmount(t, "100", user.AccountBalance)
	assert.Len(t, e.depositRows(t), 1)
	e.ledger.AssertNumberOfCalls(t, "Send", 1)
	assert.Len(t, e.notifier.to(userChatID), 1)
}

func TestDepositReconciler_PendingThenConfirmed(t *testing.T) {
	e := newEnv(t, "0")
	r := e.depositReconciler()

	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-p", 40, 3, true)}, nil).Once()
	require.NoError(t, r.Run(context.Background()))

	rows := e.depositRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DepositPending, rows[0].Status)
	storetest.RequireAmount(t, "0", e.reloadUser(t).AccountBalance)
	e.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)

	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-p", 40, 25, true)}, nil).Once()
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("36")).Return("fwd-2", nil).Once()
	require.NoError(t, r.Run(context.Background()))

	rows = e.depositRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DepositConfirmed, rows[0].Status)
	assert.Equal(t, int64(25), rows[0].Confirmations)
	storetest.RequireAmount(t, "40", e.reloadUser(t).AccountBalance)
	e.ledger.AssertExpectations(t)
}

func TestDepositReconciler_FailedTransfers(t *testing.T) {
	e := newEnv(t, "0")
	r := e.depositReconciler()

	e.ledger.On("ListInboundTransfers", walletAddress, 50).Return([]ledger.Transfer{
		transfer("tx-rev", 10, 25, false),
		transfer("tx-late", 20, 2, true),
	}, nil).Once()
	require.NoError(t, r.Run(context.Background()))

	e.ledger.On("ListInboundTransfers", walletAddress, 50).Return([]ledger.Transfer{
		transfer("tx-late", 20, 5, false),
	}, nil).Once()
	require.NoError(t, r.Run(context.Background()))

	rows := e.depositRows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, models.DepositFailed, rows[0].Status)
	assert.Equal(t, models.DepositFailed, rows[1].Status)
	storetest.RequireAmount(t, "0", e.reloadUser(t).AccountBalance)
	e.ledger.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositReconciler_IgnoresForeignAndEmptyTransfers(t *testing.T) {
	e := newEnv(t, "0")

	foreign := transfer("tx-foreign", 10, 25, true)
	foreign.To = "TSomeoneElsexxxxxxxxxxxxxxxxxxxxxx"
	empty := transfer("tx-empty", 0, 25, true)

	e.ledger.On("ListInboundTransfers", walletAddress, 50).Return([]ledger.Transfer{foreign, empty}, nil)
	require.NoError(t, e.depositReconciler().Run(context.Background()))

	assert.Empty(t, e.depositRows(t))
	storetest.RequireAmount(t, "0", e.reloadUser(t).AccountBalance)
}

func TestDepositReconciler_ForwardFailureKeepsCredit(t *testing.T) {
	e := newEnv(t, "0")
	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-f", 100, 20, true)}, nil)
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("90")).
		Return("", errors.New("bandwidth exhausted")).Once()

	require.NoError(t, e.depositReconciler().Run(context.Background()))

	storetest.RequireAmount(t, "100", e.reloadUser(t).AccountBalance)
	admin := e.notifier.to(adminChatID)
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0], "bandwidth exhausted")
}

func TestDepositReconciler_NotifierFailureIsHarmless(t *testing.T) {
	e := newEnv(t, "0")
	e.notifier.err = errors.New("telegram down")
	e.ledger.On("ListInboundTransfers", walletAddress, 50).
		Return([]ledger.Transfer{transfer("tx-n", 5, 20, true)}, nil)
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("4.5")).Return("fwd", nil).Once()

	require.NoError(t, e.depositReconciler().Run(context.Background()))
	storetest.RequireAmount(t, "5", e.reloadUser(t).AccountBalance)
}

func TestDepositReconciler_WalletErrorsAreIsolated(t *testing.T) {
	e := newEnv(t, "0")
	other := storetest.SeedUser(t, e.db, 2002, "0")
	sealed, err := e.cipher.Encrypt(walletKey)
	require.NoError(t, err)
	otherWallet := storetest.SeedWallet(t, e.db, other.ID, "TOtherxxxxxxxxxxxxxxxxxxxxxxxxxxxx", sealed)

	e.ledger.On("ListInboundTransfers", walletAddress, 50).Return(nil, ledger.ErrRateLimited)

	incoming := transfer("tx-other", 7, 30, true)
	incoming.To = otherWallet.Address
	e.ledger.On("ListInboundTransfers", otherWallet.Address, 50).Return([]ledger.Transfer{incoming}, nil)
	e.ledger.On("Send", walletKey, treasuryAddress, amountOf("6.3")).Return("fwd", nil).Once()

	require.NoError(t, e.depositReconciler().Run(context.Background()))

	storetest.RequireAmount(t, "7", storetest.ReloadUser(t, e.db, other.ID).AccountBalance)
	storetest.RequireAmount(t, "0", e.reloadUser(t).AccountBalance)
}

func TestDepositReconciler_PausesBetweenBatches(t *testing.T) {
	e := newEnv(t, "0")
	for i := int64(0); i < 4; i++ {
		u := storetest.SeedUser(t, e.db, 5000+i, "0")
		storetest.SeedWallet(t, e.db, u.ID, "TBatch"+string(rune('a'+i))+"xxxxxxxxxxxxxxxxxxxxxxxxxxx", "k")
	}
	e.ledger.On("ListInboundTransfers", mock.Anything, 50).Return([]ledger.Transfer{}, nil)

	r := e.depositReconciler()
	r.opts.BatchSize = 2
	r.opts.BatchPause = time.Second
	var pauses int
	r.pause = func(_ context.Context, d time.Duration) error {
		assert.Equal(t, time.Second, d)
		pauses++
		return nil
	}

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, pauses)
	e.ledger.AssertNumberOfCalls(t, "ListInboundTransfers", 5)
}

func TestDepositReconciler_StopsOnDeadline(t *testing.T) {
	e := newEnv(t, "0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.depositReconciler().Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	e.ledger.AssertNotCalled(t, "ListInboundTransfers", mock.Anything, mock.Anything)
}
