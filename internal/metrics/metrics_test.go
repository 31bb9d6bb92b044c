package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecordRun(t *testing.T) {
	ReconcileRunsTotal.Reset()
	ReconcileRunDuration.Reset()

	RecordRun("deposits", nil, 1.5)
	RecordRun("deposits", nil, 0.5)
	RecordRun("deposits", errors.New("boom"), 0.1)
	RecordSkippedRun("deposits")

	assert.Equal(t, float64(2), testutil.ToFloat64(ReconcileRunsTotal.WithLabelValues("deposits", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ReconcileRunsTotal.WithLabelValues("deposits", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ReconcileRunsTotal.WithLabelValues("deposits", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(ReconcileRunDuration))
}

func TestRecordDepositCredited(t *testing.T) {
	before := testutil.ToFloat64(DepositsCreditedTotal)
	beforeTRX := testutil.ToFloat64(DepositCreditedTRX)

	RecordDepositCredited(decimal.RequireFromString("12.5"))
	RecordDepositCredited(decimal.RequireFromString("0.5"))

	assert.Equal(t, before+2, testutil.ToFloat64(DepositsCreditedTotal))
	assert.InDelta(t, beforeTRX+13, testutil.ToFloat64(DepositCreditedTRX), 1e-9)
}

func TestRecordWithdrawalAndForward(t *testing.T) {
	WithdrawalsTotal.Reset()
	TreasuryForwardsTotal.Reset()
	ItemErrorsTotal.Reset()

	RecordWithdrawal("completed")
	RecordWithdrawal("failed")
	RecordWithdrawal("failed")
	RecordForward(true)
	RecordForward(false)
	RecordItemError("withdrawals")

	assert.Equal(t, float64(1), testutil.ToFloat64(WithdrawalsTotal.WithLabelValues("completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(WithdrawalsTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TreasuryForwardsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(TreasuryForwardsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ItemErrorsTotal.WithLabelValues("withdrawals")))
}
