package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tron_bot_reconcile_runs_total",
			Help: "Total number of reconciler runs",
		},
		[]string{"worker", "result"},
	)

	ReconcileRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tron_bot_reconcile_run_duration_seconds",
			Help:    "Reconciler run duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 240},
		},
		[]string{"worker"},
	)

	DepositsCreditedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tron_bot_deposits_credited_total",
			Help: "Total number of deposits credited to users",
		},
	)

	DepositCreditedTRX = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tron_bot_deposit_credited_trx_total",
			Help: "Total TRX credited to users from deposits",
		},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tron_bot_withdrawals_total",
			Help: "Total number of finalized withdrawals",
		},
		[]string{"status"},
	)

	TreasuryForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tron_bot_treasury_forwards_total",
			Help: "Total number of deposit sweeps to the treasury",
		},
		[]string{"result"},
	)

	ItemErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tron_bot_item_errors_total",
			Help: "Errors isolated to a single wallet or withdrawal",
		},
		[]string{"worker"},
	)
)

func RecordRun(worker string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ReconcileRunsTotal.WithLabelValues(worker, result).Inc()
	ReconcileRunDuration.WithLabelValues(worker).Observe(seconds)
}

func RecordSkippedRun(worker string) {
	ReconcileRunsTotal.WithLabelValues(worker, "skipped").Inc()
}

func RecordDepositCredited(amount decimal.Decimal) {
	DepositsCreditedTotal.Inc()
	DepositCreditedTRX.Add(amount.InexactFloat64())
}

func RecordWithdrawal(status string) {
	WithdrawalsTotal.WithLabelValues(status).Inc()
}

func RecordForward(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	TreasuryForwardsTotal.WithLabelValues(result).Inc()
}

func RecordItemError(worker string) {
	ItemErrorsTotal.WithLabelValues(worker).Inc()
}
