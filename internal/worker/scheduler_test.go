package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fi44er/tron_bot/internal/metrics"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	err  error
	runs int
	seen context.Context
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context) error {
	j.runs++
	j.seen = ctx
	return j.err
}

type deniedLocker struct{ err error }

func (d deniedLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, d.err
}

func TestScheduler_RunOnce(t *testing.T) {
	metrics.ReconcileRunsTotal.Reset()
	s := NewScheduler(NewLocalLocker(), time.Minute, utils.NewNopLogger())

	job := &fakeJob{name: "unit-ok"}
	require.NoError(t, s.RunOnce(context.Background(), job))
	assert.Equal(t, 1, job.runs)

	deadline, ok := job.seen.Deadline()
	require.True(t, ok, "each run is bounded")
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	failing := &fakeJob{name: "unit-err", err: errors.New("db down")}
	assert.EqualError(t, s.RunOnce(context.Background(), failing), "db down")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("unit-ok", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("unit-err", "error")))
}

func TestScheduler_SkipsWhenLocked(t *testing.T) {
	metrics.ReconcileRunsTotal.Reset()
	job := &fakeJob{name: "unit-locked"}

	s := NewScheduler(deniedLocker{}, time.Minute, utils.NewNopLogger())
	require.NoError(t, s.RunOnce(context.Background(), job))
	assert.Zero(t, job.runs)

	s = NewScheduler(deniedLocker{err: errors.New("redis unreachable")}, time.Minute, utils.NewNopLogger())
	assert.Error(t, s.RunOnce(context.Background(), job))
	assert.Zero(t, job.runs)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("unit-locked", "skipped")))
}

func TestScheduler_Every(t *testing.T) {
	s := NewScheduler(NewLocalLocker(), time.Minute, utils.NewNopLogger())
	require.NoError(t, s.Every(5*time.Minute, &fakeJob{name: "unit-every"}))
	assert.Len(t, s.cron.Entries(), 1)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestRedisLocker(t *testing.T) {
	client, rmock := redismock.NewClientMock()
	locker := NewRedisLocker(client)
	locker.newToken = func() string { return "token-1" }

	key := "tron_bot:lock:deposits"
	rmock.ExpectSetNX(key, "token-1", 5*time.Minute).SetVal(true)
	rmock.ExpectEvalSha(releaseScript.Hash(), []string{key}, "token-1").SetVal(int64(1))

	release, ok, err := locker.Acquire(context.Background(), "deposits", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()

	rmock.ExpectSetNX(key, "token-1", 5*time.Minute).SetVal(false)
	_, ok, err = locker.Acquire(context.Background(), "deposits", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	rmock.ExpectSetNX(key, "token-1", 5*time.Minute).SetErr(errors.New("connection refused"))
	_, ok, err = locker.Acquire(context.Background(), "deposits", 5*time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)

	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "deposits", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "deposits", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock is not granted twice")

	other, ok, err := l.Acquire(ctx, "withdrawals", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	release()

	again, ok, err := l.Acquire(ctx, "deposits", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}
