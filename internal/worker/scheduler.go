package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/Fi44er/tron_bot/internal/metrics"
	"github.com/Fi44er/tron_bot/utils"
	"github.com/robfig/cron/v3"
)

// Job is one reconciler pass.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler fires jobs on fixed intervals. A job that is still running when
// its next tick arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	locker  RunLocker
	timeout time.Duration
	logger  *utils.Logger
}

func NewScheduler(locker RunLocker, timeout time.Duration, logger *utils.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		locker:  locker,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Scheduler) Every(interval time.Duration, job Job) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		_ = s.RunOnce(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}
	s.logger.Infof("⏱ Scheduled %s every %s", job.Name(), interval)
	return nil
}

// RunOnce executes one bounded pass of job under the run lock.
func (s *Scheduler) RunOnce(parent context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	log := s.logger.WithField("worker", job.Name())

	release, ok, err := s.locker.Acquire(ctx, job.Name(), s.timeout+time.Minute)
	if err != nil {
		log.WithError(err).Error("failed to acquire run lock")
		metrics.RecordSkippedRun(job.Name())
		return err
	}
	if !ok {
		log.Info("another instance holds the run lock, skipping")
		metrics.RecordSkippedRun(job.Name())
		return nil
	}
	defer release()

	start := time.Now()
	err = job.Run(ctx)
	elapsed := time.Since(start)
	metrics.RecordRun(job.Name(), err, elapsed.Seconds())

	if err != nil {
		log.WithError(err).WithField("elapsed", elapsed).Error("run finished with error")
		return err
	}
	log.WithField("elapsed", elapsed).Debug("run finished")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
