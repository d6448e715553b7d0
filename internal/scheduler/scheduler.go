// Package scheduler runs the periodic booking sweeps on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"car-rental/pkg/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the part of the booking service the jobs drive.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
	StartDue(ctx context.Context) (int, error)
	RejectStalePending(ctx context.Context) (int, error)
}

// jobTimeout bounds one sweep run.
const jobTimeout = 2 * time.Minute

// Jobs contains the sweep runners registered with cron.
type Jobs struct {
	sweeper Sweeper
	log     *zap.Logger
	ctx     context.Context
}

func NewJobs(ctx context.Context, sweeper Sweeper, log *zap.Logger) *Jobs {
	return &Jobs{
		sweeper: sweeper,
		log:     log.With(zap.String("component", "scheduler")),
		ctx:     ctx,
	}
}

// ExpireOverdue moves approved bookings that were never paid to expired.
func (j *Jobs) ExpireOverdue() {
	j.run("expire_overdue", j.sweeper.ExpireOverdue)
}

// StartDue starts paid bookings whose start time has passed.
func (j *Jobs) StartDue() {
	j.run("start_due", j.sweeper.StartDue)
}

// RejectStalePending rejects pending requests the owner never answered.
func (j *Jobs) RejectStalePending() {
	j.run("reject_stale_pending", j.sweeper.RejectStalePending)
}

func (j *Jobs) run(name string, sweep func(context.Context) (int, error)) {
	if j.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(j.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := sweep(ctx)
	if err != nil {
		j.log.Error("Sweep failed",
			zap.String("job", name),
			zap.Int("processed", n),
			zap.Error(err),
		)
		return
	}
	if n > 0 {
		j.log.Info("Sweep finished",
			zap.String("job", name),
			zap.Int("processed", n),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	config utils.SchedulerConfig
	log    *zap.Logger
}

func NewScheduler(jobs *Jobs, config utils.SchedulerConfig, log *zap.Logger) *Scheduler {
	cronLog := cronLogger{log: log.With(zap.String("component", "cron"))}
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		config: config,
		log:    log.With(zap.String("component", "scheduler")),
	}
}

// Start registers every sweep and starts the cron runner. A bad schedule
// is returned before anything runs.
func (s *Scheduler) Start() error {
	entries := []struct {
		name     string
		schedule string
		job      func()
	}{
		{"expire_overdue", s.config.ExpireSchedule, s.jobs.ExpireOverdue},
		{"start_due", s.config.StartSchedule, s.jobs.StartDue},
		{"reject_stale_pending", s.config.StalePendingSchedule, s.jobs.RejectStalePending},
	}

	for _, e := range entries {
		if _, err := s.cron.AddFunc(e.schedule, e.job); err != nil {
			return fmt.Errorf("schedule %s %q: %w", e.name, e.schedule, err)
		}
		s.log.Info("Scheduled job", zap.String("job", e.name), zap.String("schedule", e.schedule))
	}

	s.cron.Start()
	return nil
}

// Stop stops scheduling and returns a context that is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
