// Package scheduler runs the periodic maintenance jobs: the deletion sweep
// that purges accounts past their grace period, the audit retention purge,
// and rate-limit counter cleanup for the in-process store.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"heartlink.io/trustengine/internal/pkg/logger"
)

// DeletionSweeper purges accounts whose deletion grace period elapsed.
type DeletionSweeper interface {
	ProcessScheduledDeletions(ctx context.Context) (int, error)
}

// AuditPurger removes audit events past the retention horizon.
type AuditPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// CounterCleaner drops expired rate-limit counters. Only the memory store
// needs this; Redis keys expire on their own.
type CounterCleaner interface {
	Cleanup(ctx context.Context) int
}

// Config holds the job schedules in cron syntax (descriptors like @hourly
// are accepted).
type Config struct {
	SweepSchedule string
	PurgeSchedule string
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	sweeper DeletionSweeper
	purger  AuditPurger
	cleaner CounterCleaner
}

// jobTimeout bounds one run of any maintenance job.
const jobTimeout = 10 * time.Minute

// New creates a Scheduler with all jobs registered. cleaner may be nil.
func New(cfg Config, sweeper DeletionSweeper, purger AuditPurger, cleaner CounterCleaner) (*Scheduler, error) {
	cl := cronLogger{}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cl),
		cron.Recover(cl),
	))

	s := &Scheduler{
		cron:    c,
		sweeper: sweeper,
		purger:  purger,
		cleaner: cleaner,
	}

	if _, err := c.AddFunc(cfg.SweepSchedule, func() { s.RunSweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("register deletion sweep %q: %w", cfg.SweepSchedule, err)
	}
	if _, err := c.AddFunc(cfg.PurgeSchedule, func() { s.RunPurge(context.Background()) }); err != nil {
		return nil, fmt.Errorf("register audit purge %q: %w", cfg.PurgeSchedule, err)
	}
	if cleaner != nil {
		if _, err := c.AddFunc("@hourly", func() { s.RunCleanup(context.Background()) }); err != nil {
			return nil, fmt.Errorf("register counter cleanup: %w", err)
		}
	}

	return s, nil
}

// Start launches the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// RunSweep runs the deletion sweep once.
func (s *Scheduler) RunSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	purged, err := s.sweeper.ProcessScheduledDeletions(ctx)
	if err != nil {
		logger.Error("deletion sweep failed", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Info("deletion sweep finished", zap.Int("accounts_purged", purged))
	}
}

// RunPurge runs the audit retention purge once.
func (s *Scheduler) RunPurge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	removed, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		logger.Error("audit purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("audit purge finished", zap.Int("events_removed", removed))
	}
}

// RunCleanup drops expired rate-limit counters once.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	if removed := s.cleaner.Cleanup(ctx); removed > 0 {
		logger.Debug("rate limit counter cleanup finished", zap.Int("keys_removed", removed))
	}
}

// cronLogger adapts the global zap logger to cron's logging interface.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.S().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.S().Errorw(msg, append(keysAndValues, "error", err)...)
}
