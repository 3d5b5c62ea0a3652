package app

// Background work shared by `serve`, `queue:work` and `schedule:run`.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/cache"
	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/queue"
	"github.com/carepath-academy/carepath/pkg/schedule"
)

// housekeeping registers the cron tasks.
func (a *Application) housekeeping() (*schedule.Scheduler, error) {
	s := schedule.New()
	if err := s.Add("kv:purge", config.Get("SCHEDULE_KV_PURGE", "*/15 * * * *"), a.PurgeExpiredKeys); err != nil {
		return nil, err
	}
	if err := s.Add("failed_jobs:prune", config.Get("SCHEDULE_FAILED_JOBS_PRUNE", "0 3 * * *"), a.PruneFailedJobs); err != nil {
		return nil, err
	}
	return s, nil
}

// PurgeExpiredKeys sweeps expired reset codes and OAuth states from the
// database store. Redis expires its own keys.
func (a *Application) PurgeExpiredKeys(ctx context.Context) error {
	p, ok := a.KV.(cache.Purger)
	if !ok {
		return nil
	}
	n, err := p.PurgeExpired(ctx)
	if err != nil {
		return fmt.Errorf("kv purge: %w", err)
	}
	if n > 0 {
		logger.WithCtx(ctx).Info("kv: purged expired entries", "count", n)
	}
	return nil
}

// PruneFailedJobs deletes failed_jobs rows older than
// FAILED_JOBS_RETENTION_DAYS (30 by default).
func (a *Application) PruneFailedJobs(ctx context.Context) error {
	days := config.Int("FAILED_JOBS_RETENTION_DAYS", 30)
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res := a.DB.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&queue.FailedJobRecord{})
	if res.Error != nil {
		return fmt.Errorf("prune failed jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		logger.WithCtx(ctx).Info("queue: pruned failed jobs", "count", res.RowsAffected)
	}
	return nil
}

// RunWorkers processes queued jobs until ctx is cancelled.
func (a *Application) RunWorkers(ctx context.Context) error {
	return a.Queue.Run(ctx)
}

// RunScheduler blocks until ctx is cancelled.
func (a *Application) RunScheduler(ctx context.Context) {
	a.Scheduler.Run(ctx)
}

// Background starts the live feed hub, and the queue workers and scheduler
// when they run in-process, returning a wait function for shutdown.
func (a *Application) Background(ctx context.Context) (wait func()) {
	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { a.Hub.Run(ctx) })
	if config.Get("QUEUE_IN_PROCESS", "true") == "true" {
		start(func() {
			if err := a.RunWorkers(ctx); err != nil {
				logger.Error("queue: workers stopped", "error", err)
			}
		})
	}
	if config.Get("SCHEDULE_IN_PROCESS", "true") == "true" {
		start(func() { a.RunScheduler(ctx) })
	}
	return wg.Wait
}
