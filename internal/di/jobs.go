// Package di provides dependency injection for background jobs.
package di

import (
	"fmt"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/clientdata"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/config"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency"
	"github.com/lakjdfalken/trading-analyzer-sub001/internal/scheduler"
	"github.com/rs/zerolog"
)

const checkDatabasesSchedule = "@every 6h"

// JobInstances holds the scheduled jobs so they can be triggered manually.
type JobInstances struct {
	Scheduler      *scheduler.Scheduler
	RateRefresh    *currency.RefreshJob
	CacheCleanup   *clientdata.CleanupJob
	CheckDatabases *scheduler.CheckDatabasesJob
}

// RegisterJobs creates the background jobs and registers them with a new
// scheduler. The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		Scheduler:      scheduler.New(log),
		RateRefresh:    currency.NewRefreshJob(container.RateService, cfg.RequestTimeout),
		CacheCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, cfg.CacheRetention, log),
		CheckDatabases: scheduler.NewCheckDatabasesJob(log, container.Databases()...),
	}

	schedules := []struct {
		spec string
		job  scheduler.Job
	}{
		{cfg.RateRefreshSchedule, jobs.RateRefresh},
		{cfg.CacheCleanupSchedule, jobs.CacheCleanup},
		{checkDatabasesSchedule, jobs.CheckDatabases},
	}
	for _, s := range schedules {
		if err := jobs.Scheduler.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Background jobs registered")

	return jobs, nil
}
