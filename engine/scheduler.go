package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

// InitializeSchedules starts the cron jobs, currently just the result cleanup
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.CleanupIntervalMinutes
	if interval <= 0 {
		interval = 30
	}

	retention := time.Duration(serverHandler.ServerConfig.JobRetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	c := cron.New()
	var cleanupJob cron.Job
	cleanupJob = cron.FuncJob(func() { serverHandler.cleanupJobFunc(retention) })
	cleanupJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cleanupJob) //ensure we don't kick off another if old one is still running
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), cleanupJob); err != nil {
		Logger.Error("Failed to schedule cleanup job", "error", err)
	}
	Logger.Info("Adding cleanup job scheduler", "interval_minutes", interval, "retention", retention)
	c.Start()
	return c
}

// cleanupJobFunc removes finished jobs past the retention period along with their stored results
func (serverHandler *ServerHandler) cleanupJobFunc(retention time.Duration) int {
	jobs, err := serverHandler.DB.DeleteOldJobs(retention)
	if err != nil {
		Logger.Error("Failed to delete old jobs", "error", err)
		return 0
	}

	removed := 0
	for _, job := range jobs {
		if job.ResultKey == "" {
			continue
		}
		if err := serverHandler.Store.Delete(context.Background(), job.ResultKey); err != nil {
			Logger.Warn("Failed to delete stored result", "jobID", job.ID.String(), "key", job.ResultKey, "error", err)
			continue
		}
		removed++
	}
	if len(jobs) > 0 {
		Logger.Info("Cleanup complete", "jobs", len(jobs), "results", removed)
	}
	return len(jobs)
}
