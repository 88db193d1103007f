package main

import (
	"context"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/app"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
)

const (
	logRetentionDays   = 30
	usageRetentionDays = 90
	cleanupInterval    = 24 * time.Hour
)

// background holds the long-running parts of the server.
type background struct {
	worker    *services.Worker
	scheduler *services.Scheduler
}

// bootstrap starts the queue worker, the cron scheduler and retention cleanup.
func bootstrap(ctx context.Context, a *app.App) *background {
	bg := &background{scheduler: a.Scheduler}

	if a.Queue.IsAsync() {
		bg.worker = services.NewWorker(&a.Config.Redis, a.Engine.ProcessJob)
		if bg.worker != nil {
			if err := bg.worker.Start(); err != nil {
				logger.Error().Err(err).Msg("Failed to start suggestion worker")
				bg.worker = nil
			}
		}
	}

	if err := a.Scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Pick up time-off windows that started or ended while the server was down.
	if res, err := a.Availability.Reconcile(ctx); err != nil {
		logger.Warn().Err(err).Msg("Startup reconcile failed")
	} else if res.Changed() {
		logger.Infof("[Reconcile] Startup: activated=%d expired=%d", len(res.Activated), len(res.Expired))
	}

	go runRetention(ctx, a)
	return bg
}

func runRetention(ctx context.Context, a *app.App) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		if n, err := a.SystemLogs.CleanupOldLogs(logRetentionDays); err != nil {
			logger.Warnf("[SystemLog] Cleanup failed: %v", err)
		} else if n > 0 {
			logger.Infof("[SystemLog] Removed %d old entries", n)
		}
		cutoff := time.Now().AddDate(0, 0, -usageRetentionDays)
		if n, err := a.Usage.CleanupBefore(cutoff); err != nil {
			logger.Warnf("[Oracle] Usage cleanup failed: %v", err)
		} else if n > 0 {
			logger.Infof("[Oracle] Removed %d old usage records", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// shutdown stops the scheduler and worker; the queue is closed by App.Close.
func (bg *background) shutdown() {
	bg.scheduler.Stop()
	if bg.worker != nil {
		bg.worker.Stop()
	}
	logger.Info().Msg("Background services stopped")
}
