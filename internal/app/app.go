// Package app wires configuration, storage and services into one container
// shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Loc    *time.Location

	AI           *services.AIService
	Usage        *services.AIUsageService
	Oracle       *services.LLMOracle
	Availability *services.AvailabilityService
	Holidays     *services.HolidayService
	Calendar     *services.CalendarService
	Source       services.MessageSource
	TimeOff      *services.TimeOffService
	Hub          *services.SSEHub
	Engine       *services.SuggestionEngine
	Queue        services.TaskQueue
	Tasks        *services.TaskService
	Members      *services.MemberService
	Summary      *services.SummaryService
	Ping         *services.PingService
	SystemLogs   *services.SystemLogService
	Scheduler    *services.Scheduler
}

// Options tune New for the caller. The server wants a background queue; the
// CLI runs regeneration inline.
type Options struct {
	Seed        bool
	InlineQueue bool
}

// New opens the database, migrates it and builds every service.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := models.InitDB(&cfg.Database, cfg.Log.Level); err != nil {
		return nil, err
	}
	db := models.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	services.InitSystemLogger(db)

	if opts.Seed {
		res, err := models.Seed(db, time.Now())
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to seed demo data")
		} else if !res.Skipped {
			logger.Infof("[Seed] Loaded %d members and %d tasks", res.Members, res.Tasks)
		}
	}

	a := &App{Config: cfg, DB: db, Loc: cfg.Coverage.Location()}
	a.build(opts)
	return a, nil
}

func (a *App) build(opts Options) {
	cfg := a.Config

	a.Usage = services.NewAIUsageService(a.DB)
	a.AI = services.NewAIService(&cfg.LLM)
	a.AI.SetUsageRecorder(a.Usage)
	a.Oracle = services.NewLLMOracle(a.AI, a.Loc)
	if !a.AI.Configured() {
		logger.Warnf("[Oracle] No LLM provider configured; classification and scoring will fail open")
	}

	a.Availability = services.NewAvailabilityService(a.DB, a.Loc, nil)
	a.Holidays = services.NewHolidayService()
	a.Calendar = services.NewCalendarService(a.Holidays, &cfg.Coverage)

	// A nil *SlackSource must not end up inside the interface.
	if src := services.NewSlackSource(&cfg.Slack, nil); src != nil {
		a.Source = src
	} else {
		logger.Warnf("[Slack] Bot token or channel missing; time-off sync disabled")
	}
	matcher := services.NewNameMatcher(cfg.Coverage.NameMatchThreshold)
	a.TimeOff = services.NewTimeOffService(a.DB, a.Oracle, a.Source, matcher, a.Availability, a.Loc, nil)
	gmailSrc, err := services.NewGmailSource(context.Background(), &cfg.Gmail)
	switch {
	case err != nil:
		logger.Warnf("[Gmail] Client setup failed; mailbox scan disabled: %v", err)
	case gmailSrc == nil:
		logger.Infof("[Gmail] OAuth credentials missing; mailbox scan disabled")
	default:
		a.TimeOff.SetEmailSource(gmailSrc)
	}

	a.Hub = services.NewSSEHub()
	a.Engine = services.NewSuggestionEngine(a.DB, a.Oracle, a.Availability, a.Hub)
	a.Engine.FullLoadHours = cfg.Coverage.FullLoadHours

	if opts.InlineQueue {
		q := services.NewSyncQueue()
		q.SetProcessor(a.Engine.ProcessJob)
		a.Queue = q
	} else {
		a.Queue = services.NewTaskQueue(&cfg.Redis, a.Engine.ProcessJob)
	}

	a.Tasks = services.NewTaskService(a.DB, a.Engine, a.Queue)
	a.Members = services.NewMemberService(a.DB, a.Availability, a.Calendar, nil)
	a.Summary = services.NewSummaryService(a.DB, a.Availability, nil)
	a.Ping = services.NewPingService(a.DB, &cfg.Slack, nil)
	a.SystemLogs = services.NewSystemLogService(a.DB)
	a.Scheduler = services.NewScheduler(a.DB, a.TimeOff, a.Availability, &cfg.Scheduler, a.Loc, nil)
}

// Close drains the queue and releases the database.
func (a *App) Close() {
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			logger.Warnf("[App] Queue close: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
