package main

import (
	"context"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/app"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/handlers"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/middleware"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(ctx context.Context, r *gin.Engine, a *app.App) {
	cfg := a.Config.Server
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(cfg.CORSOrigins))

	apiLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	syncLimiter := middleware.PerMinute(ctx, cfg.SyncPerMinute)

	health := handlers.NewHealthHandler(a.DB, a.Queue, a.Hub, a.Scheduler, handlers.Integrations{
		Oracle:     a.AI.Configured(),
		ChatSource: a.Source != nil,
		Gmail:      a.TimeOff.EmailConfigured(),
	})
	r.GET("/health", health.CheckHealth)

	api := r.Group("/api", apiLimiter.Middleware())
	{
		summary := handlers.NewSummaryHandler(a.Summary)
		api.GET("/summary", summary.Get)

		members := handlers.NewMemberHandler(a.Members)
		api.GET("/members", members.List)
		api.GET("/members/:id", members.Get)
		api.PATCH("/members/:id/override", members.SetOverride)
		api.DELETE("/members/:id/override", members.ClearOverride)
		api.PATCH("/members/:id/notes", members.UpdateNotes)
		api.PATCH("/members/:id/skills", members.UpdateSkills)
		api.POST("/members/:id/availability", members.Availability)
		api.POST("/members/:id/calendar/sync", members.SyncCalendar)

		tasks := handlers.NewTaskHandler(a.Tasks)
		api.GET("/tasks", tasks.List)
		api.GET("/tasks/:id", tasks.Get)
		api.POST("/tasks", tasks.Create)
		api.PATCH("/tasks/:id/reassign", tasks.Reassign)
		api.PATCH("/tasks/:id/unassign", tasks.Unassign)
		api.PATCH("/tasks/:id/status", tasks.UpdateStatus)
		api.POST("/tasks/:id/suggestions/regenerate", tasks.Regenerate)
		api.DELETE("/tasks/:id", tasks.Delete)

		timeOff := handlers.NewTimeOffHandler(a.TimeOff)
		api.POST("/timeoff/sync", syncLimiter.Middleware(), timeOff.Sync)
		api.GET("/timeoff/debug", syncLimiter.Middleware(), timeOff.Debug)
		api.POST("/gmail/scan", syncLimiter.Middleware(), timeOff.ScanGmail)
		api.GET("/gmail/debug", syncLimiter.Middleware(), timeOff.DebugGmail)

		ping := handlers.NewPingHandler(a.Ping)
		api.POST("/ping", ping.Send)

		calendar := handlers.NewCalendarHandler(a.Holidays)
		api.GET("/calendar/countries", calendar.Countries)

		usage := handlers.NewAIUsageHandler(a.Usage)
		api.GET("/oracle/usage", usage.GetStats)
		api.GET("/oracle/usage/providers", usage.GetProviderBreakdown)

		systemLogs := handlers.NewSystemLogHandler(a.SystemLogs)
		api.GET("/system-logs", systemLogs.List)
		api.GET("/system-logs/modules", systemLogs.GetModules)
	}

	// The event stream is long-lived, so it sits outside the request limiter.
	sse := handlers.NewSSEHandler(a.Hub)
	r.GET("/api/events/suggestions", sse.StreamSuggestionEvents)
}
