package handlers

import (
	"net/http"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Integrations records which optional external services are configured.
type Integrations struct {
	Oracle     bool
	ChatSource bool
	Gmail      bool
}

// HealthHandler reports the state of the database and background subsystems.
type HealthHandler struct {
	db           *gorm.DB
	queue        services.TaskQueue
	hub          *services.SSEHub
	scheduler    *services.Scheduler
	integrations Integrations
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub, scheduler *services.Scheduler, integrations Integrations) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, scheduler: scheduler, integrations: integrations}
}

// CheckHealth returns 503 when the database cannot be reached.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	// Next run per scheduled job; empty until the cron loop has started.
	jobs := gin.H{}
	if h.scheduler != nil {
		for name, next := range h.scheduler.Entries() {
			if next.IsZero() {
				jobs[name] = ""
			} else {
				jobs[name] = next.Format(time.RFC3339)
			}
		}
	}

	var awaiting int64
	if dbStatus == "ok" {
		h.db.Model(&models.Task{}).Where("status <> ?", models.TaskCovered).Count(&awaiting)
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "vantage",
		"components": gin.H{
			"database":         dbStatus,
			"queueMode":        queueMode,
			"sseClients":       sseClients,
			"oracleConfigured": h.integrations.Oracle,
			"chatSource":       h.integrations.ChatSource,
			"gmail":            h.integrations.Gmail,
			"scheduledJobs":    jobs,
			"uncoveredTasks":   awaiting,
		},
	})
}
