package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sseKeepAlive = 25 * time.Second

// SSEHandler streams suggestion generation events.
type SSEHandler struct {
	hub *services.SSEHub
}

func NewSSEHandler(hub *services.SSEHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamSuggestionEvents pushes generating/ready/failed events so clients can
// stop polling a task once its suggestions are ready.
// GET /api/events/suggestions
func (h *SSEHandler) StreamSuggestionEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	taskFilter := c.Query("taskId")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			if taskFilter != "" && event.TaskID != taskFilter {
				return true
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: suggestions\ndata: %s\n\n", data)
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
