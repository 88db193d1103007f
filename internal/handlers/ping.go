package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type PingHandler struct {
	pingService *services.PingService
}

func NewPingHandler(pingService *services.PingService) *PingHandler {
	return &PingHandler{pingService: pingService}
}

// Send DMs a member asking whether they can cover a task
// POST /api/ping
func (h *PingHandler) Send(c *gin.Context) {
	var req services.PingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.pingService.Send(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}
