package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

// AIUsageHandler reports on oracle calls (time-off classification and skill scoring).
type AIUsageHandler struct {
	usageService *services.AIUsageService
}

func NewAIUsageHandler(usageService *services.AIUsageService) *AIUsageHandler {
	return &AIUsageHandler{usageService: usageService}
}

// GetStats returns aggregated oracle call statistics
// GET /api/oracle/usage?startDate=&endDate=&operation=
func (h *AIUsageHandler) GetStats(c *gin.Context) {
	stats, err := h.usageService.GetStats(c.Query("startDate"), c.Query("endDate"), c.Query("operation"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/oracle/usage/providers?startDate=&endDate=
func (h *AIUsageHandler) GetProviderBreakdown(c *gin.Context) {
	providers, err := h.usageService.GetProviderBreakdown(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, providers)
}
