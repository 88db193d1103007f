package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type SummaryHandler struct {
	summaryService *services.SummaryService
}

func NewSummaryHandler(summaryService *services.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService}
}

// GET /api/summary
func (h *SummaryHandler) Get(c *gin.Context) {
	summary, err := h.summaryService.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, summary)
}
