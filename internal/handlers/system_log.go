package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

// List returns audit events, newest first
// GET /api/system-logs?page=&pageSize=&level=&module=&subject=&search=
func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	resp, err := h.systemLogService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// GET /api/system-logs/modules
func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, modules)
}
