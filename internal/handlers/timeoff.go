package handlers

import (
	"strconv"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	defaultSyncHours = 24
	maxSyncHours     = 720
	defaultSyncLimit = 100
	maxSyncLimit     = 999

	defaultGmailScanResults  = 100
	maxGmailScanResults      = 500
	defaultGmailDebugResults = 20
	maxGmailDebugResults     = 100
)

type TimeOffHandler struct {
	timeOffService *services.TimeOffService
}

func NewTimeOffHandler(timeOffService *services.TimeOffService) *TimeOffHandler {
	return &TimeOffHandler{timeOffService: timeOffService}
}

// Sync scans recent chat messages and applies detected time off
// POST /api/timeoff/sync?hours=&limit=
func (h *TimeOffHandler) Sync(c *gin.Context) {
	hours, limit, ok := syncWindow(c)
	if !ok {
		return
	}
	result, err := h.timeOffService.Sync(c.Request.Context(), hours, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// Debug runs the same pipeline without writing and returns a trace per message
// GET /api/timeoff/debug?hours=&limit=
func (h *TimeOffHandler) Debug(c *gin.Context) {
	hours, limit, ok := syncWindow(c)
	if !ok {
		return
	}
	traces, err := h.timeOffService.DebugSync(c.Request.Context(), hours, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, traces)
}

// ScanGmail reads out-of-office emails and applies detected time off
// POST /api/gmail/scan?maxResults=
func (h *TimeOffHandler) ScanGmail(c *gin.Context) {
	limit, ok := boundedQuery(c, "maxResults", defaultGmailScanResults, maxGmailScanResults)
	if !ok {
		return
	}
	result, err := h.timeOffService.ScanGmail(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

// DebugGmail traces a mailbox scan without writing
// GET /api/gmail/debug?maxResults=
func (h *TimeOffHandler) DebugGmail(c *gin.Context) {
	limit, ok := boundedQuery(c, "maxResults", defaultGmailDebugResults, maxGmailDebugResults)
	if !ok {
		return
	}
	out, err := h.timeOffService.DebugGmail(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, out)
}

func syncWindow(c *gin.Context) (hours, limit int, ok bool) {
	hours, ok = boundedQuery(c, "hours", defaultSyncHours, maxSyncHours)
	if !ok {
		return 0, 0, false
	}
	limit, ok = boundedQuery(c, "limit", defaultSyncLimit, maxSyncLimit)
	return hours, limit, ok
}

func boundedQuery(c *gin.Context, name string, def, upper int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > upper {
		response.BadRequest(c, name+" must be an integer between 1 and "+strconv.Itoa(upper))
		return 0, false
	}
	return v, true
}
