package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

type OverrideRequest struct {
	LeaveStatus string `json:"leaveStatus" binding:"required"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type SkillsRequest struct {
	Skills []string `json:"skills" binding:"required"`
}

// CalendarRequest carries busy blocks for an availability computation.
// Empty range bounds mean the current work week.
type CalendarRequest struct {
	Busy       []services.BusyInterval `json:"busy"`
	RangeStart string                  `json:"rangeStart"`
	RangeEnd   string                  `json:"rangeEnd"`
}

type CalendarSyncResponse struct {
	Member *services.MemberOut          `json:"member"`
	Report *services.AvailabilityReport `json:"report"`
}

// List returns the roster with effective statuses
// GET /api/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.memberService.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, members)
}

// GET /api/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.memberService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// SetOverride pins a member's leave status until cleared
// PATCH /api/members/:id/override
func (h *MemberHandler) SetOverride(c *gin.Context) {
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	member, err := h.memberService.SetOverride(c.Request.Context(), c.Param("id"), req.LeaveStatus)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// DELETE /api/members/:id/override
func (h *MemberHandler) ClearOverride(c *gin.Context) {
	member, err := h.memberService.ClearOverride(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// PATCH /api/members/:id/notes
func (h *MemberHandler) UpdateNotes(c *gin.Context) {
	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	member, err := h.memberService.UpdateNotes(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// PATCH /api/members/:id/skills
func (h *MemberHandler) UpdateSkills(c *gin.Context) {
	var req SkillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	member, err := h.memberService.UpdateSkills(c.Request.Context(), c.Param("id"), req.Skills)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// Availability computes free time from busy blocks without saving it
// POST /api/members/:id/availability
func (h *MemberHandler) Availability(c *gin.Context) {
	var req CalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	report, err := h.memberService.Availability(c.Request.Context(), c.Param("id"), req.Busy, req.RangeStart, req.RangeEnd)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, report)
}

// SyncCalendar stores calendar availability, week breakdown and confidence
// POST /api/members/:id/calendar/sync
func (h *MemberHandler) SyncCalendar(c *gin.Context) {
	var req CalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	member, report, err := h.memberService.SyncCalendar(c.Request.Context(), c.Param("id"), req.Busy, req.RangeStart, req.RangeEnd)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, CalendarSyncResponse{Member: member, Report: report})
}
