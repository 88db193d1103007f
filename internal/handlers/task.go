package handlers

import (
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/services"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/response"
	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type ReassignRequest struct {
	MemberID string `json:"memberId" binding:"required"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// List returns tasks ordered by deadline with their suggestions
// GET /api/tasks?status=
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, tasks)
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// Create adds a task. Without an assignee suggestions are generated in the background.
// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	task, err := h.taskService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, task)
}

// PATCH /api/tasks/:id/reassign
func (h *TaskHandler) Reassign(c *gin.Context) {
	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	task, err := h.taskService.Reassign(c.Request.Context(), c.Param("id"), req.MemberID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// PATCH /api/tasks/:id/unassign
func (h *TaskHandler) Unassign(c *gin.Context) {
	task, err := h.taskService.Unassign(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	task, err := h.taskService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// Regenerate recomputes suggestions synchronously
// POST /api/tasks/:id/suggestions/regenerate
func (h *TaskHandler) Regenerate(c *gin.Context) {
	task, err := h.taskService.Regenerate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, task)
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": c.Param("id")})
}
