package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxTitleLen = 500

type CreateTaskRequest struct {
	Title       string    `json:"title"`
	ProjectName string    `json:"projectName"`
	Priority    string    `json:"priority"`
	Deadline    time.Time `json:"deadline"`
	AssigneeID  *string   `json:"assigneeId"`
}

type TaskService struct {
	db     *gorm.DB
	engine *SuggestionEngine
	queue  TaskQueue
}

func NewTaskService(db *gorm.DB, engine *SuggestionEngine, queue TaskQueue) *TaskService {
	return &TaskService{db: db, engine: engine, queue: queue}
}

// List returns tasks by deadline, optionally filtered by status, each with
// its ranked suggestions.
func (s *TaskService) List(ctx context.Context, status string) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Preload("Suggestions", orderSuggestions)
	if status != "" {
		if !models.ValidTaskStatus(status) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		q = q.Where("status = ?", status)
	}
	tasks := []models.Task{}
	if err := q.Order("deadline ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).Preload("Suggestions", orderSuggestions).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, err
	}
	if task.Suggestions == nil {
		task.Suggestions = []models.Suggestion{}
	}
	return &task, nil
}

// Create stores a new task. Without an assignee it starts unassigned and
// suggestion generation is queued; with one it starts covered.
func (s *TaskService) Create(ctx context.Context, req *CreateTaskRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title is required and at most %d characters", ErrInvalidInput, maxTitleLen)
	}
	if !models.ValidPriority(req.Priority) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, req.Priority)
	}
	if req.Deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is required", ErrInvalidInput)
	}

	task := models.Task{
		ID:          "task-" + uuid.New().String()[:8],
		Title:       title,
		ProjectName: strings.TrimSpace(req.ProjectName),
		Priority:    req.Priority,
		Deadline:    req.Deadline.UTC(),
		Status:      models.TaskUnassigned,
	}
	if req.AssigneeID != nil && *req.AssigneeID != "" {
		if err := s.requireMember(ctx, *req.AssigneeID); err != nil {
			return nil, err
		}
		assignee := *req.AssigneeID
		task.AssigneeID = &assignee
		task.Status = models.TaskCovered
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	logger.Infof("[Task] Created %s (%s, %s)", task.ID, task.Priority, task.Status)

	if task.Status == models.TaskUnassigned {
		s.enqueue(task.ID, "created")
	}
	return s.Get(ctx, task.ID)
}

// Reassign covers the task with the given member and drops its suggestions.
func (s *TaskService) Reassign(ctx context.Context, id, memberID string) (*models.Task, error) {
	if strings.TrimSpace(memberID) == "" {
		return nil, fmt.Errorf("%w: memberId is required", ErrInvalidInput)
	}
	if err := s.requireMember(ctx, memberID); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
			"assignee_id": memberID,
			"status":      models.TaskCovered,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return tx.Where("task_id = ?", id).Delete(&models.Suggestion{}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[Task] %s reassigned to %s", id, memberID)
	LogInfo("task", "reassign", id, "task covered by "+memberID, nil)
	return s.Get(ctx, id)
}

// Unassign clears the assignee and queues fresh suggestions.
func (s *TaskService) Unassign(ctx context.Context, id string) (*models.Task, error) {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
		"assignee_id": nil,
		"status":      models.TaskUnassigned,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	logger.Infof("[Task] %s unassigned", id)
	LogInfo("task", "unassign", id, "task unassigned, regenerating suggestions", nil)
	s.enqueue(id, "unassigned")
	return s.Get(ctx, id)
}

// UpdateStatus sets the status directly. Moving a covered task back to an
// uncovered status queues suggestion generation.
func (s *TaskService) UpdateStatus(ctx context.Context, id, status string) (*models.Task, error) {
	if !models.ValidTaskStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return nil, err
	}
	logger.Infof("[Task] %s status %s -> %s", id, current.Status, status)

	if current.Status == models.TaskCovered {
		s.enqueue(id, "status changed to "+status)
	}
	return s.Get(ctx, id)
}

// Delete removes the task and its suggestions.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&models.Suggestion{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.engine != nil {
		s.engine.Forget(id)
	}
	logger.Infof("[Task] Deleted %s", id)
	LogInfo("task", "delete", id, "task deleted", nil)
	return nil
}

// Regenerate recomputes suggestions synchronously.
func (s *TaskService) Regenerate(ctx context.Context, id string) (*models.Task, error) {
	if _, err := s.engine.Regenerate(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *TaskService) requireMember(ctx context.Context, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return nil
}

// enqueue schedules suggestion generation. Queue failures are logged and
// left for a manual regenerate.
func (s *TaskService) enqueue(taskID, reason string) {
	if s.queue == nil {
		return
	}
	job := &SuggestionJob{TaskID: taskID, Reason: reason, RequestedAt: time.Now().UTC()}
	if err := s.queue.Enqueue(job); err != nil {
		logger.Warnf("[Task] Failed to queue suggestions for %s: %v", taskID, err)
	}
}
