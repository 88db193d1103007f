package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

var (
	auditDB   *gorm.DB
	auditDBMu sync.RWMutex
)

// InitSystemLogger sets the database audit events are written to.
// Passing nil turns persistence off.
func InitSystemLogger(db *gorm.DB) {
	auditDBMu.Lock()
	auditDB = db
	auditDBMu.Unlock()
}

func LogInfo(module, action, subject, message string, extra interface{}) {
	writeLog("info", module, action, subject, message, extra)
}

func LogWarning(module, action, subject, message string, extra interface{}) {
	writeLog("warning", module, action, subject, message, extra)
}

func LogError(module, action, subject, message string, extra interface{}) {
	writeLog("error", module, action, subject, message, extra)
}

func writeLog(level, module, action, subject, message string, extra interface{}) {
	auditDBMu.RLock()
	db := auditDB
	auditDBMu.RUnlock()
	if db == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Subject:   subject,
		Message:   message,
		Extra:     extraStr,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(entry).Error; err != nil {
		logger.Warnf("[SystemLog] Failed to persist %s/%s: %v", module, action, err)
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Level    string `form:"level"`
	Module   string `form:"module"`
	Subject  string `form:"subject"`
	Search   string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 100 {
		req.PageSize = 20
	}

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Subject != "" {
		query = query.Where("subject = ?", req.Subject)
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var logs []models.SystemLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

// CleanupOldLogs deletes entries older than retentionDays and returns the count.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}

// GetModules lists the distinct modules that have written events.
func (s *SystemLogService) GetModules() ([]string, error) {
	modules := []string{}
	err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module ASC").Pluck("module", &modules).Error
	return modules, err
}
