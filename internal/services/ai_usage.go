package services

import (
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

// AIUsageService tracks oracle calls and aggregates them for the usage endpoints.
type AIUsageService struct {
	db *gorm.DB
}

func NewAIUsageService(db *gorm.DB) *AIUsageService {
	return &AIUsageService{db: db}
}

// Record saves a usage entry asynchronously.
func (s *AIUsageService) Record(log *models.AIUsageLog) {
	go func() {
		if err := s.record(log); err != nil {
			logger.Infof("[AIUsage] Failed to record usage: %v", err)
		}
	}()
}

func (s *AIUsageService) record(log *models.AIUsageLog) error {
	if len(log.ErrorMessage) > 500 {
		log.ErrorMessage = log.ErrorMessage[:500]
	}
	return s.db.Create(log).Error
}

type UsageStats struct {
	TotalCalls   int64   `json:"totalCalls"`
	SuccessCount int64   `json:"successCount"`
	FailureCount int64   `json:"failureCount"`
	SuccessRate  float64 `json:"successRate"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	AvgAttempts  float64 `json:"avgAttempts"`
}

func (s *AIUsageService) scoped(startDate, endDate, operation string) *gorm.DB {
	query := s.db.Model(&models.AIUsageLog{})
	if startDate != "" {
		query = query.Where("created_at >= ?", startDate)
	}
	if endDate != "" {
		query = query.Where("created_at <= ?", endDate+" 23:59:59")
	}
	if operation != "" {
		query = query.Where("operation = ?", operation)
	}
	return query
}

// GetStats returns aggregated usage for the date range, optionally for one operation.
func (s *AIUsageService) GetStats(startDate, endDate, operation string) (*UsageStats, error) {
	var stats UsageStats
	err := s.scoped(startDate, endDate, operation).Select(
		"COUNT(*) as total_calls, "+
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms, "+
			"COALESCE(AVG(attempts), 0) as avg_attempts, "+
			"COALESCE(SUM(CASE WHEN success = ? THEN 1 ELSE 0 END), 0) as success_count, "+
			"COALESCE(SUM(CASE WHEN success = ? THEN 1 ELSE 0 END), 0) as failure_count",
		true, false,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	if stats.TotalCalls > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalCalls) * 100
	}
	return &stats, nil
}

type ProviderUsage struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	Failures     int     `json:"failures"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// GetProviderBreakdown returns usage grouped by provider and model.
func (s *AIUsageService) GetProviderBreakdown(startDate, endDate string) ([]ProviderUsage, error) {
	var results []ProviderUsage
	err := s.scoped(startDate, endDate, "").Select(
		"provider, model, "+
			"COUNT(*) as calls, "+
			"COALESCE(SUM(CASE WHEN success = ? THEN 1 ELSE 0 END), 0) as failures, "+
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms",
		false,
	).Group("provider, model").Order("calls DESC").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	if results == nil {
		results = []ProviderUsage{}
	}
	return results, nil
}

// CleanupBefore deletes usage entries older than before.
func (s *AIUsageService) CleanupBefore(before time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", before).Delete(&models.AIUsageLog{})
	return result.RowsAffected, result.Error
}
