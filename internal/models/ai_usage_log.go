package models

import "time"

// AIUsageLog records each oracle call (classification or scoring) made to an LLM provider.
type AIUsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Operation    string    `gorm:"size:20;index" json:"operation"` // classify, score
	Subject      string    `gorm:"size:64;index" json:"subject"`   // message or task/member pair
	Provider     string    `gorm:"size:50" json:"provider"`
	Model        string    `gorm:"size:100" json:"model"`
	Attempts     int       `json:"attempts"`
	LatencyMs    int64     `json:"latencyMs"`
	Success      bool      `json:"success"`
	ErrorMessage string    `gorm:"size:500" json:"errorMessage,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
}

func (AIUsageLog) TableName() string { return "ai_usage_logs" }
