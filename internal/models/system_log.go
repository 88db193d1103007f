package models

import "time"

// SystemLog is an audit record for overrides, sync runs and reconciliation.
type SystemLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // info, warning, error
	Module    string    `gorm:"size:100;index" json:"module"`
	Action    string    `gorm:"size:200;index" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	Subject   string    `gorm:"size:64;index" json:"subject"` // member or task id
	Extra     string    `gorm:"type:text" json:"extra"`       // JSON
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (SystemLog) TableName() string { return "system_logs" }
