package models

import "time"

// SchedulerLock claims one run of a scheduled job. Job+Slot is unique so
// only the first instance to insert a row for a slot runs it.
type SchedulerLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Job       string    `gorm:"uniqueIndex:idx_job_slot;size:64;not null" json:"job"`
	Slot      string    `gorm:"uniqueIndex:idx_job_slot;size:32;not null" json:"slot"`
	Holder    string    `gorm:"size:100" json:"holder"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
}

func (SchedulerLock) TableName() string { return "scheduler_locks" }
