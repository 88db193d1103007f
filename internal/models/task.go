package models

import "time"

const (
	TaskAtRisk     = "at-risk"
	TaskUnassigned = "unassigned"
	TaskCovered    = "covered"
)

const (
	PriorityP0 = "P0"
	PriorityP1 = "P1"
	PriorityP2 = "P2"
)

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskAtRisk, TaskUnassigned, TaskCovered:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2:
		return true
	}
	return false
}

// IsCritical reports whether p is urgent enough to count toward critical-at-risk.
func IsCritical(p string) bool {
	return p == PriorityP0 || p == PriorityP1
}

type Task struct {
	ID          string       `gorm:"primaryKey;size:64" json:"id"`
	Title       string       `gorm:"size:500;not null" json:"title"`
	ProjectName string       `gorm:"size:200" json:"projectName"`
	Priority    string       `gorm:"size:4;index" json:"priority"`
	Deadline    time.Time    `json:"deadline"`
	AssigneeID  *string      `gorm:"size:32;index" json:"assigneeId"`
	Status      string       `gorm:"size:20;index;default:unassigned" json:"status"`
	Suggestions []Suggestion `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"suggestions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (Task) TableName() string { return "tasks" }

// Suggestion is one ranked candidate for a task. Rank 0 is the best.
type Suggestion struct {
	ID            uint    `gorm:"primaryKey" json:"-"`
	TaskID        string  `gorm:"size:64;index;not null" json:"-"`
	MemberID      string  `gorm:"size:32;not null" json:"memberId"`
	SkillMatchPct float64 `json:"skillMatchPct"`
	WorkloadPct   float64 `json:"workloadPct"`
	ContextReason string  `gorm:"type:text" json:"contextReason"`
	Rank          int     `gorm:"column:rank_order;default:0" json:"rank"`
}

func (Suggestion) TableName() string { return "suggestions" }
