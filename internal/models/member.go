package models

import "time"

const (
	LeaveAvailable = "available"
	LeavePartial   = "partial"
	LeaveOOO       = "ooo"
)

// ValidLeaveStatus reports whether s is one of the three leave states.
func ValidLeaveStatus(s string) bool {
	switch s {
	case LeaveAvailable, LeavePartial, LeaveOOO:
		return true
	}
	return false
}

// WeekAvailability holds 0-100 availability per working day.
type WeekAvailability struct {
	Monday    float64 `json:"monday"`
	Tuesday   float64 `json:"tuesday"`
	Wednesday float64 `json:"wednesday"`
	Thursday  float64 `json:"thursday"`
	Friday    float64 `json:"friday"`
}

// LeaveWindow is a time-off window in YYYY-MM-DD calendar days.
type LeaveWindow struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Reason   string `json:"reason,omitempty"`
	Coverage string `json:"coverage,omitempty"`
}

// Member is a person on the roster. Up to two disjoint time-off windows
// detected from chat are kept, earliest first: TimeOff* is the current or
// next one, Pending* the one after it.
type Member struct {
	ID                 string           `gorm:"primaryKey;size:32" json:"id"`
	Name               string           `gorm:"size:200;not null" json:"name"`
	Role               string           `gorm:"size:200" json:"role"`
	Team               string           `gorm:"size:100;index" json:"team"`
	Skills             []string         `gorm:"serializer:json;type:text" json:"skills"`
	ConfidenceScore    float64          `json:"confidenceScore"`
	CalendarPct        float64          `json:"calendarPct"`
	TaskLoadHours      float64          `json:"taskLoadHours"`
	LeaveStatus        string           `gorm:"size:20;default:available" json:"leaveStatus"`
	IsOOO              bool             `gorm:"column:is_ooo;index" json:"isOOO"`
	ManuallyOverridden bool             `gorm:"default:false" json:"manuallyOverridden"`
	TimeOffStart       string           `gorm:"size:10" json:"timeOffStart"`
	TimeOffEnd         string           `gorm:"size:10" json:"timeOffEnd"`
	TimeOffReason      string           `gorm:"size:500" json:"timeOffReason"`
	TimeOffCoverage    string           `gorm:"size:200" json:"timeOffCoverage"`
	PendingStart       string           `gorm:"size:10" json:"pendingStart"`
	PendingEnd         string           `gorm:"size:10" json:"pendingEnd"`
	PendingReason      string           `gorm:"size:500" json:"pendingReason"`
	PendingCoverage    string           `gorm:"size:200" json:"pendingCoverage"`
	Notes              string           `gorm:"type:text" json:"notes"`
	SlackUserID        string           `gorm:"size:32" json:"slackUserId"`
	Week               WeekAvailability `gorm:"embedded;embeddedPrefix:week_" json:"weekAvailability"`
	LastSynced         time.Time        `json:"lastSynced"`
	CreatedAt          time.Time        `json:"-"`
	UpdatedAt          time.Time        `json:"-"`
}

func (Member) TableName() string { return "team_members" }

// HasTimeOffWindow reports whether any part of either window is recorded.
func (m *Member) HasTimeOffWindow() bool {
	return m.TimeOffStart != "" || m.TimeOffEnd != "" || m.PendingStart != "" || m.PendingEnd != ""
}

// LeaveWindows returns the stored windows as recorded, without validation.
func (m *Member) LeaveWindows() []LeaveWindow {
	var ws []LeaveWindow
	if m.TimeOffStart != "" || m.TimeOffEnd != "" {
		ws = append(ws, LeaveWindow{Start: m.TimeOffStart, End: m.TimeOffEnd, Reason: m.TimeOffReason, Coverage: m.TimeOffCoverage})
	}
	if m.PendingStart != "" || m.PendingEnd != "" {
		ws = append(ws, LeaveWindow{Start: m.PendingStart, End: m.PendingEnd, Reason: m.PendingReason, Coverage: m.PendingCoverage})
	}
	return ws
}

// SetLeaveWindows stores the first two windows and clears the rest.
func (m *Member) SetLeaveWindows(ws []LeaveWindow) {
	var cur, next LeaveWindow
	if len(ws) > 0 {
		cur = ws[0]
	}
	if len(ws) > 1 {
		next = ws[1]
	}
	m.TimeOffStart, m.TimeOffEnd, m.TimeOffReason, m.TimeOffCoverage = cur.Start, cur.End, cur.Reason, cur.Coverage
	m.PendingStart, m.PendingEnd, m.PendingReason, m.PendingCoverage = next.Start, next.End, next.Reason, next.Coverage
}

// LeaveWindowColumns returns the window columns for a gorm Updates map.
func (m *Member) LeaveWindowColumns() map[string]interface{} {
	return map[string]interface{}{
		"time_off_start":    m.TimeOffStart,
		"time_off_end":      m.TimeOffEnd,
		"time_off_reason":   m.TimeOffReason,
		"time_off_coverage": m.TimeOffCoverage,
		"pending_start":     m.PendingStart,
		"pending_end":       m.PendingEnd,
		"pending_reason":    m.PendingReason,
		"pending_coverage":  m.PendingCoverage,
	}
}
