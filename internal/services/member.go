package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

const (
	maxNotesLen = 5000
	maxSkills   = 50
	maxSkillLen = 100
)

type DataSources struct {
	CalendarPct   float64 `json:"calendarPct"`
	TaskLoadHours float64 `json:"taskLoadHours"`
	LeaveStatus   string  `json:"leaveStatus"`
}

// TimeOffOut is a member's recorded time-off window. Active is false while
// the window has not started yet.
type TimeOffOut struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Reason   string `json:"reason,omitempty"`
	Coverage string `json:"coverage,omitempty"`
	Active   bool   `json:"active"`
}

// MemberOut is the roster view of a member with effective availability applied.
type MemberOut struct {
	ID                 string                  `json:"id"`
	Name               string                  `json:"name"`
	Role               string                  `json:"role"`
	Team               string                  `json:"team"`
	ConfidenceScore    float64                 `json:"confidenceScore"`
	Skills             []string                `json:"skills"`
	DataSources        DataSources             `json:"dataSources"`
	IsOOO              bool                    `json:"isOOO"`
	ManuallyOverridden bool                    `json:"manuallyOverridden"`
	LastSynced         time.Time               `json:"lastSynced"`
	WeekAvailability   models.WeekAvailability `json:"weekAvailability"`
	CurrentTasks       []models.Task           `json:"currentTasks"`
	TimeOff            *TimeOffOut             `json:"timeOff"`
	UpcomingTimeOff    *TimeOffOut             `json:"upcomingTimeOff,omitempty"`
	Notes              string                  `json:"notes"`
}

type MemberService struct {
	db           *gorm.DB
	availability *AvailabilityService
	calendar     *CalendarService
	clock        Clock
}

func NewMemberService(db *gorm.DB, availability *AvailabilityService, calendar *CalendarService, clock Clock) *MemberService {
	if clock == nil {
		clock = time.Now
	}
	return &MemberService{db: db, availability: availability, calendar: calendar, clock: clock}
}

// List runs a reconciliation tick, then returns the whole roster.
func (s *MemberService) List(ctx context.Context) ([]MemberOut, error) {
	if _, err := s.availability.Reconcile(ctx); err != nil {
		logger.Warnf("[Member] Reconcile before list failed: %v", err)
	}

	var members []models.Member
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&members).Error; err != nil {
		return nil, err
	}

	tasks, err := openTasksByAssignee(s.db.WithContext(ctx), nil)
	if err != nil {
		return nil, err
	}

	today := s.availability.Today()
	out := make([]MemberOut, 0, len(members))
	for i := range members {
		out = append(out, buildMemberOut(&members[i], tasks[members[i].ID], today))
	}
	return out, nil
}

func (s *MemberService) Get(ctx context.Context, id string) (*MemberOut, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := openTasksByAssignee(s.db.WithContext(ctx), []string{id})
	if err != nil {
		return nil, err
	}
	out := buildMemberOut(m, tasks[id], s.availability.Today())
	return &out, nil
}

func (s *MemberService) load(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		return nil, err
	}
	return &m, nil
}

// SetOverride pins a member's leave status until the override is cleared.
// Chat sync and reconciliation leave overridden members alone.
func (s *MemberService) SetOverride(ctx context.Context, id, status string) (*MemberOut, error) {
	if !models.ValidLeaveStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLeaveStatus, status)
	}
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(map[string]interface{}{
		"leave_status":        status,
		"is_ooo":              status == models.LeaveOOO,
		"manually_overridden": true,
	}).Error
	if err != nil {
		return nil, err
	}

	logger.Infof("[Member] Override set for %s: %s -> %s", id, m.LeaveStatus, status)
	LogInfo("member", "override_set", id, fmt.Sprintf("%s set to %s manually", m.Name, status),
		map[string]string{"from": m.LeaveStatus, "to": status})
	return s.Get(ctx, id)
}

// ClearOverride restores the member to available and drops any stored
// time-off windows; the next sync re-derives status from fresh signals.
func (s *MemberService) ClearOverride(ctx context.Context, id string) (*MemberOut, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	cleared := *m
	cleared.SetLeaveWindows(nil)
	updates := cleared.LeaveWindowColumns()
	updates["leave_status"] = models.LeaveAvailable
	updates["is_ooo"] = false
	updates["manually_overridden"] = false
	err = s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return nil, err
	}

	logger.Infof("[Member] Override cleared for %s", id)
	LogInfo("member", "override_cleared", id, m.Name+" override cleared", nil)
	return s.Get(ctx, id)
}

func (s *MemberService) UpdateNotes(ctx context.Context, id, notes string) (*MemberOut, error) {
	if len(notes) > maxNotesLen {
		return nil, fmt.Errorf("%w: notes longer than %d characters", ErrInvalidInput, maxNotesLen)
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Update("notes", notes).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// UpdateSkills replaces the skill set. Blank entries are dropped and
// duplicates are removed case-insensitively, keeping the first spelling.
func (s *MemberService) UpdateSkills(ctx context.Context, id string, skills []string) (*MemberOut, error) {
	cleaned, err := normalizeSkills(skills)
	if err != nil {
		return nil, err
	}
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Skills = cleaned
	if err := s.db.WithContext(ctx).Model(m).Select("skills").Updates(m).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func normalizeSkills(skills []string) ([]string, error) {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, sk := range skills {
		sk = strings.TrimSpace(sk)
		if sk == "" {
			continue
		}
		if len(sk) > maxSkillLen {
			return nil, fmt.Errorf("%w: skill %q is too long", ErrInvalidInput, sk[:20]+"...")
		}
		key := strings.ToLower(sk)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sk)
	}
	if len(out) > maxSkills {
		return nil, fmt.Errorf("%w: at most %d skills", ErrInvalidInput, maxSkills)
	}
	return out, nil
}

// Availability computes calendar availability without saving it.
func (s *MemberService) Availability(ctx context.Context, id string, busy []BusyInterval, rangeStart, rangeEnd string) (*AvailabilityReport, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.calendar.Report(busy, rangeStart, rangeEnd, s.clock())
}

// SyncCalendar computes availability and stores calendar %, the weekly
// breakdown and a recomputed confidence score.
func (s *MemberService) SyncCalendar(ctx context.Context, id string, busy []BusyInterval, rangeStart, rangeEnd string) (*MemberOut, *AvailabilityReport, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.calendar.Report(busy, rangeStart, rangeEnd, s.clock())
	if err != nil {
		return nil, nil, err
	}

	status := EffectiveStatus(m, s.availability.Today())
	confidence := ComputeConfidence(report.AvailabilityPct, m.TaskLoadHours, status)

	err = s.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(map[string]interface{}{
		"calendar_pct":     report.AvailabilityPct,
		"confidence_score": confidence,
		"week_monday":      report.Week.Monday,
		"week_tuesday":     report.Week.Tuesday,
		"week_wednesday":   report.Week.Wednesday,
		"week_thursday":    report.Week.Thursday,
		"week_friday":      report.Week.Friday,
		"last_synced":      s.clock().UTC(),
	}).Error
	if err != nil {
		return nil, nil, err
	}

	logger.Infof("[Member] Calendar synced for %s: %.1f%% free, confidence %.1f", id, report.AvailabilityPct, confidence)
	LogInfo("member", "calendar_sync", id,
		fmt.Sprintf("%s calendar %.1f%% free over %s..%s", m.Name, report.AvailabilityPct, report.RangeStart, report.RangeEnd), nil)

	out, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return out, report, nil
}

// openTasksByAssignee loads non-covered tasks with ranked suggestions,
// grouped by assignee. ids narrows the lookup when non-empty.
func openTasksByAssignee(db *gorm.DB, ids []string) (map[string][]models.Task, error) {
	q := db.Preload("Suggestions", orderSuggestions).
		Where("assignee_id IS NOT NULL AND status <> ?", models.TaskCovered)
	if len(ids) > 0 {
		q = q.Where("assignee_id IN ?", ids)
	}
	var tasks []models.Task
	if err := q.Order("deadline ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	out := make(map[string][]models.Task)
	for _, t := range tasks {
		out[*t.AssigneeID] = append(out[*t.AssigneeID], t)
	}
	return out, nil
}

func orderSuggestions(db *gorm.DB) *gorm.DB {
	return db.Order("rank_order ASC")
}

func buildMemberOut(m *models.Member, tasks []models.Task, today string) MemberOut {
	status := EffectiveStatus(m, today)
	skills := m.Skills
	if skills == nil {
		skills = []string{}
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	out := MemberOut{
		ID:              m.ID,
		Name:            m.Name,
		Role:            m.Role,
		Team:            m.Team,
		ConfidenceScore: m.ConfidenceScore,
		Skills:          skills,
		DataSources: DataSources{
			CalendarPct:   m.CalendarPct,
			TaskLoadHours: m.TaskLoadHours,
			LeaveStatus:   status,
		},
		IsOOO:              status == models.LeaveOOO,
		ManuallyOverridden: m.ManuallyOverridden,
		LastSynced:         m.LastSynced,
		WeekAvailability:   m.Week,
		CurrentTasks:       tasks,
		Notes:              m.Notes,
	}

	if ws, err := MemberWindows(m); err == nil {
		kept, _ := dropEnded(ws, today)
		if len(kept) > 0 {
			out.TimeOff = newTimeOffOut(kept[0], today)
		}
		if len(kept) > 1 {
			out.UpcomingTimeOff = newTimeOffOut(kept[1], today)
		}
	}
	return out
}

func newTimeOffOut(w models.LeaveWindow, today string) *TimeOffOut {
	return &TimeOffOut{
		Start:    w.Start,
		End:      w.End,
		Reason:   w.Reason,
		Coverage: w.Coverage,
		Active:   w.Start <= today && today <= w.End,
	}
}
