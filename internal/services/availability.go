package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

// DateLayout is the calendar-day format used for time-off windows.
// Days in this layout compare correctly as plain strings.
const DateLayout = "2006-01-02"

// Clock returns the current instant. Tests substitute a fixed one.
type Clock func() time.Time

// Today formats the calendar day of now in loc.
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// MemberWindows validates the member's stored windows and returns them
// normalized, earliest first. A missing end means a single day.
func MemberWindows(m *models.Member) ([]models.LeaveWindow, error) {
	raw := m.LeaveWindows()
	out := make([]models.LeaveWindow, 0, len(raw))
	for _, w := range raw {
		if w.Start == "" {
			return nil, fmt.Errorf("time-off window for %s has an end but no start", m.ID)
		}
		if _, err := time.Parse(DateLayout, w.Start); err != nil {
			return nil, fmt.Errorf("time-off start %q for %s: %w", w.Start, m.ID, err)
		}
		if w.End == "" {
			w.End = w.Start
		} else if _, err := time.Parse(DateLayout, w.End); err != nil {
			return nil, fmt.Errorf("time-off end %q for %s: %w", w.End, m.ID, err)
		}
		if w.End < w.Start {
			return nil, fmt.Errorf("time-off window for %s ends (%s) before it starts (%s)", m.ID, w.End, w.Start)
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func dayAfter(day string) string {
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, 1).Format(DateLayout)
}

// mergeWindows adds w to ws, joining windows that overlap or touch. The
// window that absorbs w takes w's reason and coverage when they are set.
// ok is false when the result would need more than two disjoint windows;
// ws is then returned unchanged.
func mergeWindows(ws []models.LeaveWindow, w models.LeaveWindow) ([]models.LeaveWindow, bool) {
	all := append(append([]models.LeaveWindow{}, ws...), w)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start < all[j].Start })

	merged := []models.LeaveWindow{all[0]}
	for _, next := range all[1:] {
		last := &merged[len(merged)-1]
		if next.Start > dayAfter(last.End) {
			merged = append(merged, next)
			continue
		}
		if next.End > last.End {
			last.End = next.End
		}
		if last.Reason == "" {
			last.Reason = next.Reason
		}
		if last.Coverage == "" {
			last.Coverage = next.Coverage
		}
	}
	if len(merged) > 2 {
		return ws, false
	}

	for i := range merged {
		if merged[i].Start <= w.Start && w.End <= merged[i].End {
			if w.Reason != "" {
				merged[i].Reason = w.Reason
			}
			if w.Coverage != "" {
				merged[i].Coverage = w.Coverage
			}
		}
	}
	return merged, true
}

// dropEnded removes windows whose last day is before today.
func dropEnded(ws []models.LeaveWindow, today string) (kept []models.LeaveWindow, ended bool) {
	for _, w := range ws {
		if w.End < today {
			ended = true
			continue
		}
		kept = append(kept, w)
	}
	return kept, ended
}

// windowStatus is the leave status the windows imply on today. ok is false
// when they imply nothing and the stored status should stand.
func windowStatus(ws []models.LeaveWindow, today string, ended bool) (string, bool) {
	for _, w := range ws {
		if w.Start <= today && today <= w.End {
			return models.LeaveOOO, true
		}
	}
	if ended {
		return models.LeaveAvailable, true
	}
	return "", false
}

// EffectiveStatus resolves a member's availability on the given day.
// A manual override always wins, then an active time-off window, then the
// raw leave status. A window that has not started yet changes nothing, and
// one that has ended counts as expired even before a tick has cleared it.
func EffectiveStatus(m *models.Member, today string) string {
	raw := m.LeaveStatus
	if !models.ValidLeaveStatus(raw) {
		raw = models.LeaveAvailable
	}
	if m.ManuallyOverridden {
		return raw
	}

	ws, err := MemberWindows(m)
	if err != nil || len(ws) == 0 {
		return raw
	}
	kept, ended := dropEnded(ws, today)
	if status, ok := windowStatus(kept, today, ended); ok {
		return status
	}
	return raw
}

// ReconcileResult lists the members whose status the tick changed.
type ReconcileResult struct {
	Today     string   `json:"today"`
	Activated []string `json:"activated"`
	Expired   []string `json:"expired"`
	Ignored   []string `json:"ignored"`
}

// Changed reports whether the tick wrote anything.
func (r *ReconcileResult) Changed() bool {
	return len(r.Activated) > 0 || len(r.Expired) > 0
}

// AvailabilityService applies time-off windows to stored leave status.
type AvailabilityService struct {
	db    *gorm.DB
	loc   *time.Location
	clock Clock
	mu    sync.Mutex
}

func NewAvailabilityService(db *gorm.DB, loc *time.Location, clock Clock) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &AvailabilityService{db: db, loc: loc, clock: clock}
}

func (s *AvailabilityService) Today() string {
	return Today(s.clock(), s.loc)
}

// Reconcile activates windows whose start day has arrived and expires
// windows whose end day has passed. Overridden members are never touched.
// Every write is conditional on the state that was read, so repeated or
// concurrent ticks on the same day are no-ops after the first.
func (s *AvailabilityService) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.Today()
	result := &ReconcileResult{
		Today:     today,
		Activated: []string{},
		Expired:   []string{},
		Ignored:   []string{},
	}

	var members []models.Member
	err := s.db.WithContext(ctx).
		Where("manually_overridden = ?", false).
		Where("(time_off_start <> '' OR time_off_end <> '' OR pending_start <> '' OR pending_end <> '')").
		Order("id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("load time-off windows: %w", err)
	}

	for i := range members {
		m := &members[i]
		ws, err := MemberWindows(m)
		if err != nil {
			logger.Warnf("[Availability] Ignoring malformed window: %v", err)
			result.Ignored = append(result.Ignored, m.ID)
			continue
		}

		kept, ended := dropEnded(ws, today)
		status, ok := windowStatus(kept, today, ended)
		if !ok {
			status = m.LeaveStatus
		}
		if !ended && status == m.LeaveStatus {
			continue
		}

		changed, err := s.transition(ctx, m, kept, status)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}
		if status == models.LeaveOOO && m.LeaveStatus != models.LeaveOOO {
			result.Activated = append(result.Activated, m.ID)
		} else if ended {
			result.Expired = append(result.Expired, m.ID)
		}
	}

	if result.Changed() {
		logger.Infof("[Availability] Reconciled %s: activated=%v expired=%v", today, result.Activated, result.Expired)
		LogInfo("availability", "reconcile", "",
			fmt.Sprintf("activated %d, expired %d", len(result.Activated), len(result.Expired)), result)
	}
	return result, nil
}

// transition stores the remaining windows and status, but only if the
// member still holds the windows that were read.
func (s *AvailabilityService) transition(ctx context.Context, m *models.Member, kept []models.LeaveWindow, status string) (bool, error) {
	next := *m
	next.SetLeaveWindows(kept)
	updates := next.LeaveWindowColumns()
	updates["leave_status"] = status
	updates["is_ooo"] = status == models.LeaveOOO

	res := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND manually_overridden = ?", m.ID, false).
		Where(m.LeaveWindowColumns()).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update windows for %s: %w", m.ID, res.Error)
	}
	return res.RowsAffected > 0, nil
}
