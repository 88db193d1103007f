package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
)

const maxCalendarRangeDays = 62

// BusyInterval is one busy block from a member's calendar.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type DayAvailability struct {
	Date            string  `json:"date"`
	Weekday         string  `json:"weekday"`
	WorkMinutes     int     `json:"workMinutes"`
	BusyMinutes     int     `json:"busyMinutes"`
	AvailabilityPct float64 `json:"availabilityPct"`
}

type AvailabilityReport struct {
	RangeStart      string                  `json:"rangeStart"`
	RangeEnd        string                  `json:"rangeEnd"`
	WorkMinutes     int                     `json:"workMinutes"`
	BusyMinutes     int                     `json:"busyMinutes"`
	AvailabilityPct float64                 `json:"availabilityPct"`
	PerDay          []DayAvailability       `json:"perDay"`
	Week            models.WeekAvailability `json:"weekAvailability"`
}

// CalendarService turns busy intervals into free-time percentages over
// working hours on working days.
type CalendarService struct {
	holidays  *HolidayService
	country   string
	loc       *time.Location
	workStart time.Duration
	workEnd   time.Duration
}

func NewCalendarService(holidays *HolidayService, cfg *config.CoverageConfig) *CalendarService {
	if holidays == nil {
		holidays = NewHolidayService()
	}
	start, err := parseClock(cfg.WorkStart)
	if err != nil {
		start = 9 * time.Hour
	}
	end, err := parseClock(cfg.WorkEnd)
	if err != nil || end <= start {
		start, end = 9*time.Hour, 18*time.Hour
	}
	return &CalendarService{
		holidays:  holidays,
		country:   cfg.HolidayCountry,
		loc:       cfg.Location(),
		workStart: start,
		workEnd:   end,
	}
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// MergeIntervals sorts intervals and joins the ones that overlap or touch.
// Empty and inverted intervals are dropped.
func MergeIntervals(in []BusyInterval) []BusyInterval {
	valid := make([]BusyInterval, 0, len(in))
	for _, iv := range in {
		if iv.End.After(iv.Start) {
			valid = append(valid, iv)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	var out []BusyInterval
	for _, iv := range valid {
		if n := len(out); n > 0 && !iv.Start.After(out[n-1].End) {
			if iv.End.After(out[n-1].End) {
				out[n-1].End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// WorkWeekStart returns the Monday of the current work week, or of the next
// one when now falls on a weekend.
func WorkWeekStart(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch wd := day.Weekday(); wd {
	case time.Saturday:
		return day.AddDate(0, 0, 2)
	case time.Sunday:
		return day.AddDate(0, 0, 1)
	default:
		return day.AddDate(0, 0, -int(wd-time.Monday))
	}
}

// Report computes availability for the days in [rangeStart, rangeEnd).
// Empty bounds default to the current work week.
func (c *CalendarService) Report(busy []BusyInterval, rangeStart, rangeEnd string, now time.Time) (*AvailabilityReport, error) {
	start, end, err := c.resolveRange(rangeStart, rangeEnd, now)
	if err != nil {
		return nil, err
	}

	merged := MergeIntervals(busy)
	report := &AvailabilityReport{
		RangeStart: start.Format(DateLayout),
		RangeEnd:   end.Format(DateLayout),
		PerDay:     []DayAvailability{},
	}

	type tally struct{ work, busy int }
	byWeekday := map[time.Weekday]*tally{}

	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if !c.holidays.IsWorkday(d, c.country) {
			continue
		}
		winStart := d.Add(c.workStart)
		winEnd := d.Add(c.workEnd)
		work := int(winEnd.Sub(winStart).Minutes())
		busyMin := int(overlap(merged, winStart, winEnd).Minutes())

		report.PerDay = append(report.PerDay, DayAvailability{
			Date:            d.Format(DateLayout),
			Weekday:         d.Weekday().String(),
			WorkMinutes:     work,
			BusyMinutes:     busyMin,
			AvailabilityPct: freePct(work, busyMin),
		})
		report.WorkMinutes += work
		report.BusyMinutes += busyMin

		t := byWeekday[d.Weekday()]
		if t == nil {
			t = &tally{}
			byWeekday[d.Weekday()] = t
		}
		t.work += work
		t.busy += busyMin
	}

	report.AvailabilityPct = freePct(report.WorkMinutes, report.BusyMinutes)
	weekPct := func(wd time.Weekday) float64 {
		if t := byWeekday[wd]; t != nil {
			return math.Round(freePct(t.work, t.busy))
		}
		return 0
	}
	report.Week = models.WeekAvailability{
		Monday:    weekPct(time.Monday),
		Tuesday:   weekPct(time.Tuesday),
		Wednesday: weekPct(time.Wednesday),
		Thursday:  weekPct(time.Thursday),
		Friday:    weekPct(time.Friday),
	}
	return report, nil
}

func (c *CalendarService) resolveRange(rangeStart, rangeEnd string, now time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if rangeStart == "" {
		start = WorkWeekStart(now.In(c.loc))
	} else if start, err = time.ParseInLocation(DateLayout, rangeStart, c.loc); err != nil {
		return start, end, fmt.Errorf("%w: rangeStart must be YYYY-MM-DD", ErrInvalidInput)
	}
	if rangeEnd == "" {
		end = start.AddDate(0, 0, 7)
	} else if end, err = time.ParseInLocation(DateLayout, rangeEnd, c.loc); err != nil {
		return start, end, fmt.Errorf("%w: rangeEnd must be YYYY-MM-DD", ErrInvalidInput)
	}

	if !end.After(start) {
		return start, end, fmt.Errorf("%w: rangeEnd must be after rangeStart", ErrInvalidInput)
	}
	if end.Sub(start) > maxCalendarRangeDays*24*time.Hour+time.Hour {
		return start, end, fmt.Errorf("%w: range longer than %d days", ErrInvalidInput, maxCalendarRangeDays)
	}
	return start, end, nil
}

// overlap sums how much of [from, to) the merged intervals cover.
func overlap(merged []BusyInterval, from, to time.Time) time.Duration {
	var total time.Duration
	for _, iv := range merged {
		s, e := iv.Start, iv.End
		if s.Before(from) {
			s = from
		}
		if e.After(to) {
			e = to
		}
		if e.After(s) {
			total += e.Sub(s)
		}
	}
	return total
}

func freePct(work, busy int) float64 {
	if work <= 0 {
		return 0
	}
	pct := float64(work-busy) / float64(work) * 100
	return math.Round(clampPct(pct)*10) / 10
}

// ComputeConfidence blends calendar availability, task load and leave status
// into a 0-100 score.
func ComputeConfidence(calendarPct, taskLoadHours float64, leaveStatus string) float64 {
	loadScore := math.Max(0, 1-taskLoadHours/50) * 100
	leaveBonus := 100.0
	switch leaveStatus {
	case models.LeavePartial:
		leaveBonus = 50
	case models.LeaveOOO:
		leaveBonus = 0
	}
	score := 0.6*calendarPct + 0.25*loadScore + 0.15*leaveBonus
	return math.Round(score*10) / 10
}
