package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

// ChatMessage is one message read from the team channel.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sentAt"`
	Type       string    `json:"type,omitempty"`
	SubType    string    `json:"subType,omitempty"`
	BotID      string    `json:"botId,omitempty"`
}

// TimeOffDetails is what the classifier extracts from a message.
// Dates are whatever the model returned; they are parsed leniently.
type TimeOffDetails struct {
	IsTimeOff  bool   `json:"is_time_off_request"`
	PersonName string `json:"person_name"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason"`
	Coverage   string `json:"coverage_person"`
	Notes      string `json:"notes"`
}

type TimeOffClassifier interface {
	ClassifyTimeOff(ctx context.Context, msg ChatMessage) (*TimeOffDetails, error)
}

type MessageSource interface {
	FetchMessages(ctx context.Context, hoursBack, limit int) ([]ChatMessage, error)
}

const (
	ActionOOONow  = "ooo_now"
	ActionPending = "pending"
	ActionSkipped = "skipped"
)

const reasonTooManyWindows = "two other upcoming windows already recorded"

var errTooManyWindows = errors.New("member already has two upcoming time-off windows")

// Trace decisions beyond the three change actions.
const (
	DecisionFiltered   = "filtered"
	DecisionNotTimeOff = "not_time_off"
)

type SyncChange struct {
	MemberID   string `json:"memberId,omitempty"`
	MemberName string `json:"memberName,omitempty"`
	Person     string `json:"person"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Message    string `json:"message"`
}

type SyncResult struct {
	MessagesScanned int              `json:"messagesScanned"`
	Detected        int              `json:"detected"`
	Applied         int              `json:"applied"`
	Pending         int              `json:"pending"`
	Skipped         int              `json:"skipped"`
	Failed          int              `json:"failed"`
	Changes         []SyncChange     `json:"changes"`
	Reconcile       *ReconcileResult `json:"reconcile,omitempty"`
}

type StaleCheck struct {
	EndDate string `json:"endDate"`
	Today   string `json:"today"`
	IsStale bool   `json:"isStale"`
}

// MessageTrace is the per-message diagnostic produced by Debug.
type MessageTrace struct {
	MessageID      string          `json:"messageId"`
	Sender         string          `json:"sender"`
	Text           string          `json:"text"`
	SentAt         time.Time       `json:"sentAt"`
	FilterReason   string          `json:"filterReason,omitempty"`
	Classification *TimeOffDetails `json:"classification,omitempty"`
	ClassifyError  string          `json:"classifyError,omitempty"`
	Person         string          `json:"person,omitempty"`
	Match          *NameMatch      `json:"match,omitempty"`
	Start          string          `json:"start,omitempty"`
	End            string          `json:"end,omitempty"`
	StaleCheck     *StaleCheck     `json:"staleCheck,omitempty"`
	Decision       string          `json:"decision"`
	Reason         string          `json:"reason,omitempty"`
}

// TimeOffService turns chat messages into member time-off state.
type TimeOffService struct {
	db           *gorm.DB
	classifier   TimeOffClassifier
	source       MessageSource
	email        MessageSource
	matcher      *NameMatcher
	availability *AvailabilityService
	loc          *time.Location
	clock        Clock
}

func NewTimeOffService(db *gorm.DB, classifier TimeOffClassifier, source MessageSource,
	matcher *NameMatcher, availability *AvailabilityService, loc *time.Location, clock Clock) *TimeOffService {
	if matcher == nil {
		matcher = NewNameMatcher(DefaultNameMatchThreshold)
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	return &TimeOffService{
		db:           db,
		classifier:   classifier,
		source:       source,
		matcher:      matcher,
		availability: availability,
		loc:          loc,
		clock:        clock,
	}
}

// MessageTypeEmail marks messages read from a mailbox rather than chat.
const MessageTypeEmail = "email"

// timeOffKeywords mirrors the mailbox search so only emails that talk about
// absence reach the classifier.
var timeOffKeywords = regexp.MustCompile(`(?i)\b(ooo|out of office|vacation|on leave|time off|away from office|` +
	`annual leave|sick leave|working from home|wfh|not available|unavailable)\b`)

// SetEmailSource attaches the mailbox read by ScanGmail and DebugGmail.
func (s *TimeOffService) SetEmailSource(src MessageSource) {
	s.email = src
}

// EmailConfigured reports whether a mailbox is attached.
func (s *TimeOffService) EmailConfigured() bool {
	return s.email != nil
}

// PreFilter returns why a message can be dropped without classification,
// or "" when it should be classified.
func PreFilter(msg ChatMessage) string {
	switch {
	case msg.Type == MessageTypeEmail:
		if strings.TrimSpace(msg.Text) == "" {
			return "empty text"
		}
		if !timeOffKeywords.MatchString(msg.Text) {
			return "no time-off keywords"
		}
		return ""
	case msg.BotID != "" || msg.SubType == "bot_message":
		return "bot sender"
	case msg.SubType != "":
		return "system subtype " + msg.SubType
	case msg.Type != "" && msg.Type != "message":
		return "not a message"
	case strings.TrimSpace(msg.Text) == "":
		return "empty text"
	}
	return ""
}

// evaluate runs every step short of writing and records it in the trace.
// The returned member is nil unless the message should be applied.
func (s *TimeOffService) evaluate(ctx context.Context, msg ChatMessage, roster []models.Member, today string) (*MessageTrace, *models.Member) {
	tr := &MessageTrace{
		MessageID: msg.ID,
		Sender:    msg.SenderName,
		Text:      msg.Text,
		SentAt:    msg.SentAt,
	}

	if reason := PreFilter(msg); reason != "" {
		tr.FilterReason = reason
		tr.Decision = DecisionFiltered
		return tr, nil
	}

	details, err := s.classifier.ClassifyTimeOff(ctx, msg)
	if err != nil {
		// An unusable classification counts as "not time off" for this message only.
		logger.Warnf("[TimeOff] Classification failed for message %s: %v", msg.ID, err)
		tr.ClassifyError = err.Error()
		tr.Decision = DecisionNotTimeOff
		return tr, nil
	}
	tr.Classification = details
	if details == nil || !details.IsTimeOff {
		tr.Decision = DecisionNotTimeOff
		return tr, nil
	}

	person := strings.TrimSpace(details.PersonName)
	if person == "" || strings.EqualFold(person, "null") {
		person = msg.SenderName
	}
	tr.Person = person

	match := s.matcher.Match(person, roster)
	tr.Match = &match
	if !match.Matched {
		tr.Decision = ActionSkipped
		tr.Reason = "no roster match"
		return tr, nil
	}
	member := findMember(roster, match.MemberID)

	sentDay := Today(msg.SentAt, s.loc)
	if msg.SentAt.IsZero() {
		sentDay = today
	}
	tr.Start, tr.End = ResolveWindow(details.StartDate, details.EndDate, sentDay, s.loc)

	if member.ManuallyOverridden {
		tr.Decision = ActionSkipped
		tr.Reason = "manual override in effect"
		return tr, nil
	}

	tr.StaleCheck = &StaleCheck{EndDate: tr.End, Today: today, IsStale: tr.End < today}
	if tr.StaleCheck.IsStale {
		tr.Decision = ActionSkipped
		tr.Reason = "time off already ended"
		return tr, nil
	}

	if _, _, ok := planWindows(member, models.LeaveWindow{Start: tr.Start, End: tr.End}, today); !ok {
		tr.Decision = ActionSkipped
		tr.Reason = reasonTooManyWindows
		return tr, nil
	}

	if tr.Start <= today {
		tr.Decision = ActionOOONow
	} else {
		tr.Decision = ActionPending
	}
	return tr, member
}

// Ingest classifies messages and applies the detected time off. One message
// failing never fails the batch.
func (s *TimeOffService) Ingest(ctx context.Context, msgs []ChatMessage) (*SyncResult, error) {
	roster, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	today := Today(now, s.loc)
	result := &SyncResult{MessagesScanned: len(msgs), Changes: []SyncChange{}}

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tr, member := s.evaluate(ctx, msg, roster, today)
		switch tr.Decision {
		case DecisionFiltered, DecisionNotTimeOff:
			if tr.ClassifyError != "" {
				result.Failed++
			}
			continue
		}

		result.Detected++
		change := SyncChange{
			Person:  tr.Person,
			Action:  tr.Decision,
			Reason:  tr.Reason,
			Start:   tr.Start,
			End:     tr.End,
			Message: msg.Text,
		}
		if tr.Match != nil && tr.Match.Matched {
			change.MemberID = tr.Match.MemberID
			change.MemberName = tr.Match.Name
		}

		if member != nil {
			applied, err := s.apply(ctx, member, tr, tr.Classification, now, today)
			switch {
			case errors.Is(err, errTooManyWindows):
				change.Action = ActionSkipped
				change.Reason = reasonTooManyWindows
			case err != nil:
				logger.Errorf("[TimeOff] Failed to apply time off for %s: %v", member.ID, err)
				change.Action = ActionSkipped
				change.Reason = "write failed"
			case !applied:
				change.Action = ActionSkipped
				change.Reason = "member changed during sync"
			}
		}

		switch change.Action {
		case ActionOOONow:
			result.Applied++
		case ActionPending:
			result.Applied++
			result.Pending++
		default:
			result.Skipped++
		}
		result.Changes = append(result.Changes, change)
	}

	logger.Infof("[TimeOff] Ingested %d messages: detected=%d applied=%d pending=%d skipped=%d failed=%d",
		result.MessagesScanned, result.Detected, result.Applied, result.Pending, result.Skipped, result.Failed)
	return result, nil
}

// planWindows merges the detected window into the member's stored ones,
// dropping windows that have already ended. ok is false when the member
// already has two other upcoming windows.
func planWindows(m *models.Member, w models.LeaveWindow, today string) (merged []models.LeaveWindow, ended, ok bool) {
	existing, err := MemberWindows(m)
	if err != nil {
		// Unreadable windows are replaced by the new one.
		logger.Warnf("[TimeOff] Replacing malformed windows: %v", err)
		existing, ended = nil, true
	}
	kept, dropped := dropEnded(existing, today)
	merged, ok = mergeWindows(kept, w)
	return merged, ended || dropped, ok
}

// apply stores the merged windows and, when one of them covers today, flips
// the status to ooo. The write only lands if the member still has the
// override flag off and the windows that were read, so a concurrent manual
// override or tick is never clobbered. m is updated to match on success.
func (s *TimeOffService) apply(ctx context.Context, m *models.Member, tr *MessageTrace, details *TimeOffDetails, now time.Time, today string) (bool, error) {
	incoming := models.LeaveWindow{
		Start:    tr.Start,
		End:      tr.End,
		Reason:   truncate(details.Reason, 500),
		Coverage: truncate(details.Coverage, 200),
	}
	merged, ended, ok := planWindows(m, incoming, today)
	if !ok {
		return false, errTooManyWindows
	}

	next := *m
	next.SetLeaveWindows(merged)
	updates := next.LeaveWindowColumns()
	updates["last_synced"] = now.UTC()
	status, hasStatus := windowStatus(merged, today, ended)
	if hasStatus {
		updates["leave_status"] = status
		updates["is_ooo"] = status == models.LeaveOOO
	}

	res := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND manually_overridden = ?", m.ID, false).
		Where(m.LeaveWindowColumns()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	m.SetLeaveWindows(merged)
	m.LastSynced = now.UTC()
	if hasStatus {
		m.LeaveStatus = status
		m.IsOOO = status == models.LeaveOOO
	}
	return true, nil
}

// Debug runs the pipeline without writing anything.
func (s *TimeOffService) Debug(ctx context.Context, msgs []ChatMessage) ([]MessageTrace, error) {
	roster, err := s.loadRoster(ctx)
	if err != nil {
		return nil, err
	}
	today := Today(s.clock(), s.loc)

	traces := make([]MessageTrace, 0, len(msgs))
	for _, msg := range msgs {
		tr, _ := s.evaluate(ctx, msg, roster, today)
		traces = append(traces, *tr)
	}
	return traces, nil
}

// Sync pulls recent messages from the chat source, ingests them and runs a
// reconciliation tick so immediate windows are reflected right away.
func (s *TimeOffService) Sync(ctx context.Context, hoursBack, limit int) (*SyncResult, error) {
	msgs, err := s.fetchChat(ctx, hoursBack, limit)
	if err != nil {
		return nil, err
	}
	return s.ingestAndReconcile(ctx, "sync", msgs)
}

// DebugSync is Sync without writes.
func (s *TimeOffService) DebugSync(ctx context.Context, hoursBack, limit int) ([]MessageTrace, error) {
	msgs, err := s.fetchChat(ctx, hoursBack, limit)
	if err != nil {
		return nil, err
	}
	return s.Debug(ctx, msgs)
}

// ScanGmail reads up to limit out-of-office emails from the configured
// search window and applies them like chat messages.
func (s *TimeOffService) ScanGmail(ctx context.Context, limit int) (*SyncResult, error) {
	msgs, err := s.fetchEmail(ctx, limit)
	if err != nil {
		return nil, err
	}
	return s.ingestAndReconcile(ctx, "gmail_scan", msgs)
}

// EmailDebug is the dry-run view of a mailbox scan.
type EmailDebug struct {
	SearchQuery string         `json:"searchQuery,omitempty"`
	EmailsFound int            `json:"emailsFound"`
	Today       string         `json:"today"`
	Emails      []MessageTrace `json:"emails"`
}

// DebugGmail is ScanGmail without writes.
func (s *TimeOffService) DebugGmail(ctx context.Context, limit int) (*EmailDebug, error) {
	msgs, err := s.fetchEmail(ctx, limit)
	if err != nil {
		return nil, err
	}
	traces, err := s.Debug(ctx, msgs)
	if err != nil {
		return nil, err
	}
	out := &EmailDebug{EmailsFound: len(msgs), Today: Today(s.clock(), s.loc), Emails: traces}
	if q, ok := s.email.(interface{ SearchQuery(int) string }); ok {
		out.SearchQuery = q.SearchQuery(0)
	}
	return out, nil
}

func (s *TimeOffService) ingestAndReconcile(ctx context.Context, action string, msgs []ChatMessage) (*SyncResult, error) {
	result, err := s.Ingest(ctx, msgs)
	if err != nil {
		return nil, err
	}

	if s.availability != nil {
		rec, err := s.availability.Reconcile(ctx)
		if err != nil {
			logger.Warnf("[TimeOff] Reconcile after %s failed: %v", action, err)
		} else {
			result.Reconcile = rec
		}
	}

	LogInfo("timeoff", action, "",
		fmt.Sprintf("detected %d, applied %d, pending %d, skipped %d",
			result.Detected, result.Applied, result.Pending, result.Skipped),
		result.Changes)
	return result, nil
}

func (s *TimeOffService) fetchChat(ctx context.Context, hoursBack, limit int) ([]ChatMessage, error) {
	if s.source == nil {
		return nil, ErrSourceNotConfigured
	}
	msgs, err := s.source.FetchMessages(ctx, hoursBack, limit)
	if err != nil {
		if errors.Is(err, ErrSourceNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return msgs, nil
}

func (s *TimeOffService) fetchEmail(ctx context.Context, limit int) ([]ChatMessage, error) {
	if s.email == nil {
		return nil, ErrGmailNotConfigured
	}
	msgs, err := s.email.FetchMessages(ctx, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGmailUnavailable, err)
	}
	return msgs, nil
}

func (s *TimeOffService) loadRoster(ctx context.Context) ([]models.Member, error) {
	var roster []models.Member
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&roster).Error; err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return roster, nil
}

var dateLayouts = []string{
	DateLayout,
	"1/2/2006",
	"1-2-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"2006/01/02",
}

// ParseDay reads a calendar day in any of the formats the classifier tends to
// return and reformats it as YYYY-MM-DD.
func ParseDay(s string, loc *time.Location) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Format(DateLayout), true
		}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc).Format(DateLayout), true
		}
	}
	return "", false
}

// ResolveWindow turns raw extracted dates into a valid window. A missing or
// unreadable start falls back to the day the message was sent, a missing end
// to the start. Reversed dates are swapped.
func ResolveWindow(rawStart, rawEnd, sentDay string, loc *time.Location) (string, string) {
	start, ok := ParseDay(rawStart, loc)
	if !ok {
		start = sentDay
	}
	end, ok := ParseDay(rawEnd, loc)
	if !ok {
		end = start
	}
	if end < start {
		start, end = end, start
	}
	return start, end
}

func findMember(roster []models.Member, id string) *models.Member {
	for i := range roster {
		if roster[i].ID == id {
			return &roster[i]
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
