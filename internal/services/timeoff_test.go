package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"gorm.io/gorm"
)

const ingestToday = "2026-03-10"

func newIngestFixture(t *testing.T, classifier *stubClassifier, source MessageSource) (*TimeOffService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	clock := fixedClock(ingestToday)
	avail := NewAvailabilityService(db, time.UTC, clock)
	svc := NewTimeOffService(db, classifier, source, NewNameMatcher(0.75), avail, time.UTC, clock)

	createMembers(t, db,
		models.Member{ID: "mem-001", Name: "Alex Rivera", LeaveStatus: models.LeaveAvailable},
		models.Member{ID: "mem-002", Name: "Priya Shah", LeaveStatus: models.LeaveAvailable, ManuallyOverridden: true},
		models.Member{ID: "mem-003", Name: "Jordan Lee", LeaveStatus: models.LeavePartial},
	)
	return svc, db
}

func msgAt(id, sender, text string) ChatMessage {
	sent, _ := time.Parse(DateLayout, ingestToday)
	return ChatMessage{ID: id, SenderID: "U" + id, SenderName: sender, Text: text, Type: "message", SentAt: sent.Add(9 * time.Hour)}
}

func TestIngestUnknownPersonIsSkipped(t *testing.T) {
	text := "Chris Doe is out tomorrow"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, PersonName: "Chris Doe", StartDate: addDays(ingestToday, 1)},
	}}
	svc, _ := newIngestFixture(t, classifier, nil)

	res, err := svc.Ingest(context.Background(), []ChatMessage{msgAt("1", "Alex Rivera", text)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Detected != 1 || res.Skipped != 1 || res.Applied != 0 {
		t.Errorf("unexpected counts %+v", res)
	}
	if res.Changes[0].Action != ActionSkipped || res.Changes[0].Reason != "no roster match" {
		t.Errorf("unexpected change %+v", res.Changes[0])
	}
}

func TestIngestOverrideGuard(t *testing.T) {
	text := "mem-002 will be OOO next week"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, PersonName: "mem-002", StartDate: addDays(ingestToday, 6), EndDate: addDays(ingestToday, 10)},
	}}
	svc, db := newIngestFixture(t, classifier, nil)

	res, err := svc.Ingest(context.Background(), []ChatMessage{msgAt("1", "Omar", text)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || res.Applied != 0 {
		t.Errorf("expected override guard to skip, got %+v", res)
	}

	m := loadMember(t, db, "mem-002")
	if m.LeaveStatus != models.LeaveAvailable || m.HasTimeOffWindow() {
		t.Errorf("overridden member was modified: %+v", m)
	}
	if m2 := loadMember(t, db, "mem-001"); m2.LeaveStatus != models.LeaveAvailable {
		t.Errorf("unrelated member changed: %s", m2.LeaveStatus)
	}
}

func TestIngestImmediateAndPending(t *testing.T) {
	immediate := "I'm out sick today"
	pending := "Jordan Lee will be on vacation next week"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		immediate: {IsTimeOff: true, PersonName: "", StartDate: ingestToday, Reason: "sick"},
		pending: {IsTimeOff: true, PersonName: "Jordan Lee", StartDate: "3/16/2026", EndDate: "March 20, 2026",
			Reason: "vacation", Coverage: "Alex Rivera"},
	}}
	svc, db := newIngestFixture(t, classifier, nil)

	res, err := svc.Ingest(context.Background(), []ChatMessage{
		msgAt("1", "Alex Rivera", immediate),
		msgAt("2", "Omar", pending),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Detected != 2 || res.Applied != 2 || res.Pending != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected counts %+v", res)
	}

	alex := loadMember(t, db, "mem-001")
	if alex.LeaveStatus != models.LeaveOOO || alex.TimeOffStart != ingestToday || alex.TimeOffEnd != ingestToday {
		t.Errorf("first-person message should mark the sender ooo today, got %+v", alex)
	}

	jordan := loadMember(t, db, "mem-003")
	if jordan.LeaveStatus != models.LeavePartial {
		t.Errorf("pending window must not change status yet, got %s", jordan.LeaveStatus)
	}
	if jordan.TimeOffStart != "2026-03-16" || jordan.TimeOffEnd != "2026-03-20" {
		t.Errorf("unexpected pending window %s..%s", jordan.TimeOffStart, jordan.TimeOffEnd)
	}
	if jordan.TimeOffCoverage != "Alex Rivera" {
		t.Errorf("expected coverage to be stored, got %q", jordan.TimeOffCoverage)
	}
}

func TestIngestKeepsActiveWindowWhenLaterOneArrives(t *testing.T) {
	sick := "out sick today"
	vacation := "also on vacation the 16th through the 20th"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		sick:     {IsTimeOff: true, StartDate: ingestToday, EndDate: ingestToday, Reason: "sick"},
		vacation: {IsTimeOff: true, StartDate: "2026-03-16", EndDate: "2026-03-20", Reason: "vacation"},
	}}
	svc, db := newIngestFixture(t, classifier, nil)
	clock := newMovableClock(ingestToday)
	svc.clock = clock.Now
	svc.availability.clock = clock.Now
	ctx := context.Background()

	res, err := svc.Ingest(ctx, []ChatMessage{
		msgAt("1", "Alex Rivera", sick),
		msgAt("2", "Alex Rivera", vacation),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 2 || res.Pending != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}

	alex := loadMember(t, db, "mem-001")
	if alex.LeaveStatus != models.LeaveOOO {
		t.Fatalf("sick day should still hold, got %s", alex.LeaveStatus)
	}
	if alex.TimeOffStart != ingestToday || alex.TimeOffReason != "sick" {
		t.Errorf("active window was replaced: %+v", alex)
	}
	if alex.PendingStart != "2026-03-16" || alex.PendingEnd != "2026-03-20" || alex.PendingReason != "vacation" {
		t.Errorf("later window not kept separately: %+v", alex)
	}

	clock.AddDays(2)
	if _, err := svc.availability.Reconcile(ctx); err != nil {
		t.Fatal(err)
	}
	alex = loadMember(t, db, "mem-001")
	if alex.LeaveStatus != models.LeaveAvailable || alex.IsOOO {
		t.Errorf("expected available after the sick day, got %s", alex.LeaveStatus)
	}
	if alex.TimeOffStart != "2026-03-16" || alex.TimeOffEnd != "2026-03-20" {
		t.Errorf("vacation should remain pending, got %s..%s", alex.TimeOffStart, alex.TimeOffEnd)
	}
}

func TestIngestSecondPendingWindowDoesNotReplaceFirst(t *testing.T) {
	first := "Jordan Lee is off the 16th"
	second := "Jordan Lee is also away the 24th and 25th"
	third := "Jordan Lee will miss April 2nd too"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		first:  {IsTimeOff: true, PersonName: "Jordan Lee", StartDate: "2026-03-16"},
		second: {IsTimeOff: true, PersonName: "Jordan Lee", StartDate: "2026-03-24", EndDate: "2026-03-25"},
		third:  {IsTimeOff: true, PersonName: "Jordan Lee", StartDate: "2026-04-02"},
	}}
	svc, db := newIngestFixture(t, classifier, nil)

	res, err := svc.Ingest(context.Background(), []ChatMessage{
		msgAt("1", "Omar", first),
		msgAt("2", "Omar", second),
		msgAt("3", "Omar", third),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Pending != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if res.Changes[2].Reason != reasonTooManyWindows {
		t.Errorf("third window should be skipped with a reason, got %+v", res.Changes[2])
	}

	jordan := loadMember(t, db, "mem-003")
	if jordan.TimeOffStart != "2026-03-16" || jordan.PendingStart != "2026-03-24" || jordan.PendingEnd != "2026-03-25" {
		t.Errorf("unexpected windows %+v", jordan)
	}
	if jordan.LeaveStatus != models.LeavePartial {
		t.Errorf("pending windows must not change status, got %s", jordan.LeaveStatus)
	}
}

func TestIngestStaleWindowIsSkipped(t *testing.T) {
	text := "Alex was out last week"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, PersonName: "Alex Rivera", StartDate: addDays(ingestToday, -8), EndDate: addDays(ingestToday, -4)},
	}}
	svc, db := newIngestFixture(t, classifier, nil)

	res, err := svc.Ingest(context.Background(), []ChatMessage{msgAt("1", "Omar", text)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped != 1 || res.Changes[0].Reason != "time off already ended" {
		t.Errorf("expected stale skip, got %+v", res)
	}
	if m := loadMember(t, db, "mem-001"); m.HasTimeOffWindow() {
		t.Error("stale window should not be stored")
	}
}

func TestIngestFailOpenAndPreFilter(t *testing.T) {
	failing := "out tomorrow maybe"
	classifier := &stubClassifier{
		errs: map[string]error{failing: errors.New("429 RESOURCE_EXHAUSTED")},
	}
	svc, _ := newIngestFixture(t, classifier, nil)

	msgs := []ChatMessage{
		msgAt("1", "Alex Rivera", failing),
		{ID: "2", SenderName: "deploybot", Text: "Deploy finished", BotID: "B123"},
		{ID: "3", SenderName: "Priya Shah", Text: "joined", SubType: "channel_join"},
		{ID: "4", SenderName: "Priya Shah", Text: "   "},
		msgAt("5", "Jordan Lee", "lunch?"),
	}

	res, err := svc.Ingest(context.Background(), msgs)
	if err != nil {
		t.Fatalf("batch must not fail: %v", err)
	}
	if res.Detected != 0 || res.Failed != 1 || res.MessagesScanned != 5 {
		t.Errorf("unexpected counts %+v", res)
	}
	// only the failing message and "lunch?" reach the classifier
	if classifier.calls != 2 {
		t.Errorf("expected 2 classifier calls, got %d", classifier.calls)
	}
}

func TestPreFilter(t *testing.T) {
	tests := []struct {
		msg  ChatMessage
		want string
	}{
		{ChatMessage{Text: "hi", BotID: "B1"}, "bot sender"},
		{ChatMessage{Text: "hi", SubType: "bot_message"}, "bot sender"},
		{ChatMessage{Text: "hi", SubType: "channel_join"}, "system subtype channel_join"},
		{ChatMessage{Text: "hi", Type: "event"}, "not a message"},
		{ChatMessage{Text: ""}, "empty text"},
		{ChatMessage{Text: "I'm off Friday", Type: "message"}, ""},
		{ChatMessage{Text: "Subject: Out of Office\n\nBack Monday", Type: MessageTypeEmail}, ""},
		{ChatMessage{Text: "Subject: Re: WFH tomorrow", Type: MessageTypeEmail}, ""},
		{ChatMessage{Text: "Subject: Q3 roadmap review", Type: MessageTypeEmail}, "no time-off keywords"},
		{ChatMessage{Text: "Subject: Zoology notes", Type: MessageTypeEmail}, "no time-off keywords"},
		{ChatMessage{Text: " ", Type: MessageTypeEmail}, "empty text"},
	}
	for _, tt := range tests {
		if got := PreFilter(tt.msg); got != tt.want {
			t.Errorf("PreFilter(%+v) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestDebugDoesNotWrite(t *testing.T) {
	text := "I'm out today"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, StartDate: ingestToday},
	}}
	svc, db := newIngestFixture(t, classifier, nil)

	traces, err := svc.Debug(context.Background(), []ChatMessage{
		msgAt("1", "Alex Rivera", text),
		{ID: "2", Text: "beep", BotID: "B1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Fatalf("expected 2 traces, got %d", len(traces))
	}
	if traces[0].Decision != ActionOOONow || traces[0].Match == nil || traces[0].Match.MemberID != "mem-001" {
		t.Errorf("unexpected trace %+v", traces[0])
	}
	if traces[0].StaleCheck == nil || traces[0].StaleCheck.IsStale {
		t.Errorf("expected a passing stale check, got %+v", traces[0].StaleCheck)
	}
	if traces[1].Decision != DecisionFiltered {
		t.Errorf("expected bot message filtered, got %s", traces[1].Decision)
	}
	if m := loadMember(t, db, "mem-001"); m.LeaveStatus != models.LeaveAvailable {
		t.Error("debug run must not write")
	}
}

func TestSyncSourceErrors(t *testing.T) {
	svc, _ := newIngestFixture(t, &stubClassifier{}, nil)
	if _, err := svc.Sync(context.Background(), 24, 100); !errors.Is(err, ErrSourceNotConfigured) {
		t.Errorf("expected ErrSourceNotConfigured, got %v", err)
	}

	svc.source = &stubSource{err: errors.New("channel_not_found")}
	if _, err := svc.Sync(context.Background(), 24, 100); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestSyncAppliesAndReconciles(t *testing.T) {
	text := "Jordan is out today and tomorrow"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, PersonName: "Jordan Lee", StartDate: ingestToday, EndDate: addDays(ingestToday, 1)},
	}}
	source := &stubSource{msgs: []ChatMessage{msgAt("1", "Omar", text)}}
	svc, db := newIngestFixture(t, classifier, source)

	res, err := svc.Sync(context.Background(), 24, 100)
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 1 || res.Reconcile == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if m := loadMember(t, db, "mem-003"); m.LeaveStatus != models.LeaveOOO || !m.IsOOO {
		t.Errorf("expected Jordan ooo, got %+v", m)
	}
}

func TestResolveWindow(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"iso range", "2026-03-12", "2026-03-13", "2026-03-12", "2026-03-13"},
		{"us format", "3/12/2026", "03/13/2026", "2026-03-12", "2026-03-13"},
		{"long month", "March 12, 2026", "", "2026-03-12", "2026-03-12"},
		{"missing start uses sent day", "", "", ingestToday, ingestToday},
		{"unreadable start uses sent day", "soon", "2026-03-11", ingestToday, "2026-03-11"},
		{"reversed is swapped", "2026-03-14", "2026-03-12", "2026-03-12", "2026-03-14"},
		{"null literal", "null", "null", ingestToday, ingestToday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := ResolveWindow(tt.start, tt.end, ingestToday, time.UTC)
			if s != tt.wantStart || e != tt.wantEnd {
				t.Errorf("got %s..%s, want %s..%s", s, e, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

// queryingSource is a stub mailbox that also reports its search query.
type queryingSource struct {
	stubSource
}

func (queryingSource) SearchQuery(int) string { return GmailSearchQuery(30) }

func emailAt(id, sender, subject string) ChatMessage {
	sent, _ := time.Parse(DateLayout, ingestToday)
	return ChatMessage{ID: id, SenderID: id + "@example.com", SenderName: sender, Text: "Subject: " + subject,
		Type: MessageTypeEmail, SentAt: sent.Add(-2 * time.Hour)}
}

func TestScanGmailAppliesAndReconciles(t *testing.T) {
	ooo := "Subject: Out of office today"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		ooo: {IsTimeOff: true, StartDate: ingestToday, EndDate: addDays(ingestToday, 1), Reason: "sick leave"},
	}}
	svc, db := newIngestFixture(t, classifier, nil)
	svc.SetEmailSource(&stubSource{msgs: []ChatMessage{
		emailAt("e1", "Jordan Lee", "Out of office today"),
		emailAt("e2", "Alex Rivera", "Sprint planning notes"),
	}})

	res, err := svc.ScanGmail(context.Background(), 100)
	if err != nil {
		t.Fatal(err)
	}
	if res.MessagesScanned != 2 || res.Applied != 1 || res.Reconcile == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if classifier.calls != 1 {
		t.Errorf("email without time-off keywords should not be classified, got %d calls", classifier.calls)
	}
	if m := loadMember(t, db, "mem-003"); m.LeaveStatus != models.LeaveOOO || m.TimeOffReason != "sick leave" {
		t.Errorf("expected Jordan ooo from the email, got %+v", m)
	}
}

func TestScanGmailSourceErrors(t *testing.T) {
	svc, _ := newIngestFixture(t, &stubClassifier{}, nil)
	if svc.EmailConfigured() {
		t.Fatal("no mailbox attached yet")
	}
	if _, err := svc.ScanGmail(context.Background(), 10); !errors.Is(err, ErrGmailNotConfigured) {
		t.Errorf("expected ErrGmailNotConfigured, got %v", err)
	}
	if _, err := svc.DebugGmail(context.Background(), 10); !errors.Is(err, ErrGmailNotConfigured) {
		t.Errorf("expected ErrGmailNotConfigured, got %v", err)
	}

	svc.SetEmailSource(&stubSource{err: errors.New("invalid_grant")})
	if _, err := svc.ScanGmail(context.Background(), 10); !errors.Is(err, ErrGmailUnavailable) {
		t.Errorf("expected ErrGmailUnavailable, got %v", err)
	}
}

func TestDebugGmailDoesNotWrite(t *testing.T) {
	ooo := "Subject: Vacation 3/16 - 3/20"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		ooo: {IsTimeOff: true, StartDate: "3/16/2026", EndDate: "3/20/2026"},
	}}
	svc, db := newIngestFixture(t, classifier, nil)
	svc.SetEmailSource(&queryingSource{stubSource{msgs: []ChatMessage{
		emailAt("e1", "Alex Rivera", "Vacation 3/16 - 3/20"),
		emailAt("e2", "Priya Shah", "Lunch menu"),
	}}})

	out, err := svc.DebugGmail(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if out.EmailsFound != 2 || out.Today != ingestToday || !strings.Contains(out.SearchQuery, "newer_than:30d") {
		t.Errorf("unexpected debug header %+v", out)
	}
	if out.Emails[0].Decision != ActionPending || out.Emails[0].Match == nil || out.Emails[0].Match.MemberID != "mem-001" {
		t.Errorf("unexpected trace %+v", out.Emails[0])
	}
	if out.Emails[1].Decision != DecisionFiltered || out.Emails[1].FilterReason != "no time-off keywords" {
		t.Errorf("expected keyword filter, got %+v", out.Emails[1])
	}
	if m := loadMember(t, db, "mem-001"); m.HasTimeOffWindow() {
		t.Error("debug run must not write")
	}
}
