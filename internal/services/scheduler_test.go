package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
)

func TestSchedulerStartRegistersConfiguredJobs(t *testing.T) {
	db := newTestDB(t)
	avail := NewAvailabilityService(db, time.UTC, nil)

	s := NewScheduler(db, nil, avail, &config.SchedulerConfig{ReconcileCron: "5 0 * * *"}, time.UTC, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	entries := s.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected only reconcile to be scheduled, got %v", entries)
	}
	if next := entries[jobReconcile]; next.Hour() != 0 || next.Minute() != 5 {
		t.Errorf("unexpected next run %v", next)
	}

	bad := NewScheduler(db, nil, avail, &config.SchedulerConfig{ReconcileCron: "every day"}, time.UTC, nil)
	if err := bad.Start(); err == nil {
		t.Error("expected an invalid cron expression to fail")
	}
}

func TestSchedulerReconcileRunsOncePerSlot(t *testing.T) {
	db := newTestDB(t)
	today := "2026-03-10"
	clock := fixedClock(today)
	avail := NewAvailabilityService(db, time.UTC, clock)
	createMembers(t, db, models.Member{ID: "mem-001", Name: "Alex", TimeOffStart: today, TimeOffEnd: addDays(today, 2)})

	first := NewScheduler(db, nil, avail, nil, time.UTC, clock)
	second := NewScheduler(db, nil, avail, nil, time.UTC, clock)
	ctx := context.Background()

	if err := first.RunReconcile(ctx); err != nil {
		t.Fatal(err)
	}
	if err := second.RunReconcile(ctx); err != nil {
		t.Fatal(err)
	}

	var locks []models.SchedulerLock
	db.Find(&locks)
	if len(locks) != 1 || locks[0].Holder != first.holder {
		t.Errorf("expected a single lock held by the first instance, got %+v", locks)
	}
	if m := loadMember(t, db, "mem-001"); m.LeaveStatus != models.LeaveOOO {
		t.Errorf("reconcile should activate the window, got %s", m.LeaveStatus)
	}
}

func TestSchedulerTimeOffSync(t *testing.T) {
	text := "Alex Rivera is out today"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		text: {IsTimeOff: true, PersonName: "Alex Rivera", StartDate: ingestToday, EndDate: ingestToday},
	}}
	source := &stubSource{msgs: []ChatMessage{msgAt("1", "Jordan Lee", text)}}
	svc, db := newIngestFixture(t, classifier, source)
	clock := fixedClock(ingestToday)

	s := NewScheduler(db, svc, NewAvailabilityService(db, time.UTC, clock),
		&config.SchedulerConfig{TimeOffSyncHours: 12}, time.UTC, clock)
	if err := s.RunTimeOffSync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m := loadMember(t, db, "mem-001"); m.LeaveStatus != models.LeaveOOO {
		t.Errorf("expected mem-001 ooo after scheduled sync, got %s", m.LeaveStatus)
	}

	t.Run("source down", func(t *testing.T) {
		offline, db := newIngestFixture(t, classifier, &stubSource{err: errors.New("timeout")})
		s := NewScheduler(db, offline, nil, nil, time.UTC, clock)
		if err := s.RunTimeOffSync(context.Background()); !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})
}

func TestSchedulerGmailScan(t *testing.T) {
	subject := "Out of office today"
	classifier := &stubClassifier{answers: map[string]*TimeOffDetails{
		"Subject: " + subject: {IsTimeOff: true, StartDate: ingestToday},
	}}
	svc, db := newIngestFixture(t, classifier, nil)
	clock := fixedClock(ingestToday)
	s := NewScheduler(db, svc, nil, &config.SchedulerConfig{GmailScanCron: "15 8 * * 1-5"}, time.UTC, clock)

	// No mailbox yet: the job is a quiet no-op and claims nothing.
	if err := s.RunGmailScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.SchedulerLock{}).Count(&count)
	if count != 0 {
		t.Errorf("unconfigured scan should not claim a slot, got %d locks", count)
	}

	svc.SetEmailSource(&stubSource{msgs: []ChatMessage{emailAt("e1", "Alex Rivera", subject)}})
	if err := s.RunGmailScan(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m := loadMember(t, db, "mem-001"); m.LeaveStatus != models.LeaveOOO {
		t.Errorf("expected mem-001 ooo after the scheduled scan, got %s", m.LeaveStatus)
	}
}
