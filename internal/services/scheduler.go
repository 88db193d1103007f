package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	jobTimeOffSync = "timeoff_sync"
	jobReconcile   = "reconcile"
	jobGmailScan   = "gmail_scan"

	scheduledSyncLimit = 200
	jobTimeout         = 5 * time.Minute
	lockRetention      = 7 * 24 * time.Hour
)

// Scheduler runs the periodic time-off sync and reconciliation jobs. Each
// run is claimed through a scheduler_locks row so several server instances
// sharing a database fire a job once per slot.
type Scheduler struct {
	db           *gorm.DB
	timeoff      *TimeOffService
	availability *AvailabilityService
	cfg          config.SchedulerConfig
	loc          *time.Location
	clock        Clock
	holder       string

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

func NewScheduler(db *gorm.DB, timeoff *TimeOffService, availability *AvailabilityService,
	cfg *config.SchedulerConfig, loc *time.Location, clock Clock) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = time.Now
	}
	host, _ := os.Hostname()
	s := &Scheduler{
		db:           db,
		timeoff:      timeoff,
		availability: availability,
		loc:          loc,
		clock:        clock,
		holder:       fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		entries:      make(map[string]cron.EntryID),
	}
	if cfg != nil {
		s.cfg = *cfg
	}
	return s
}

// Start registers the configured jobs and starts the cron loop. An empty
// expression leaves that job disabled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cron = cron.New(cron.WithLocation(s.loc))
	jobs := []struct {
		name string
		expr string
		run  func(context.Context) error
	}{
		{jobTimeOffSync, s.cfg.TimeOffSyncCron, s.RunTimeOffSync},
		{jobReconcile, s.cfg.ReconcileCron, s.RunReconcile},
		{jobGmailScan, s.cfg.GmailScanCron, s.RunGmailScan},
	}
	for _, j := range jobs {
		if j.expr == "" {
			logger.Infof("[Scheduler] %s disabled", j.name)
			continue
		}
		job := j
		id, err := s.cron.AddFunc(job.expr, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := job.run(ctx); err != nil {
				logger.Errorf("[Scheduler] %s failed: %v", job.name, err)
				LogError("Scheduler", job.name, "", err.Error(), nil)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron %q for %s: %w", job.expr, job.name, err)
		}
		s.entries[job.name] = id
		logger.Infof("[Scheduler] %s scheduled (cron: %s)", job.name, job.expr)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] Started as %s", s.holder)
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	logger.Infof("[Scheduler] Stopped")
}

// Entries reports the registered job names with their next run time.
func (s *Scheduler) Entries() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) RunTimeOffSync(ctx context.Context) error {
	ok, err := s.claim(ctx, jobTimeOffSync)
	if err != nil || !ok {
		return err
	}
	hours := s.cfg.TimeOffSyncHours
	if hours <= 0 {
		hours = 24
	}
	result, err := s.timeoff.Sync(ctx, hours, scheduledSyncLimit)
	if err != nil {
		return err
	}
	logger.Infof("[Scheduler] Time-off sync: scanned=%d applied=%d pending=%d",
		result.MessagesScanned, result.Applied, result.Pending)
	return nil
}

// RunGmailScan applies out-of-office emails from the configured search window.
func (s *Scheduler) RunGmailScan(ctx context.Context) error {
	if s.timeoff == nil || !s.timeoff.EmailConfigured() {
		logger.Debugf("[Scheduler] %s skipped: gmail not configured", jobGmailScan)
		return nil
	}
	ok, err := s.claim(ctx, jobGmailScan)
	if err != nil || !ok {
		return err
	}
	result, err := s.timeoff.ScanGmail(ctx, scheduledSyncLimit)
	if err != nil {
		return err
	}
	logger.Infof("[Scheduler] Gmail scan: scanned=%d applied=%d pending=%d",
		result.MessagesScanned, result.Applied, result.Pending)
	return nil
}

func (s *Scheduler) RunReconcile(ctx context.Context) error {
	ok, err := s.claim(ctx, jobReconcile)
	if err != nil || !ok {
		return err
	}
	result, err := s.availability.Reconcile(ctx)
	if err != nil {
		return err
	}
	logger.Infof("[Scheduler] Reconcile: activated=%d expired=%d", len(result.Activated), len(result.Expired))

	cutoff := s.clock().Add(-lockRetention)
	if err := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warnf("[Scheduler] Failed to prune scheduler locks: %v", err)
	}
	return nil
}

// claim inserts the lock row for the current minute. It returns false when
// another holder already owns the slot.
func (s *Scheduler) claim(ctx context.Context, job string) (bool, error) {
	now := s.clock()
	lock := &models.SchedulerLock{
		Job:       job,
		Slot:      now.In(s.loc).Format("2006-01-02T15:04"),
		Holder:    s.holder,
		LockedAt:  now,
		ExpiresAt: now.Add(jobTimeout),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(lock)
	if res.Error != nil {
		return false, fmt.Errorf("claim %s: %w", job, res.Error)
	}
	if res.RowsAffected == 0 {
		logger.Debugf("[Scheduler] %s slot %s already claimed", job, lock.Slot)
		return false, nil
	}
	return true, nil
}
