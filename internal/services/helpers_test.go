package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func fixedClock(day string) Clock {
	t, err := time.Parse(DateLayout, day)
	if err != nil {
		panic(err)
	}
	now := t.Add(10 * time.Hour)
	return func() time.Time { return now }
}

// movableClock lets a test advance time between calls.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMovableClock(day string) *movableClock {
	return &movableClock{now: fixedClock(day)()}
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) AddDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

func addDays(day string, n int) string {
	t, _ := time.Parse(DateLayout, day)
	return t.AddDate(0, 0, n).Format(DateLayout)
}

func createMembers(t *testing.T, db *gorm.DB, members ...models.Member) {
	t.Helper()
	for i := range members {
		if members[i].LeaveStatus == "" {
			members[i].LeaveStatus = models.LeaveAvailable
		}
		if err := db.Create(&members[i]).Error; err != nil {
			t.Fatalf("create member %s: %v", members[i].ID, err)
		}
	}
}

func loadMember(t *testing.T, db *gorm.DB, id string) models.Member {
	t.Helper()
	var m models.Member
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		t.Fatalf("load member %s: %v", id, err)
	}
	return m
}

// stubClassifier answers from a table keyed by message text.
type stubClassifier struct {
	mu      sync.Mutex
	answers map[string]*TimeOffDetails
	errs    map[string]error
	calls   int
}

func (s *stubClassifier) ClassifyTimeOff(_ context.Context, msg ChatMessage) (*TimeOffDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err, ok := s.errs[msg.Text]; ok {
		return nil, err
	}
	if d, ok := s.answers[msg.Text]; ok {
		return d, nil
	}
	return &TimeOffDetails{IsTimeOff: false}, nil
}

// stubScorer returns a fixed skill score per member id.
type stubScorer struct {
	mu     sync.Mutex
	scores map[string]float64
	errs   map[string]error
	delay  time.Duration
	calls  []string
}

func (s *stubScorer) ScoreCandidate(ctx context.Context, task *models.Task, m *models.Member) (*CandidateScore, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, m.ID)
	s.mu.Unlock()
	if err, ok := s.errs[m.ID]; ok {
		return nil, err
	}
	score, ok := s.scores[m.ID]
	if !ok {
		score = 50
	}
	return &CandidateScore{SkillMatchPct: score, Reasoning: "fits " + task.Title}, nil
}

type stubSource struct {
	msgs []ChatMessage
	err  error
}

func (s *stubSource) FetchMessages(_ context.Context, _, _ int) ([]ChatMessage, error) {
	return s.msgs, s.err
}
