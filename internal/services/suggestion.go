package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/models"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"gorm.io/gorm"
)

// CandidateScore is the oracle's view of one candidate for one task.
// WorkloadPct is advisory only; ranking uses the value derived from task-load hours.
type CandidateScore struct {
	SkillMatchPct float64 `json:"skill_match_pct"`
	WorkloadPct   float64 `json:"workload_pct"`
	Reasoning     string  `json:"reasoning"`
}

type CandidateScorer interface {
	ScoreCandidate(ctx context.Context, task *models.Task, member *models.Member) (*CandidateScore, error)
}

const (
	DefaultFullLoadHours   = 40.0
	defaultScoreTimeout    = 30 * time.Second
	defaultScoreParallel   = 8
	suggestionMaxReasonLen = 1000
)

// WorkloadPct normalizes task-load hours against a full load, clamped to [0,100].
func WorkloadPct(hours, fullLoad float64) float64 {
	if fullLoad <= 0 {
		fullLoad = DefaultFullLoadHours
	}
	pct := hours / fullLoad * 100
	if pct < 0 || math.IsNaN(pct) {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return math.Round(pct*10) / 10
}

func clampPct(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RankSuggestions orders by skill match descending, then workload ascending,
// then member id, and renumbers Rank from 0.
func RankSuggestions(s []models.Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].SkillMatchPct != s[j].SkillMatchPct {
			return s[i].SkillMatchPct > s[j].SkillMatchPct
		}
		if s[i].WorkloadPct != s[j].WorkloadPct {
			return s[i].WorkloadPct < s[j].WorkloadPct
		}
		return s[i].MemberID < s[j].MemberID
	})
	for i := range s {
		s[i].Rank = i
	}
}

// SuggestionEngine scores roster members for uncovered tasks.
type SuggestionEngine struct {
	db           *gorm.DB
	scorer       CandidateScorer
	availability *AvailabilityService
	hub          *SSEHub

	FullLoadHours float64
	ScoreTimeout  time.Duration
	Parallelism   int

	locks sync.Map // task id -> *sync.Mutex
}

func NewSuggestionEngine(db *gorm.DB, scorer CandidateScorer, availability *AvailabilityService, hub *SSEHub) *SuggestionEngine {
	return &SuggestionEngine{
		db:            db,
		scorer:        scorer,
		availability:  availability,
		hub:           hub,
		FullLoadHours: DefaultFullLoadHours,
		ScoreTimeout:  defaultScoreTimeout,
		Parallelism:   defaultScoreParallel,
	}
}

// Suggest scores every candidate that is not out of office on today and
// returns the ranked list. Candidates whose scoring fails are left out.
func (e *SuggestionEngine) Suggest(ctx context.Context, task *models.Task, roster []models.Member, today string) []models.Suggestion {
	var candidates []*models.Member
	for i := range roster {
		if EffectiveStatus(&roster[i], today) == models.LeaveOOO {
			continue
		}
		candidates = append(candidates, &roster[i])
	}
	if len(candidates) == 0 {
		return []models.Suggestion{}
	}

	parallel := e.Parallelism
	if parallel <= 0 {
		parallel = defaultScoreParallel
	}

	var (
		results = make([]models.Suggestion, 0, len(candidates))
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, parallel)
		failed  int
	)

	for _, m := range candidates {
		wg.Add(1)
		go func(m *models.Member) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, e.ScoreTimeout)
			defer cancel()

			score, err := e.scorer.ScoreCandidate(callCtx, task, m)
			if err == nil && score == nil {
				err = errors.New("empty score")
			}
			if err != nil {
				logger.Warnf("[Suggest] Scoring %s for task %s failed, omitting: %v", m.ID, task.ID, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			s := models.Suggestion{
				TaskID:        task.ID,
				MemberID:      m.ID,
				SkillMatchPct: math.Round(clampPct(score.SkillMatchPct)),
				WorkloadPct:   WorkloadPct(m.TaskLoadHours, e.FullLoadHours),
				ContextReason: truncate(score.Reasoning, suggestionMaxReasonLen),
			}
			mu.Lock()
			results = append(results, s)
			mu.Unlock()
		}(m)
	}
	wg.Wait()

	RankSuggestions(results)
	logger.Infof("[Suggest] Task %s: %d candidates, %d scored, %d failed",
		task.ID, len(candidates), len(results), failed)
	return results
}

func (e *SuggestionEngine) taskLock(taskID string) *sync.Mutex {
	l, _ := e.locks.LoadOrStore(taskID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Forget drops the per-task lock. Called once the task is deleted.
func (e *SuggestionEngine) Forget(taskID string) {
	e.locks.Delete(taskID)
}

// Regenerate recomputes a task's suggestions and replaces the stored list.
// Runs for the same task are serialized; the latest run's list wins.
// A task that is covered, or deleted before write-back, is left alone.
func (e *SuggestionEngine) Regenerate(ctx context.Context, taskID string) ([]models.Suggestion, error) {
	lock := e.taskLock(taskID)
	lock.Lock()
	defer lock.Unlock()

	var task models.Task
	if err := e.db.WithContext(ctx).First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, err
	}
	if task.Status == models.TaskCovered {
		logger.Infof("[Suggest] Task %s is covered, skipping regeneration", taskID)
		return []models.Suggestion{}, nil
	}

	e.publish(SuggestionEvent{TaskID: taskID, Status: SuggestionGenerating})

	// Bring stored statuses up to date so windows that started or ended since
	// the last tick are reflected. EffectiveStatus covers a failed tick.
	if e.availability != nil {
		if _, err := e.availability.Reconcile(ctx); err != nil {
			logger.Warnf("[Suggest] Reconcile before regenerating %s failed: %v", taskID, err)
		}
	}

	var roster []models.Member
	if err := e.db.WithContext(ctx).Order("id ASC").Find(&roster).Error; err != nil {
		e.publish(SuggestionEvent{TaskID: taskID, Status: SuggestionFailed, Error: err.Error()})
		return nil, fmt.Errorf("load roster: %w", err)
	}

	today := Today(time.Now(), time.UTC)
	if e.availability != nil {
		today = e.availability.Today()
	}

	suggestions := e.Suggest(ctx, &task, roster, today)

	written, err := e.replace(ctx, taskID, suggestions)
	if err != nil {
		e.publish(SuggestionEvent{TaskID: taskID, Status: SuggestionFailed, Error: err.Error()})
		return nil, err
	}
	if !written {
		logger.Infof("[Suggest] Task %s was deleted or covered while scoring, discarding %d suggestions", taskID, len(suggestions))
		return []models.Suggestion{}, nil
	}

	e.publish(SuggestionEvent{TaskID: taskID, Status: SuggestionReady, Count: len(suggestions)})
	return suggestions, nil
}

// replace swaps the stored list inside one transaction, but only if the task
// still exists and is not covered.
func (e *SuggestionEngine) replace(ctx context.Context, taskID string, suggestions []models.Suggestion) (bool, error) {
	written := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task models.Task
		err := tx.Select("id", "status").First(&task, "id = ?", taskID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if task.Status == models.TaskCovered {
			return nil
		}

		if err := tx.Where("task_id = ?", taskID).Delete(&models.Suggestion{}).Error; err != nil {
			return err
		}
		if len(suggestions) > 0 {
			rows := make([]models.Suggestion, len(suggestions))
			for i, s := range suggestions {
				s.ID = 0
				s.TaskID = taskID
				rows[i] = s
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		written = true
		return tx.Model(&models.Task{}).Where("id = ?", taskID).Update("updated_at", time.Now().UTC()).Error
	})
	return written, err
}

// ProcessJob is the queue entry point. A job for a task that no longer
// exists is dropped silently.
func (e *SuggestionEngine) ProcessJob(ctx context.Context, job *SuggestionJob) error {
	_, err := e.Regenerate(ctx, job.TaskID)
	if errors.Is(err, ErrTaskNotFound) {
		logger.Infof("[Suggest] Task %s no longer exists, dropping job", job.TaskID)
		return nil
	}
	return err
}

func (e *SuggestionEngine) publish(ev SuggestionEvent) {
	if e.hub != nil {
		e.hub.Publish(ev)
	}
}
