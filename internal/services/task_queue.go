package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeSuggestion = "suggestion:generate"
	suggestionQueue    = "suggestions"
	suggestionJobLimit = 5 * time.Minute
)

// SuggestionJob asks for a task's suggestion list to be rebuilt.
type SuggestionJob struct {
	TaskID      string    `json:"task_id"`
	Reason      string    `json:"reason"` // created, unassigned, manual
	RequestedAt time.Time `json:"requested_at"`
}

// JobProcessor runs one suggestion job.
type JobProcessor func(context.Context, *SuggestionJob) error

// TaskQueue hands suggestion jobs to a background runner so HTTP handlers
// return before any scoring happens.
type TaskQueue interface {
	Enqueue(job *SuggestionJob) error
	IsAsync() bool
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when enabled and reachable,
// otherwise an in-process one.
func NewTaskQueue(cfg *config.RedisConfig, processor JobProcessor) TaskQueue {
	if cfg != nil && cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to in-process mode: %v", err)
	}
	logger.Infof("[TaskQueue] In-process queue initialized")
	q := NewSyncQueue()
	q.SetProcessor(processor)
	return q
}

// AsyncQueue implements TaskQueue with asynq.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, err
	}

	return &AsyncQueue{client: asynq.NewClient(redisOpt)}, nil
}

func (q *AsyncQueue) Enqueue(job *SuggestionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeSuggestion, payload),
		asynq.Queue(suggestionQueue),
		asynq.MaxRetry(2),
		asynq.Timeout(suggestionJobLimit),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Suggestion job enqueued: id=%s task=%s", info.ID, job.TaskID)
	return nil
}

func (q *AsyncQueue) IsAsync() bool { return true }

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each job on its own goroutine inside this process.
type SyncQueue struct {
	processor JobProcessor
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor JobProcessor) {
	q.mu.Lock()
	q.processor = processor
	q.mu.Unlock()
}

func (q *SyncQueue) Enqueue(job *SuggestionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		logger.Warnf("[SyncQueue] Queue closed, dropping job for task %s", job.TaskID)
		return nil
	}
	if q.processor == nil {
		logger.Warnf("[SyncQueue] No processor set, dropping job for task %s", job.TaskID)
		return nil
	}

	processor := q.processor
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), suggestionJobLimit)
		defer cancel()
		if err := processor(ctx, job); err != nil {
			logger.Warnf("[SyncQueue] Job for task %s failed: %v", job.TaskID, err)
		}
	}()
	return nil
}

// Wait blocks until every job enqueued so far has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool { return false }

// Close stops accepting jobs and waits for running ones.
func (q *SyncQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}
