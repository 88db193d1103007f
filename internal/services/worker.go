package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"github.com/Riddhimaan-Senapati/vantage-bench/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes suggestion jobs from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor JobProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, processor JobProcessor) *Worker {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			suggestionQueue: 1,
		},
		Logger:   asynqLogger{logger.Module("asynq")},
		LogLevel: asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warnf("[Worker] Error processing %s: %v", task.Type(), err)
		}),
	})

	w := &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
	w.mux.HandleFunc(TaskTypeSuggestion, w.handleSuggestionTask)
	return w
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	w.running = true
	logger.Infof("[Worker] Suggestion worker started")
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	logger.Infof("[Worker] Shutting down...")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Infof("[Worker] Shutdown complete")
}

func (w *Worker) handleSuggestionTask(ctx context.Context, t *asynq.Task) error {
	job, err := decodeSuggestionJob(t.Payload())
	if err != nil {
		logger.Errorf("[Worker] Bad payload, skipping retry: %v", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if w.processor == nil {
		logger.Warnf("[Worker] No processor set, dropping job for task %s", job.TaskID)
		return nil
	}

	w.wg.Add(1)
	defer w.wg.Done()
	logger.Infof("[Worker] Regenerating suggestions for task %s (%s)", job.TaskID, job.Reason)
	return w.processor(ctx, job)
}

// asynqLogger routes the queue server's own logging through zerolog.
type asynqLogger struct{ l zerolog.Logger }

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msg(fmt.Sprint(args...)) }

func decodeSuggestionJob(payload []byte) (*SuggestionJob, error) {
	var job SuggestionJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("unmarshal suggestion job: %w", err)
	}
	if job.TaskID == "" {
		return nil, fmt.Errorf("suggestion job without task id")
	}
	return &job, nil
}
