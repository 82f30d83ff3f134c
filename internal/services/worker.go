package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes queued sync events and delivers them to the hub.
// Only started when the Redis queue is enabled.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	hub     *SyncHub
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorker creates a worker instance, or nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, hub *SyncHub) *Worker {
	if !cfg.Enabled {
		return nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Warnf("[Worker] Error processing task %s: %v", task.Type(), err)
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		hub:    hub,
	}
}

// Start begins processing tasks.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeSyncPush, w.handleSyncPush)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Infof("[Worker] Starting sync push worker...")
		if err := w.server.Run(w.mux); err != nil {
			logger.Errorf("[Worker] Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.server.Shutdown()
	w.wg.Wait()
	w.running = false
}

func (w *Worker) handleSyncPush(ctx context.Context, task *asynq.Task) error {
	var event SyncEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return err
	}

	w.hub.Publish(event)
	return nil
}
