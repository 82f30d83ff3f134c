package services

import (
	"encoding/json"
	"sync"

	"github.com/copyhere/server/internal/config"
	"github.com/copyhere/server/pkg/logger"
	"github.com/hibiken/asynq"
)

const TaskTypeSyncPush = "sync:push"

// PushQueue decouples clipboard writes from fan-out delivery. Enqueue is
// fire-and-forget: failures are logged by callers, never returned to the
// uploading device.
type PushQueue interface {
	// Enqueue schedules a sync event for delivery
	Enqueue(event *SyncEvent) error
	// IsAsync returns true if events are delivered asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalPushQueue PushQueue
	pushQueueOnce   sync.Once
)

// InitPushQueue initializes the global push queue based on config.
// With Redis disabled (the default single-node setup) events are
// delivered in-process straight to the sync hub.
func InitPushQueue(cfg *config.Config) PushQueue {
	pushQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncPushQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[PushQueue] Redis unavailable, falling back to in-process delivery: %v", err)
				globalPushQueue = NewInProcessPushQueue(GetSyncHub())
			} else {
				logger.Infof("[PushQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalPushQueue = queue
			}
		} else {
			logger.Infof("[PushQueue] In-process delivery (Redis disabled)")
			globalPushQueue = NewInProcessPushQueue(GetSyncHub())
		}
	})
	return globalPushQueue
}

// GetPushQueue returns the global push queue instance.
func GetPushQueue() PushQueue {
	return globalPushQueue
}

// AsyncPushQueue implements PushQueue using asynq (Redis-based).
type AsyncPushQueue struct {
	client *asynq.Client
}

// NewAsyncPushQueue creates a Redis-backed queue and verifies the
// connection before returning it.
func NewAsyncPushQueue(cfg *config.RedisConfig) (*AsyncPushQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncPushQueue{client: client}, nil
}

func (q *AsyncPushQueue) Enqueue(event *SyncEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeSyncPush, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().
		Str("task_id", info.ID).
		Str("event", event.Type).
		Msg("sync event enqueued")
	return nil
}

func (q *AsyncPushQueue) IsAsync() bool {
	return true
}

func (q *AsyncPushQueue) Close() error {
	return q.client.Close()
}

// InProcessPushQueue implements PushQueue by publishing straight to the
// hub on the caller's goroutine.
type InProcessPushQueue struct {
	hub *SyncHub
}

func NewInProcessPushQueue(hub *SyncHub) *InProcessPushQueue {
	return &InProcessPushQueue{hub: hub}
}

func (q *InProcessPushQueue) Enqueue(event *SyncEvent) error {
	q.hub.Publish(*event)
	return nil
}

func (q *InProcessPushQueue) IsAsync() bool {
	return false
}

func (q *InProcessPushQueue) Close() error {
	return nil
}
