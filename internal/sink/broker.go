package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/redis/go-redis/v9"
)

const (
	registeredTasksKey = "scheduler:registered_tasks"
	queueKeyPrefix     = "scheduler:queue:"
)

// BrokerQueueSink resolves entry.Task() against a set of registered task
// names before enqueuing; an unregistered task is logged and dropped.
type BrokerQueueSink struct {
	rdb        *redis.Client
	entryPoint string
	logger     *slog.Logger
}

func NewBrokerQueueSink(rdb *redis.Client, entryPoint string, logger *slog.Logger) *BrokerQueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrokerQueueSink{rdb: rdb, entryPoint: entryPoint, logger: logger.With("component", "broker_queue_sink")}
}

func (s *BrokerQueueSink) Send(ctx context.Context, entry entries.Entry) error {
	task := resolveTaskName(entry.Task(), s.entryPoint)

	registered, err := s.rdb.SIsMember(ctx, registeredTasksKey, task).Result()
	if err != nil {
		return fmt.Errorf("sink: check registered task %q: %w", task, err)
	}
	if !registered {
		s.logger.Error("task not registered with broker", "task", task, "entry_key", entry.EntryKey())
		return nil
	}

	raw, err := json.Marshal(envelope{Task: task, Args: entry.Args(), Kwargs: entry.Kwargs()})
	if err != nil {
		return fmt.Errorf("sink: encode envelope for %q: %w", task, err)
	}
	if err := s.rdb.RPush(ctx, queueKeyPrefix+task, raw).Err(); err != nil {
		return fmt.Errorf("sink: enqueue %q: %w", task, err)
	}
	return nil
}

var _ Sink = (*BrokerQueueSink)(nil)
