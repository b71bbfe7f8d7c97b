package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/redis/go-redis/v9"
)

const simpleQueueKey = "scheduler:queue"

// SimpleQueueSink enqueues unconditionally onto a single list; the
// consumer resolves task by name itself, so no registered-task lookup is
// needed here.
type SimpleQueueSink struct {
	rdb        *redis.Client
	entryPoint string
}

func NewSimpleQueueSink(rdb *redis.Client, entryPoint string) *SimpleQueueSink {
	return &SimpleQueueSink{rdb: rdb, entryPoint: entryPoint}
}

func (s *SimpleQueueSink) Send(ctx context.Context, entry entries.Entry) error {
	task := resolveTaskName(entry.Task(), s.entryPoint)
	raw, err := json.Marshal(envelope{Task: task, Args: entry.Args(), Kwargs: entry.Kwargs()})
	if err != nil {
		return fmt.Errorf("sink: encode envelope for %q: %w", task, err)
	}
	if err := s.rdb.RPush(ctx, simpleQueueKey, raw).Err(); err != nil {
		return fmt.Errorf("sink: enqueue %q: %w", task, err)
	}
	return nil
}

var _ Sink = (*SimpleQueueSink)(nil)
