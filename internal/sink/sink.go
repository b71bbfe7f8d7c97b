// Package sink delivers due entries to an external task-execution backend.
// Both reference implementations push onto Redis lists — the only
// message-transport dependency available for this domain in the
// reference stack — and neither implementation mutates the entry it is
// given.
package sink

import (
	"context"

	"github.com/ErlanBelekov/distsched/internal/entries"
)

// Sink delivers a due entry. Send must be synchronous and must not
// mutate entry; failures are returned to the caller (the dispatch loop
// logs them), never panicked.
type Sink interface {
	Send(ctx context.Context, entry entries.Entry) error
}

// mainSentinel mirrors the source's "__main__" module marker: a task
// identifier prefixed with it is resolved against the running process's
// own entry-point name instead of literally, for compatibility with
// queue backends that dispatch by fully qualified task name.
const mainSentinel = "__main__"

// resolveTaskName substitutes the leading mainSentinel segment of task
// with entryPoint, leaving everything else untouched. A task with no
// such prefix is returned unchanged.
func resolveTaskName(task, entryPoint string) string {
	if len(task) < len(mainSentinel) || task[:len(mainSentinel)] != mainSentinel {
		return task
	}
	return entryPoint + task[len(mainSentinel):]
}

// envelope is the wire shape pushed onto a Redis list for a consumer to
// pop and execute.
type envelope struct {
	Task   string                    `json:"task"`
	Args   []entries.Value           `json:"args"`
	Kwargs map[string]entries.Value  `json:"kwargs"`
}
