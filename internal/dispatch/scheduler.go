package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/distsched/internal/entries"
	"github.com/ErlanBelekov/distsched/internal/leaderlock"
	"github.com/ErlanBelekov/distsched/internal/metrics"
	"github.com/ErlanBelekov/distsched/internal/sink"
	"github.com/ErlanBelekov/distsched/internal/store"
)

// ErrMaxIterationsReached is returned by the loop inside Run when
// maxIterations is hit, never panicked — a clean return is preferred over
// the source's internal-exception-as-control-flow for a test-friendly
// bounded run. Run itself treats it as a normal stop and returns nil.
var ErrMaxIterationsReached = errors.New("dispatch: max iterations reached")

const banner = `
  ____  _     _      _               _
 |  _ \(_)___| |_   | |__   ___  __ _| |_
 | | | | / __| __|  | '_ \ / _ \/ _` + "`" + ` | __|
 | |_| | \__ \ |_   | |_) |  __/ (_| | |_
 |____/|_|___/\__|  |_.__/ \___|\__,_|\__|
`

// Scheduler runs the dispatch loop: acquire leader lock, then repeatedly
// evaluate every entry and fire the ones that are due, sleeping between
// iterations for the shortest positive due_in observed, bounded above by
// maxInterval.
type Scheduler struct {
	client      *Client
	store       store.EntryStore
	coordinator *leaderlock.Coordinator
	sink        sink.Sink
	maxInterval time.Duration
	logger      *slog.Logger
}

func NewScheduler(client *Client, backing store.EntryStore, coordinator *leaderlock.Coordinator, s sink.Sink, maxInterval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		client:      client,
		store:       backing,
		coordinator: coordinator,
		sink:        s,
		maxInterval: maxInterval,
		logger:      logger.With("component", "dispatch"),
	}
}

// Run executes the dispatch loop until ctx is cancelled, maxIterations
// iterations have run (0 means unbounded), or a store error is judged
// unrecoverable. Cleanup (leader lock release) always runs before Run
// returns.
func (s *Scheduler) Run(ctx context.Context, maxIterations int) error {
	s.logger.Info(banner)

	if err := s.coordinator.Acquire(ctx, time.Now); err != nil {
		return fmt.Errorf("dispatch: acquire leader lock: %w", err)
	}
	metrics.LockAcquisitionsTotal.Inc()
	s.logger.Info("dispatch loop starting")

	runErr := s.loop(ctx, maxIterations)

	if cleanupErr := s.coordinator.Release(ctx); cleanupErr != nil {
		s.logger.Error("release leader lock on shutdown", "error", cleanupErr)
	}
	metrics.SchedulerShutdownsTotal.Inc()
	s.logger.Info("dispatch loop stopped")

	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, ErrMaxIterationsReached) {
		return nil
	}
	return runErr
}

func (s *Scheduler) loop(ctx context.Context, maxIterations int) error {
	n := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		sleepFor, err := s.runOnce(ctx)
		metrics.IterationDuration.Observe(time.Since(start).Seconds())
		metrics.IterationsTotal.Inc()
		if err != nil {
			s.logger.Error("critical error in dispatch iteration", "critical", true, "error", err)
			return err
		}

		n++
		if maxIterations > 0 && n >= maxIterations {
			return ErrMaxIterationsReached
		}

		refreshed, err := s.coordinator.Refresh(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("dispatch: refresh leader lock: %w", err)
		}
		if !refreshed {
			metrics.LockLossesTotal.Inc()
			if err := s.coordinator.Acquire(ctx, time.Now); err != nil {
				return fmt.Errorf("dispatch: re-acquire leader lock: %w", err)
			}
			metrics.LockAcquisitionsTotal.Inc()
			continue
		}

		metrics.SleepDuration.Observe(sleepFor.Seconds())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
	}
}

// runOnce evaluates every entry once: default entries are mutated and
// sent in-memory; stored entries are fired through the backing store's
// FireDue, which performs the per-entry-locked reload/check/mark-sent/
// persist sequence atomically. It returns the shortest positive due_in
// observed, bounded above by maxInterval.
func (s *Scheduler) runOnce(ctx context.Context) (time.Duration, error) {
	now := time.Now().UTC()

	fired, sleepFor := s.client.FireDueDefaults(now, s.maxInterval)
	for _, entry := range fired {
		s.dispatch(ctx, entry)
	}

	it := s.store.List(ctx, 100)
	for {
		listed, ok, err := it.Next(ctx)
		if err != nil {
			return 0, fmt.Errorf("dispatch: list stored entries: %w", err)
		}
		if !ok {
			break
		}

		// d is a snapshot estimate from the listed copy, used only to
		// size the next sleep; FireDue recomputes due-ness itself under
		// the entry's lock before deciding to fire.
		if d := listed.DueIn(now); d > 0 && d < sleepFor {
			sleepFor = d
		}

		fired, due, err := s.store.FireDue(ctx, listed.EntryKey(), now)
		if err != nil {
			return 0, fmt.Errorf("dispatch: fire entry %q: %w", listed.EntryKey(), err)
		}
		if due {
			s.dispatch(ctx, fired)
		}
	}

	return sleepFor, nil
}

// dispatch calls the sink outside of any lock, so a slow or failing
// delivery to the task backend never extends a per-entry critical
// section. A crash between persisting sent() and this call is a lost
// fire for that period — acceptable under the at-most-once-per-period
// contract.
func (s *Scheduler) dispatch(ctx context.Context, entry entries.Entry) {
	if err := s.sink.Send(ctx, entry); err != nil {
		metrics.SinkErrorsTotal.WithLabelValues(string(entry.EntryKind())).Inc()
		s.logger.Error("sink send failed", "entry_key", entry.EntryKey(), "error", err)
		return
	}
	metrics.EntriesFiredTotal.WithLabelValues(string(entry.EntryKind())).Inc()
}
