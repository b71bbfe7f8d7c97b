package entries

import (
	"log/slog"
	"time"
)

// Event entries fire exactly once, at DueAt. Once sent, they are disabled
// and report themselves as never due again.
type Event struct {
	Base
	DueAt   time.Time `json:"due_at"`
	WasSent bool      `json:"was_sent"` // client read-only
}

var eventReadOnlyFields = []string{"was_sent"}

// NewEvent accepts DueAt either naive or zone-aware, normalizing it to
// naive UTC — unlike the other kinds' LastSentAt fields, due_at is not
// naive-UTC-only input.
func NewEvent(key, task string, dueAt time.Time, enabled bool) (*Event, error) {
	e := &Event{
		Base:  Base{Key: key, Enabled: enabled, TaskID: task},
		DueAt: dueAt.UTC(),
	}
	if err := validateCommon(e.Base); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) EntryKind() Kind          { return KindEvent }
func (e *Event) ReadOnlyFields() []string { return eventReadOnlyFields }

// Validate mirrors NewEvent's checks, for entries that reached this
// struct via json.Unmarshal rather than the constructor. DueAt carries no
// naive-UTC requirement, so there is nothing beyond validateCommon to
// re-check here.
func (e *Event) Validate() error {
	return validateCommon(e.Base)
}

// DueIn reports a duration far in the future once the event has already
// fired, so a dispatch loop that keeps a stale Event around never
// resurrects it.
func (e *Event) DueIn(now time.Time) time.Duration {
	if e.WasSent {
		return 24 * 365 * time.Hour
	}
	return e.DueAt.Sub(now)
}

// Sent marks the event fired and disables it. The debug line mirrors a
// diagnostic print kept from the original implementation, not load-bearing
// behavior.
func (e *Event) Sent(now time.Time) {
	e.WasSent = true
	e.Enabled = false
	slog.Debug("event entry fired", "key", e.Key, "fired_at", now)
}

func (e *Event) Clone() Entry {
	clone := *e
	clone.Base = e.cloneBase()
	return &clone
}
