package entries

import "time"

// Interval entries are sent every Period amount of time.
type Interval struct {
	Base
	Period     Seconds   `json:"period"`
	LastSentAt time.Time `json:"last_sent_at"` // client read-only; default = creation time
}

var intervalReadOnlyFields = []string{"last_sent_at"}

// NewInterval validates and constructs an Interval entry. LastSentAt
// defaults to now if the zero value is passed.
func NewInterval(key, task string, period time.Duration, enabled bool, lastSentAt time.Time) (*Interval, error) {
	if period <= 0 {
		return nil, errValidation("period must be greater than zero")
	}
	if lastSentAt.IsZero() {
		lastSentAt = time.Now().UTC()
	}
	if err := dtIsNaive(lastSentAt); err != nil {
		return nil, err
	}
	e := &Interval{
		Base:       Base{Key: key, Enabled: enabled, TaskID: task},
		Period:     Seconds(period),
		LastSentAt: lastSentAt,
	}
	if err := validateCommon(e.Base); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Interval) EntryKind() Kind          { return KindInterval }
func (e *Interval) ReadOnlyFields() []string { return intervalReadOnlyFields }

// Validate mirrors NewInterval's checks, for entries that reached this
// struct via json.Unmarshal rather than the constructor.
func (e *Interval) Validate() error {
	if e.Period.Duration() <= 0 {
		return errValidation("period must be greater than zero")
	}
	if err := dtIsNaive(e.LastSentAt); err != nil {
		return err
	}
	return validateCommon(e.Base)
}

func (e *Interval) DueIn(now time.Time) time.Duration {
	sinceSent := now.Sub(e.LastSentAt)
	return e.Period.Duration() - sinceSent
}

// Sent sets LastSentAt to now. A single fire always suffices — after a
// long outage, last_sent_at jumps straight to now rather than advancing
// by whole periods, so there is no catch-up replay.
func (e *Interval) Sent(now time.Time) {
	e.LastSentAt = now
}

func (e *Interval) Clone() Entry {
	clone := *e
	clone.Base = e.cloneBase()
	return &clone
}
