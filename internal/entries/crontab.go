package entries

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Crontab entries fire on a crontab-style schedule, evaluated in UTC.
type Crontab struct {
	Base
	CronExpression string    `json:"cron_expression"`
	LastSentAt     time.Time `json:"last_sent_at"` // client read-only

	sched cron.Schedule `json:"-"`
}

var crontabReadOnlyFields = []string{"last_sent_at"}

func NewCrontab(key, task, cronExpr string, enabled bool, lastSentAt time.Time) (*Crontab, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, errValidation("invalid cron expression: " + err.Error())
	}
	if lastSentAt.IsZero() {
		lastSentAt = time.Now().UTC()
	}
	if err := dtIsNaive(lastSentAt); err != nil {
		return nil, err
	}
	e := &Crontab{
		Base:           Base{Key: key, Enabled: enabled, TaskID: task},
		CronExpression: cronExpr,
		LastSentAt:     lastSentAt,
		sched:          sched,
	}
	if err := validateCommon(e.Base); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Crontab) EntryKind() Kind          { return KindCrontab }
func (e *Crontab) ReadOnlyFields() []string { return crontabReadOnlyFields }

// Validate mirrors NewCrontab's checks, for entries that reached this
// struct via json.Unmarshal rather than the constructor.
func (e *Crontab) Validate() error {
	if _, err := cron.ParseStandard(e.CronExpression); err != nil {
		return errValidation("invalid cron expression: " + err.Error())
	}
	if err := dtIsNaive(e.LastSentAt); err != nil {
		return err
	}
	return validateCommon(e.Base)
}

// Warm parses and caches CronExpression. The codec decode path calls this
// once, immediately after unmarshal and before the entry is ever shared
// across goroutines — so schedule() below never has to mutate a live entry
// that the dispatch loop and the HTTP transport might be reading at once.
func (e *Crontab) Warm() {
	if e.sched == nil {
		if sched, err := cron.ParseStandard(e.CronExpression); err == nil {
			e.sched = sched
		}
	}
}

// schedule returns the cached schedule if the entry was built via
// NewCrontab or Warm, otherwise parses CronExpression without caching the
// result — a concurrently-shared entry must never be mutated by a read
// path, so an un-warmed entry simply repays the parse cost on every call.
func (e *Crontab) schedule() cron.Schedule {
	if e.sched != nil {
		return e.sched
	}
	sched, err := cron.ParseStandard(e.CronExpression)
	if err != nil {
		return nil
	}
	return sched
}

// DueIn's reference start time is the stored LastSentAt, never "now" — a
// scheduler that stalls and resumes still fires the next scheduled minute
// rather than replaying every minute it missed.
func (e *Crontab) DueIn(now time.Time) time.Duration {
	sched := e.schedule()
	if sched == nil {
		// Validated at construction; should never happen.
		return time.Hour
	}
	next := sched.Next(e.LastSentAt)
	return next.Sub(now)
}

func (e *Crontab) Sent(now time.Time) {
	e.LastSentAt = now
}

func (e *Crontab) Clone() Entry {
	clone := *e
	clone.Base = e.cloneBase()
	return &clone
}
