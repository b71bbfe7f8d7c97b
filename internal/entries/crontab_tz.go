package entries

import (
	"time"

	"github.com/robfig/cron/v3"
)

// CrontabTZ entries fire on a crontab-style schedule evaluated in a named
// IANA zone, so that schedules anchored to local wall-clock time (e.g.
// "9am every day") keep firing at 9am across DST transitions instead of
// drifting by an hour twice a year.
type CrontabTZ struct {
	Base
	CronExpression string    `json:"cron_expression"`
	Timezone       string    `json:"timezone"`
	LastSentAt     time.Time `json:"last_sent_at"` // client read-only; stored as naive UTC

	loc   *time.Location `json:"-"`
	sched cron.Schedule  `json:"-"`
}

var crontabTZReadOnlyFields = []string{"last_sent_at"}

func NewCrontabTZ(key, task, cronExpr, timezone string, enabled bool, lastSentAt time.Time) (*CrontabTZ, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, errValidation("invalid cron expression: " + err.Error())
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errValidation("invalid timezone: " + err.Error())
	}
	if lastSentAt.IsZero() {
		lastSentAt = time.Now().UTC()
	}
	if err := dtIsNaive(lastSentAt); err != nil {
		return nil, err
	}
	e := &CrontabTZ{
		Base:           Base{Key: key, Enabled: enabled, TaskID: task},
		CronExpression: cronExpr,
		Timezone:       timezone,
		LastSentAt:     lastSentAt,
		loc:            loc,
		sched:          sched,
	}
	if err := validateCommon(e.Base); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *CrontabTZ) EntryKind() Kind          { return KindCrontabTZ }
func (e *CrontabTZ) ReadOnlyFields() []string { return crontabTZReadOnlyFields }

// Validate mirrors NewCrontabTZ's checks, for entries that reached this
// struct via json.Unmarshal rather than the constructor.
func (e *CrontabTZ) Validate() error {
	if _, err := cron.ParseStandard(e.CronExpression); err != nil {
		return errValidation("invalid cron expression: " + err.Error())
	}
	if _, err := time.LoadLocation(e.Timezone); err != nil {
		return errValidation("invalid timezone: " + err.Error())
	}
	if err := dtIsNaive(e.LastSentAt); err != nil {
		return err
	}
	return validateCommon(e.Base)
}

// Warm resolves Timezone and parses CronExpression, caching both. The
// codec decode path calls this once, immediately after unmarshal and
// before the entry is ever shared across goroutines — so location() and
// schedule() below never have to mutate a live entry that the dispatch
// loop and the HTTP transport might be reading at once.
func (e *CrontabTZ) Warm() {
	if e.loc == nil {
		if loc, err := time.LoadLocation(e.Timezone); err == nil {
			e.loc = loc
		}
	}
	if e.sched == nil {
		if sched, err := cron.ParseStandard(e.CronExpression); err == nil {
			e.sched = sched
		}
	}
}

// location returns the cached zone if the entry was built via
// NewCrontabTZ or Warm, otherwise resolves Timezone without caching the
// result — a concurrently-shared entry must never be mutated by a read
// path, so an un-warmed entry simply repays the lookup cost on every call.
func (e *CrontabTZ) location() *time.Location {
	if e.loc != nil {
		return e.loc
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// schedule mirrors location() above: returns the cached parse or
// recomputes without caching, never mutating a live shared entry.
func (e *CrontabTZ) schedule() cron.Schedule {
	if e.sched != nil {
		return e.sched
	}
	sched, err := cron.ParseStandard(e.CronExpression)
	if err != nil {
		return nil
	}
	return sched
}

// DueIn converts LastSentAt into the entry's zone before asking cron for
// the next fire time, then converts the result back to UTC. Doing the
// arithmetic in zone rather than in UTC is what keeps a "daily at 9am"
// schedule landing on 9am local across a DST jump.
func (e *CrontabTZ) DueIn(now time.Time) time.Duration {
	sched := e.schedule()
	if sched == nil {
		// Validated at construction; should never happen.
		return time.Hour
	}
	loc := e.location()
	lastInZone := e.LastSentAt.In(loc)
	next := sched.Next(lastInZone)
	return next.UTC().Sub(now)
}

func (e *CrontabTZ) Sent(now time.Time) {
	e.LastSentAt = now
}

func (e *CrontabTZ) Clone() Entry {
	clone := *e
	clone.Base = e.cloneBase()
	return &clone
}
