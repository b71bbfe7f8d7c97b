package codec_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/distsched/internal/codec"
	"github.com/ErlanBelekov/distsched/internal/entries"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	reg := codec.DefaultRegistry()
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []entries.Entry{
		mustInterval(t, "i1", time.Minute, last),
		mustCrontab(t, "c1", "* * * * *", last),
		mustCrontabTZ(t, "ctz1", "0 9 * * *", "America/New_York", last),
		mustEvent(t, "e1", last),
	}

	for _, e := range cases {
		raw, err := codec.Encode(e)
		if err != nil {
			t.Fatalf("encode %s: %v", e.EntryKey(), err)
		}
		decoded, err := reg.Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", e.EntryKey(), err)
		}
		if decoded.EntryKey() != e.EntryKey() {
			t.Fatalf("expected key %s, got %s", e.EntryKey(), decoded.EntryKey())
		}
		if decoded.EntryKind() != e.EntryKind() {
			t.Fatalf("expected kind %s, got %s", e.EntryKind(), decoded.EntryKind())
		}
	}
}

func TestDecode_UnregisteredKind(t *testing.T) {
	reg := codec.NewRegistry(entries.KindInterval) // no crontab
	e := mustCrontab(t, "c1", "* * * * *", time.Now().UTC())
	raw, err := codec.Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := reg.Decode(raw); !errors.Is(err, entries.ErrEntryTypeNotRegistered) {
		t.Fatalf("expected ErrEntryTypeNotRegistered, got %v", err)
	}
}

func TestEncodeDecode_RoundTrip_PreservesSubSecondPeriod(t *testing.T) {
	reg := codec.DefaultRegistry()
	e := mustInterval(t, "fast", 100*time.Millisecond, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	raw, err := codec.Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := reg.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := decoded.(*entries.Interval).Period.Duration(); got != 100*time.Millisecond {
		t.Fatalf("expected period to round-trip as 100ms, got %v", got)
	}
}

func TestDecode_RejectsInvalidInterval(t *testing.T) {
	reg := codec.DefaultRegistry()
	raw := []byte(`{"entry_kind":"interval","entry":{"key":"k","task":"t","period":0,"last_sent_at":"2026-01-01T00:00:00Z"}}`)
	if _, err := reg.Decode(raw); !errors.Is(err, entries.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero period, got %v", err)
	}
}

func TestDecode_RejectsInvalidCrontabExpression(t *testing.T) {
	reg := codec.DefaultRegistry()
	raw := []byte(`{"entry_kind":"crontab","entry":{"key":"k","task":"t","cron_expression":"not a cron","last_sent_at":"2026-01-01T00:00:00Z"}}`)
	if _, err := reg.Decode(raw); !errors.Is(err, entries.ErrValidation) {
		t.Fatalf("expected ErrValidation for invalid cron expression, got %v", err)
	}
}

func TestDecode_RejectsNonUTCLastSentAt(t *testing.T) {
	reg := codec.DefaultRegistry()
	raw := []byte(`{"entry_kind":"interval","entry":{"key":"k","task":"t","period":60,"last_sent_at":"2026-01-01T00:00:00+02:00"}}`)
	if _, err := reg.Decode(raw); !errors.Is(err, entries.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-UTC last_sent_at, got %v", err)
	}
}

func TestDecode_UnknownTag(t *testing.T) {
	reg := codec.DefaultRegistry()
	_, err := reg.Decode([]byte(`{"entry_kind":"bogus","entry":{}}`))
	if !errors.Is(err, entries.ErrEntryTypeNotRegistered) {
		t.Fatalf("expected ErrEntryTypeNotRegistered, got %v", err)
	}
}

func mustInterval(t *testing.T, key string, period time.Duration, last time.Time) *entries.Interval {
	t.Helper()
	e, err := entries.NewInterval(key, "task", period, true, last)
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}
	return e
}

func mustCrontab(t *testing.T, key, expr string, last time.Time) *entries.Crontab {
	t.Helper()
	e, err := entries.NewCrontab(key, "task", expr, true, last)
	if err != nil {
		t.Fatalf("NewCrontab: %v", err)
	}
	return e
}

func mustCrontabTZ(t *testing.T, key, expr, tz string, last time.Time) *entries.CrontabTZ {
	t.Helper()
	e, err := entries.NewCrontabTZ(key, "task", expr, tz, true, last)
	if err != nil {
		t.Fatalf("NewCrontabTZ: %v", err)
	}
	return e
}

func mustEvent(t *testing.T, key string, dueAt time.Time) *entries.Event {
	t.Helper()
	e, err := entries.NewEvent(key, "task", dueAt, true)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return e
}
