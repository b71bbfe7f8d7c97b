package entries

import (
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind tags the concrete type carried by a Value.
type ValueKind string

const (
	KindNull     ValueKind = "null"
	KindBool     ValueKind = "bool"
	KindInt      ValueKind = "int"
	KindFloat    ValueKind = "float"
	KindString   ValueKind = "string"
	KindTime     ValueKind = "time"
	KindDuration ValueKind = "duration"
	KindList     ValueKind = "list"
	KindMap      ValueKind = "map"
)

// Value is a lossless-JSON sum type standing in for the source's
// jsonpickle-based arbitrary-object flattener (see SPEC_FULL.md §3.1).
// args/kwargs are built from these so that int64-vs-float64 and
// string-vs-timestamp are never conflated across a round trip.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	t    time.Time
	d    time.Duration
	list []Value
	m    map[string]Value
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(v bool) Value           { return Value{kind: KindBool, b: v} }
func Int(v int64) Value           { return Value{kind: KindInt, i: v} }
func Float(v float64) Value       { return Value{kind: KindFloat, f: v} }
func String(v string) Value       { return Value{kind: KindString, s: v} }
func Time(v time.Time) Value      { return Value{kind: KindTime, t: v} }
func Dur(v time.Duration) Value   { return Value{kind: KindDuration, d: v} }
func List(v ...Value) Value       { return Value{kind: KindList, list: v} }
func Map(v map[string]Value) Value { return Value{kind: KindMap, m: v} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsBool() (bool, bool)                { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)                { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool)            { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool)            { return v.s, v.kind == KindString }
func (v Value) AsTime() (time.Time, bool)           { return v.t, v.kind == KindTime }
func (v Value) AsDuration() (time.Duration, bool)   { return v.d, v.kind == KindDuration }
func (v Value) AsList() ([]Value, bool)             { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool)     { return v.m, v.kind == KindMap }

// Equal reports deep value equality, used by tests asserting round-trip
// fidelity (decode(encode(e)) == e).
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindTime:
		return v.t.Equal(other.t)
	case KindDuration:
		return v.d == other.d
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, lv := range v.m {
			rv, ok := other.m[k]
			if !ok || !lv.Equal(rv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// wireValue is the tagged-envelope wire form: {"t": "<kind>", "v": <payload>}.
type wireValue struct {
	T ValueKind       `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{T: v.kind}
	var payload any
	switch v.kind {
	case KindNull:
		return json.Marshal(wireValue{T: KindNull})
	case KindBool:
		payload = v.b
	case KindInt:
		payload = v.i
	case KindFloat:
		payload = v.f
	case KindString:
		payload = v.s
	case KindTime:
		payload = v.t.UTC().Format(time.RFC3339Nano)
	case KindDuration:
		payload = int64(v.d)
	case KindList:
		payload = v.list
	case KindMap:
		payload = v.m
	default:
		return nil, fmt.Errorf("entries: value has unknown kind %q", v.kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("entries: marshal value payload: %w", err)
	}
	w.V = raw
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("entries: unmarshal value envelope: %w", err)
	}
	v.kind = w.T
	switch w.T {
	case KindNull:
		return nil
	case KindBool:
		return json.Unmarshal(w.V, &v.b)
	case KindInt:
		return json.Unmarshal(w.V, &v.i)
	case KindFloat:
		return json.Unmarshal(w.V, &v.f)
	case KindString:
		return json.Unmarshal(w.V, &v.s)
	case KindTime:
		var s string
		if err := json.Unmarshal(w.V, &s); err != nil {
			return fmt.Errorf("entries: unmarshal time value: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("entries: parse time value: %w", err)
		}
		v.t = t.UTC()
		return nil
	case KindDuration:
		var ns int64
		if err := json.Unmarshal(w.V, &ns); err != nil {
			return fmt.Errorf("entries: unmarshal duration value: %w", err)
		}
		v.d = time.Duration(ns)
		return nil
	case KindList:
		return json.Unmarshal(w.V, &v.list)
	case KindMap:
		return json.Unmarshal(w.V, &v.m)
	default:
		return fmt.Errorf("entries: unknown value kind %q", w.T)
	}
}
