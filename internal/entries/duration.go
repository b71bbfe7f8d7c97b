package entries

import (
	"encoding/json"
	"time"
)

// Seconds is a time.Duration that serializes as a seconds-denominated
// number on the wire, rather than encoding/json's default nanosecond
// int64. It marshals as a float64 (not truncated to whole seconds) so a
// sub-second period — spec.md's own S1 test uses period=100ms — survives
// an encode/decode round-trip instead of collapsing to zero and tripping
// Interval.Validate's non-positive-period check on the way back in.
type Seconds time.Duration

func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(s).Seconds())
}

func (s *Seconds) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*s = Seconds(secs * float64(time.Second))
	return nil
}

func (s Seconds) Duration() time.Duration { return time.Duration(s) }
