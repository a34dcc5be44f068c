package ids

import "time"

// Timestamp wraps time.Time, truncated to millisecond resolution, matching
// the event log's epoch-millis storage format.
type Timestamp struct {
	t time.Time
}

// Now returns the current timestamp.
func Now() Timestamp {
	return Timestamp{t: time.Now().UTC().Truncate(time.Millisecond)}
}

// FromEpochSeconds builds a Timestamp from a Unix epoch second count.
func FromEpochSeconds(epochSecs int64) Timestamp {
	return Timestamp{t: time.Unix(epochSecs, 0).UTC()}
}

// FromEpochMillis builds a Timestamp from a Unix epoch millisecond count.
func FromEpochMillis(epochMillis int64) Timestamp {
	return Timestamp{t: time.UnixMilli(epochMillis).UTC()}
}

// FromTime adapts a time.Time, truncating to millisecond resolution.
func FromTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC().Truncate(time.Millisecond)}
}

func (ts Timestamp) AsEpochSeconds() int64 { return ts.t.Unix() }

func (ts Timestamp) AsEpochMillis() int64 { return ts.t.UnixMilli() }

func (ts Timestamp) Time() time.Time { return ts.t }

func (ts Timestamp) Add(d time.Duration) Timestamp {
	return Timestamp{t: ts.t.Add(d)}
}

func (ts Timestamp) Sub(earlier Timestamp) time.Duration {
	return ts.t.Sub(earlier.t)
}

func (ts Timestamp) Before(other Timestamp) bool { return ts.t.Before(other.t) }

func (ts Timestamp) After(other Timestamp) bool { return ts.t.After(other.t) }

func (ts Timestamp) Equal(other Timestamp) bool { return ts.t.Equal(other.t) }

func (ts Timestamp) String() string { return ts.t.Format(time.RFC3339Nano) }

// MarshalJSON encodes the timestamp as an RFC 3339 string.
func (ts Timestamp) MarshalJSON() ([]byte, error) { return ts.t.MarshalJSON() }

// UnmarshalJSON decodes an RFC 3339 string written by MarshalJSON.
func (ts *Timestamp) UnmarshalJSON(data []byte) error { return ts.t.UnmarshalJSON(data) }
