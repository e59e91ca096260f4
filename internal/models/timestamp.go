package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// sqlTimestampLayout is how SQL CURRENT_TIMESTAMP values are rendered by
// servers that return the column text as is.
const sqlTimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a time.Time that accepts both RFC 3339 and SQL-style
// timestamps when decoding. It always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp parses RFC 3339 or "2006-01-02 15:04:05" (interpreted as UTC).
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(v), nil
	}
	v, err := time.ParseInLocation(sqlTimestampLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("timestamp: unsupported format %q", s)
	}
	return NewTimestamp(v), nil
}
