package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Task is the only entity: a to-do item.
// Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	DueDate     *Timestamp `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`

	// CreatedAt is milliseconds since epoch. Only used for ordering.
	CreatedAt int64 `json:"createdAt"`
}

// Overdue reports whether the task has a due date in the past and is still open.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Completed {
		return false
	}
	return t.DueDate.Time().Before(now)
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.Description != nil {
		d := *t.Description
		out.Description = &d
	}
	if t.DueDate != nil {
		ts := *t.DueDate
		out.DueDate = &ts
	}
	return out
}

// Timestamp is milliseconds since epoch, encoded in JSON as a string of digits.
type Timestamp int64

// TimestampOf converts t to a Timestamp with millisecond precision.
func TimestampOf(t time.Time) Timestamp { return Timestamp(t.UnixMilli()) }

// ParseTimestamp parses a decimal millisecond value.
func ParseTimestamp(s string) (Timestamp, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return Timestamp(n), nil
}

func (ts Timestamp) Time() time.Time { return time.UnixMilli(int64(ts)) }

func (ts Timestamp) String() string { return strconv.FormatInt(int64(ts), 10) }

// Ptr returns a pointer to a copy of ts.
func (ts Timestamp) Ptr() *Timestamp { return &ts }

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON accepts "1700000000000" as well as a bare number.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseTimestamp(s)
		if err != nil {
			return err
		}
		*ts = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*ts = Timestamp(n)
	return nil
}
