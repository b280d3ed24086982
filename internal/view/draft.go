package view

import (
	"errors"
	"fmt"
	"strings"
	"time"

	dom "taskmaster/internal/domain"
	"taskmaster/internal/utils"
)

// ErrInvalidDueDate is returned for due date text no layout accepts.
var ErrInvalidDueDate = errors.New("due date: use milliseconds, YYYY-MM-DD, YYYY-MM-DDThh:mm or RFC3339")

// InputLayout is the datetime-local form value layout.
const InputLayout = "2006-01-02T15:04"

const displayLayout = "Jan 2, 15:04"

// Draft is a transient edit buffer. Dropping it is cancelling the edit.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
}

// NewDraft seeds a draft from the stored task, due date rendered in loc.
func NewDraft(t dom.Task, loc *time.Location) Draft {
	d := Draft{Title: t.Title}
	if t.Description != nil {
		d.Description = *t.Description
	}
	if t.DueDate != nil {
		d.DueDate = t.DueDate.Time().In(orLocal(loc)).Format(InputLayout)
	}
	return d
}

// Apply commits the draft onto t. It returns false, leaving t untouched,
// when the title is blank. An empty due date clears it.
func (d Draft) Apply(t dom.Task, loc *time.Location) (dom.Task, bool, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return t, false, nil
	}
	due, err := ParseDue(d.DueDate, loc)
	if err != nil {
		return t, false, err
	}

	out := t.Clone()
	out.Title = title
	out.Description = utils.OptionalText(d.Description)
	out.DueDate = due
	return out, true, nil
}

// ParseDue reads a due date. Empty text means no due date. Accepted:
// milliseconds since epoch, YYYY-MM-DD (start of day in loc),
// YYYY-MM-DDThh:mm[:ss] in loc, RFC3339.
func ParseDue(s string, loc *time.Location) (*dom.Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	loc = orLocal(loc)
	if isDigits(s) {
		ts, err := dom.ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDueDate, err)
		}
		return &ts, nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return dom.TimestampOf(parsed).Ptr(), nil
		}
	}
	for _, layout := range []string{"2006-01-02", InputLayout, "2006-01-02T15:04:05"} {
		if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
			return dom.TimestampOf(parsed).Ptr(), nil
		}
	}
	return nil, ErrInvalidDueDate
}

// FormatDue renders a due date for display, e.g. "Mar 4, 09:30".
func FormatDue(ts *dom.Timestamp, loc *time.Location) string {
	if ts == nil {
		return ""
	}
	return ts.Time().In(orLocal(loc)).Format(displayLayout)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
