package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	dom "taskmaster/internal/domain"
	"taskmaster/internal/view"
)

// DueInput keeps the raw dueDate value until the handler knows which
// location wall-clock inputs belong to. Accepts a string, a number of
// milliseconds or null.
type DueInput struct{ raw string }

func (d *DueInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		d.raw = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &d.raw)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("dueDate: %w", err)
		}
		ms, err := n.Int64()
		if err != nil {
			return fmt.Errorf("dueDate: milliseconds must be an integer")
		}
		if ms < 0 {
			return fmt.Errorf("dueDate: milliseconds must not be negative")
		}
		d.raw = n.String()
		return nil
	}
}

// Parse resolves the due date; empty input means no due date.
func (d DueInput) Parse(loc *time.Location) (*dom.Timestamp, error) {
	return view.ParseDue(d.raw, loc)
}

type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required,max=500"`
	Description *string  `json:"description" binding:"omitempty,max=5000"`
	DueDate     DueInput `json:"dueDate" swaggertype:"string" example:"2026-03-04T09:30"`
}

// ReplaceTaskRequest is a whole record. id and createdAt may be omitted;
// when sent, id must match the path and createdAt is ignored if it differs.
type ReplaceTaskRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title" binding:"required,max=500"`
	Description *string  `json:"description" binding:"omitempty,max=5000"`
	DueDate     DueInput `json:"dueDate" swaggertype:"string" example:"1772609400000"`
	Completed   bool     `json:"completed"`
	CreatedAt   *int64   `json:"createdAt"`
}

// EditTaskRequest is an editing draft: every field is the raw form text.
type EditTaskRequest struct {
	Title       string `json:"title" binding:"required,max=500"`
	Description string `json:"description" binding:"max=5000"`
	DueDate     string `json:"dueDate" example:"2026-03-04T09:30"`
}

func (r EditTaskRequest) Draft() view.Draft {
	return view.Draft{Title: r.Title, Description: r.Description, DueDate: r.DueDate}
}

// TaskResponse is one task plus its overdue flag.
type TaskResponse = view.Item

// ListTasksResponse is the derived list view.
type ListTasksResponse = view.View

type OverdueTasksResponse struct {
	Items []TaskResponse `json:"items"`
}

type ClearCompletedResponse struct {
	Removed int `json:"removed"`
}

type DraftResponse = view.Draft
