// Package view derives what the presentation layer shows from the task
// collection. Nothing here is stored or mutates its input.
package view

import (
	"sort"
	"time"

	dom "taskmaster/internal/domain"
)

// Item is one row of the list.
type Item struct {
	dom.Task
	Overdue bool `json:"overdue"`
}

// View is the list as displayed: ordered items plus the footer counts.
type View struct {
	Items        []Item `json:"items"`
	Active       int    `json:"active"`
	Completed    int    `json:"completed"`
	HasCompleted bool   `json:"has_completed"`
}

// Sort returns a new slice ordered for display: incomplete tasks first, then
// completed ones, each group newest createdAt first.
func Sort(tasks []dom.Task) []dom.Task {
	out := make([]dom.Task, len(tasks))
	copy(out, tasks)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return !out[i].Completed
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

// ActiveCount is the number of tasks not yet completed ("items left").
func ActiveCount(tasks []dom.Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

// HasCompleted reports whether "clear completed" applies to anything.
func HasCompleted(tasks []dom.Task) bool {
	return ActiveCount(tasks) < len(tasks)
}

// Build derives the full view at instant now.
func Build(tasks []dom.Task, now time.Time) View {
	sorted := Sort(tasks)
	items := make([]Item, len(sorted))
	for i, t := range sorted {
		items[i] = Item{Task: t, Overdue: t.Overdue(now)}
	}
	active := ActiveCount(tasks)
	return View{
		Items:        items,
		Active:       active,
		Completed:    len(tasks) - active,
		HasCompleted: active < len(tasks),
	}
}

// Overdue keeps only the overdue items of v, in display order.
func (v View) Overdue() []Item {
	out := make([]Item, 0)
	for _, it := range v.Items {
		if it.Overdue {
			out = append(out, it)
		}
	}
	return out
}
