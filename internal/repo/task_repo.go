package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dom "taskmaster/internal/domain"
)

// ErrDecode means the slot holds a value that is not a valid task collection.
var ErrDecode = errors.New("stored tasks cannot be decoded")

// DefaultKey is the slot name used when none is configured.
const DefaultKey = "tasks"

// TaskRepo mirrors the whole task collection to durable storage.
type TaskRepo interface {
	Load(ctx context.Context) ([]dom.Task, error)
	Save(ctx context.Context, tasks []dom.Task) error
}

// SlotTaskRepo stores the collection as a JSON array under one slot key.
type SlotTaskRepo struct {
	slot Slot
	key  string
}

func NewSlotTaskRepo(slot Slot, key string) *SlotTaskRepo {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &SlotTaskRepo{slot: slot, key: key}
}

// Load returns an empty collection when the slot was never written.
func (r *SlotTaskRepo) Load(ctx context.Context) ([]dom.Task, error) {
	b, err := r.slot.Get(ctx, r.key)
	if errors.Is(err, ErrSlotEmpty) {
		return []dom.Task{}, nil
	}
	if err != nil {
		return nil, err
	}

	var tasks []dom.Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if tasks == nil {
		// "null" is accepted as an empty collection.
		tasks = []dom.Task{}
	}
	if err := validate(tasks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return tasks, nil
}

// Save overwrites the slot with the full collection.
func (r *SlotTaskRepo) Save(ctx context.Context, tasks []dom.Task) error {
	if tasks == nil {
		tasks = []dom.Task{}
	}
	b, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return r.slot.Set(ctx, r.key, b)
}

func validate(tasks []dom.Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("task %d: missing id", i)
		}
		if strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("task %s: empty title", t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("task %s: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
