package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	dom "taskmaster/internal/domain"
	"taskmaster/internal/logger"
	"taskmaster/internal/repo"
	"taskmaster/internal/utils"
	"taskmaster/internal/view"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotReady is returned by mutations attempted before Hydrate succeeded.
	ErrNotReady = errors.New("task store is not hydrated yet")
	// ErrPersist means the change was applied in memory but could not be saved.
	ErrPersist = errors.New("task change was not persisted")
)

// Outcome says what a mutation did to the collection.
type Outcome int

const (
	Applied Outcome = iota
	NotFound
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case NotFound:
		return "not_found"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// TaskStore owns the authoritative task collection and is the only writer
// of its repo. The collection is kept newest-inserted first.
type TaskStore struct {
	repo repo.TaskRepo
	log  *logger.Logger

	now   func() time.Time
	newID func() string

	sf    singleflight.Group
	mu    sync.Mutex
	ready bool
	tasks []dom.Task
}

func NewTaskStore(r repo.TaskRepo, log *logger.Logger) *TaskStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &TaskStore{
		repo:  r,
		log:   log.With("component", "task_store"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Hydrate loads the collection once. A stored value that cannot be decoded
// is logged and replaced by an empty collection; any other load error leaves
// the store uninitialized so nothing overwrites data that may still be good.
func (s *TaskStore) Hydrate(ctx context.Context) error {
	_, err, _ := s.sf.Do("hydrate", func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ready {
			return nil, nil
		}

		tasks, err := s.repo.Load(ctx)
		switch {
		case errors.Is(err, repo.ErrDecode):
			s.log.Warn("stored tasks unreadable, starting empty", "error", err)
			tasks = []dom.Task{}
		case err != nil:
			return nil, fmt.Errorf("hydrate: %w", err)
		}

		s.tasks = tasks
		s.ready = true
		s.log.Info("hydrated", "tasks", len(tasks))
		return nil, nil
	})
	return err
}

// Ready reports whether hydration has completed.
func (s *TaskStore) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Tasks returns a copy of the collection in insertion order.
func (s *TaskStore) Tasks() []dom.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.tasks)
}

// Get returns the task with id.
func (s *TaskStore) Get(id string) (dom.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return dom.Task{}, false
}

// View derives the display projection of the current collection.
func (s *TaskStore) View(now time.Time) view.View {
	return view.Build(s.Tasks(), now)
}

// Add creates a task at the front of the collection. A blank title is Rejected.
func (s *TaskStore) Add(ctx context.Context, title string, description *string, dueDate *dom.Timestamp) (dom.Task, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return dom.Task{}, Rejected, ErrNotReady
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return dom.Task{}, Rejected, nil
	}

	t := dom.Task{
		ID:          s.newID(),
		Title:       title,
		Description: utils.OptionalTextPtr(description),
		Completed:   false,
		CreatedAt:   s.now().UnixMilli(),
	}
	if dueDate != nil {
		t.DueDate = dueDate.Ptr()
	}

	s.tasks = append([]dom.Task{t}, s.tasks...)
	return t.Clone(), Applied, s.persistLocked(ctx, "add")
}

// Toggle flips the completed flag of the task with id.
func (s *TaskStore) Toggle(ctx context.Context, id string) (dom.Task, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return dom.Task{}, Rejected, ErrNotReady
	}

	i := s.indexLocked(id)
	if i < 0 {
		return dom.Task{}, NotFound, nil
	}
	t := s.tasks[i].Clone()
	t.Completed = !t.Completed
	s.tasks[i] = t
	return t.Clone(), Applied, s.persistLocked(ctx, "toggle")
}

// Remove deletes the task with id.
func (s *TaskStore) Remove(ctx context.Context, id string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return Rejected, ErrNotReady
	}

	i := s.indexLocked(id)
	if i < 0 {
		return NotFound, nil
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	return Applied, s.persistLocked(ctx, "remove")
}

// Replace swaps the whole record with the same id. The original createdAt is
// kept whatever the caller sent; a blank title is Rejected.
func (s *TaskStore) Replace(ctx context.Context, updated dom.Task) (dom.Task, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return dom.Task{}, Rejected, ErrNotReady
	}

	i := s.indexLocked(updated.ID)
	if i < 0 {
		return dom.Task{}, NotFound, nil
	}

	t := updated.Clone()
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return dom.Task{}, Rejected, nil
	}
	t.Description = utils.OptionalTextPtr(t.Description)
	if t.CreatedAt != s.tasks[i].CreatedAt {
		s.log.Warn("replace tried to change createdAt, keeping original",
			"id", t.ID, "createdAt", s.tasks[i].CreatedAt, "got", t.CreatedAt)
		t.CreatedAt = s.tasks[i].CreatedAt
	}

	s.tasks[i] = t
	return t.Clone(), Applied, s.persistLocked(ctx, "replace")
}

// ClearCompleted removes every completed task in one step and saves once.
func (s *TaskStore) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0, ErrNotReady
	}

	kept := make([]dom.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(s.tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.tasks = kept
	return removed, s.persistLocked(ctx, "clear_completed")
}

func (s *TaskStore) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// persistLocked saves the collection, retrying once. The in-memory change
// stays applied when both attempts fail.
func (s *TaskStore) persistLocked(ctx context.Context, op string) error {
	snapshot := cloneAll(s.tasks)
	err := s.repo.Save(ctx, snapshot)
	if err == nil {
		return nil
	}
	s.log.Debug("save failed, retrying", "op", op, "error", err)
	if err = s.repo.Save(ctx, snapshot); err == nil {
		return nil
	}
	s.log.Warn("changes are not persisted", "op", op, "tasks", len(snapshot), "error", err)
	return fmt.Errorf("%w: %w", ErrPersist, err)
}

func cloneAll(tasks []dom.Task) []dom.Task {
	out := make([]dom.Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
