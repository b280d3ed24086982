package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dom "taskmaster/internal/domain"
	"taskmaster/internal/dto"
	"taskmaster/internal/repo"
	"taskmaster/internal/service"
	"taskmaster/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// unsavableSlot loads as empty and fails every save.
type unsavableSlot struct{}

func (unsavableSlot) Get(context.Context, string) ([]byte, error) { return nil, repo.ErrSlotEmpty }
func (unsavableSlot) Set(context.Context, string, []byte) error   { return errors.New("disk full") }
func (unsavableSlot) Close() error                                { return nil }

func newRouter(t *testing.T, slot repo.Slot, hydrate bool) (*gin.Engine, *service.TaskStore) {
	t.Helper()
	store := service.NewTaskStore(repo.NewSlotTaskRepo(slot, repo.DefaultKey), nil)
	if hydrate {
		require.NoError(t, store.Hydrate(context.Background()))
	}
	h := NewTaskHandler(store, time.UTC)
	h.now = func() time.Time { return testNow }

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/tasks", h.List)
	api.POST("/tasks", h.Create)
	api.GET("/tasks/overdue", h.Overdue)
	api.DELETE("/tasks/completed", h.ClearCompleted)
	api.GET("/tasks/:id", h.GetByID)
	api.GET("/tasks/:id/draft", h.Draft)
	api.PUT("/tasks/:id", h.Replace)
	api.PATCH("/tasks/:id", h.Edit)
	api.DELETE("/tasks/:id", h.Delete)
	api.POST("/tasks/:id/toggle", h.Toggle)
	return r, store
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func create(t *testing.T, r http.Handler, body map[string]any) dto.TaskResponse {
	t.Helper()
	w := do(r, http.MethodPost, "/api/v1/tasks", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.TaskResponse](t, w)
}

func TestCreate(t *testing.T) {
	r, store := newRouter(t, repo.NewMemorySlot(), true)

	got := create(t, r, map[string]any{
		"title":       "  Buy milk ",
		"description": "2 liters",
		"dueDate":     "2026-03-09T08:00",
	})
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, "2 liters", *got.Description)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC).UnixMilli(), int64(*got.DueDate))
	assert.True(t, got.Overdue)
	assert.False(t, got.Completed)

	assert.Len(t, store.Tasks(), 1)
}

func TestCreate_DueDateForms(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), true)
	ms := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	for name, due := range map[string]any{
		"number":   ms,
		"digits":   "1775001600000",
		"date":     "2026-04-01",
		"rfc3339":  "2026-04-01T00:00:00Z",
		"datetime": "2026-04-01T00:00",
	} {
		t.Run(name, func(t *testing.T) {
			got := create(t, r, map[string]any{"title": "x", "dueDate": due})
			require.NotNil(t, got.DueDate)
			assert.Equal(t, ms, int64(*got.DueDate))
		})
	}

	t.Run("null", func(t *testing.T) {
		got := create(t, r, map[string]any{"title": "x", "dueDate": nil})
		assert.Nil(t, got.DueDate)
	})
}

func TestCreate_Invalid(t *testing.T) {
	r, store := newRouter(t, repo.NewMemorySlot(), true)

	w := do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "title must not be empty")

	w = do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "x", "dueDate": "soon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "x", "dueDate": 1.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "x", "dueDate": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "must not be negative")

	assert.Empty(t, store.Tasks())
}

func TestList_Order(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), true)

	a := create(t, r, map[string]any{"title": "A"})
	time.Sleep(2 * time.Millisecond)
	b := create(t, r, map[string]any{"title": "B"})
	time.Sleep(2 * time.Millisecond)
	c := create(t, r, map[string]any{"title": "C"})

	w := do(r, http.MethodPost, "/api/v1/tasks/"+b.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[dto.TaskResponse](t, w).Completed)

	w = do(r, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[dto.ListTasksResponse](t, w)
	require.Len(t, v.Items, 3)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{v.Items[0].ID, v.Items[1].ID, v.Items[2].ID})
	assert.Equal(t, 2, v.Active)
	assert.Equal(t, 1, v.Completed)
	assert.True(t, v.HasCompleted)
}

func TestGetByIDAndDraft(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), true)
	task := create(t, r, map[string]any{"title": "Plan", "description": "Q3", "dueDate": "2026-05-06T07:08"})

	w := do(r, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, task.ID, decode[dto.TaskResponse](t, w).ID)

	w = do(r, http.MethodGet, "/api/v1/tasks/"+task.ID+"/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view.Draft{Title: "Plan", Description: "Q3", DueDate: "2026-05-06T07:08"}, decode[dto.DraftResponse](t, w))

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/tasks/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/v1/tasks/nope/draft", nil).Code)
}

func TestReplace_KeepsCreatedAt(t *testing.T) {
	r, store := newRouter(t, repo.NewMemorySlot(), true)
	task := create(t, r, map[string]any{"title": "Old"})

	w := do(r, http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]any{
		"id":        task.ID,
		"title":     "New",
		"completed": true,
		"createdAt": 1,
		"dueDate":   "1775001600000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[dto.TaskResponse](t, w)
	assert.Equal(t, "New", got.Title)
	assert.True(t, got.Completed)
	assert.Equal(t, task.CreatedAt, got.CreatedAt)

	stored, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, task.CreatedAt, stored.CreatedAt)
	assert.Nil(t, stored.Description)
}

func TestReplace_Errors(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), true)
	task := create(t, r, map[string]any{"title": "Old"})

	w := do(r, http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]any{"id": "other", "title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/tasks/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/v1/tasks/"+task.ID, map[string]any{"title": " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEdit(t *testing.T) {
	r, store := newRouter(t, repo.NewMemorySlot(), true)
	task := create(t, r, map[string]any{"title": "Old", "description": "keep?", "dueDate": "2026-01-01"})

	w := do(r, http.MethodPatch, "/api/v1/tasks/"+task.ID, map[string]any{
		"title":       " New ",
		"description": "",
		"dueDate":     "",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[dto.TaskResponse](t, w)
	assert.Equal(t, "New", got.Title)
	assert.Nil(t, got.Description)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, task.CreatedAt, got.CreatedAt)

	w = do(r, http.MethodPatch, "/api/v1/tasks/"+task.ID, map[string]any{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	stored, _ := store.Get(task.ID)
	assert.Equal(t, "New", stored.Title)

	w = do(r, http.MethodPatch, "/api/v1/tasks/"+task.ID, map[string]any{"title": "x", "dueDate": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, "/api/v1/tasks/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteAndClearCompleted(t *testing.T) {
	r, store := newRouter(t, repo.NewMemorySlot(), true)
	a := create(t, r, map[string]any{"title": "A"})
	b := create(t, r, map[string]any{"title": "B"})
	c := create(t, r, map[string]any{"title": "C"})

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/v1/tasks/"+a.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/v1/tasks/"+a.ID, nil).Code)

	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/tasks/"+b.ID+"/toggle", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/v1/tasks/missing/toggle", nil).Code)

	w := do(r, http.MethodDelete, "/api/v1/tasks/completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[dto.ClearCompletedResponse](t, w).Removed)

	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, c.ID, tasks[0].ID)

	w = do(r, http.MethodDelete, "/api/v1/tasks/completed", nil)
	assert.Equal(t, 0, decode[dto.ClearCompletedResponse](t, w).Removed)
}

func TestOverdue(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), true)
	late := create(t, r, map[string]any{"title": "late", "dueDate": "2026-03-01"})
	create(t, r, map[string]any{"title": "future", "dueDate": "2026-04-01"})
	create(t, r, map[string]any{"title": "none"})
	done := create(t, r, map[string]any{"title": "done late", "dueDate": "2026-02-01"})
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/tasks/"+done.ID+"/toggle", nil).Code)

	w := do(r, http.MethodGet, "/api/v1/tasks/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[dto.OverdueTasksResponse](t, w).Items
	require.Len(t, items, 1)
	assert.Equal(t, late.ID, items[0].ID)
}

func TestNotReady(t *testing.T) {
	r, _ := newRouter(t, repo.NewMemorySlot(), false)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/api/v1/tasks", map[string]any{"title": "x"}},
		{http.MethodPut, "/api/v1/tasks/a", map[string]any{"title": "x"}},
		{http.MethodPatch, "/api/v1/tasks/a", map[string]any{"title": "x"}},
		{http.MethodPost, "/api/v1/tasks/a/toggle", nil},
		{http.MethodDelete, "/api/v1/tasks/a", nil},
		{http.MethodDelete, "/api/v1/tasks/completed", nil},
	} {
		w := do(r, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestPersistFailureStillApplies(t *testing.T) {
	r, store := newRouter(t, unsavableSlot{}, true)

	w := do(r, http.MethodPost, "/api/v1/tasks", map[string]any{"title": "x"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get(PersistWarningHeader))
	got := decode[dto.TaskResponse](t, w)

	w = do(r, http.MethodPost, "/api/v1/tasks/"+got.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(PersistWarningHeader))

	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].Completed)
}

func TestPersistedAcrossStores(t *testing.T) {
	slot := repo.NewMemorySlot()
	r, _ := newRouter(t, slot, true)
	task := create(t, r, map[string]any{"title": "survives", "dueDate": "2026-03-01"})

	_, store := newRouter(t, slot, true)
	got, ok := store.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, "survives", got.Title)
	assert.Equal(t, dom.Timestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), *got.DueDate)
}
