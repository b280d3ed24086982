package handlers

import (
	"errors"
	"net/http"
	"time"

	dom "taskmaster/internal/domain"
	"taskmaster/internal/dto"
	"taskmaster/internal/service"
	"taskmaster/internal/view"

	"github.com/gin-gonic/gin"
)

// PersistWarningHeader is set when a change was applied but not saved.
const PersistWarningHeader = "X-Persist-Warning"

type TaskHandler struct {
	store *service.TaskStore
	loc   *time.Location
	now   func() time.Time
}

// NewTaskHandler returns a handler reading wall-clock due dates in loc.
func NewTaskHandler(store *service.TaskStore, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.Local
	}
	return &TaskHandler{store: store, loc: loc, now: time.Now}
}

// List godoc
// @Summary      List tasks in display order
// @Description  Incomplete tasks first, then completed; newest first within each group.
// @Tags         tasks
// @Produce      json
// @Success      200  {object}  dto.ListTasksResponse
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.View(h.now()))
}

// Overdue godoc
// @Summary      List overdue tasks
// @Tags         tasks
// @Produce      json
// @Success      200  {object}  dto.OverdueTasksResponse
// @Router       /tasks/overdue [get]
func (h *TaskHandler) Overdue(c *gin.Context) {
	c.JSON(http.StatusOK, dto.OverdueTasksResponse{Items: h.store.View(h.now()).Overdue()})
}

// Create godoc
// @Summary      Add a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTaskRequest  true  "Task"
// @Success      201   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	due, err := req.DueDate.Parse(h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, outcome, err := h.store.Add(c.Request.Context(), req.Title, req.Description, due)
	if !h.checkErr(c, err) || !h.checkOutcome(c, outcome) {
		return
	}
	c.JSON(http.StatusCreated, h.toResponse(t))
}

// GetByID godoc
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	t, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, h.toResponse(t))
}

// Draft godoc
// @Summary      Editing draft for a task
// @Description  Form values to seed an edit: due date as local YYYY-MM-DDThh:mm.
// @Tags         tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.DraftResponse
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{id}/draft [get]
func (h *TaskHandler) Draft(c *gin.Context) {
	t, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, view.NewDraft(t, h.loc))
}

// Replace godoc
// @Summary      Replace a task
// @Description  Whole-record replace. createdAt is always kept from the stored record.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "Task ID"
// @Param        body  body      dto.ReplaceTaskRequest  true  "Task"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Replace(c *gin.Context) {
	id := c.Param("id")
	var req dto.ReplaceTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ID != "" && req.ID != id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id does not match path"})
		return
	}
	due, err := req.DueDate.Parse(h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.requireReady(c) {
		return
	}
	existing, ok := h.store.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	createdAt := existing.CreatedAt
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	t, outcome, err := h.store.Replace(c.Request.Context(), dom.Task{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     due,
		Completed:   req.Completed,
		CreatedAt:   createdAt,
	})
	if !h.checkErr(c, err) || !h.checkOutcome(c, outcome) {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(t))
}

// Edit godoc
// @Summary      Save an editing draft
// @Description  Applies form text (title, description, dueDate) to the task. Empty description or dueDate clears it.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Task ID"
// @Param        body  body      dto.EditTaskRequest  true  "Draft"
// @Success      200   {object}  dto.TaskResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Edit(c *gin.Context) {
	var req dto.EditTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.requireReady(c) {
		return
	}
	existing, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	edited, ok, err := req.Draft().Apply(existing, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
		return
	}

	t, outcome, err := h.store.Replace(c.Request.Context(), edited)
	if !h.checkErr(c, err) || !h.checkOutcome(c, outcome) {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(t))
}

// Toggle godoc
// @Summary      Toggle completion
// @Tags         tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  dto.TaskResponse
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /tasks/{id}/toggle [post]
func (h *TaskHandler) Toggle(c *gin.Context) {
	t, outcome, err := h.store.Toggle(c.Request.Context(), c.Param("id"))
	if !h.checkErr(c, err) || !h.checkOutcome(c, outcome) {
		return
	}
	c.JSON(http.StatusOK, h.toResponse(t))
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Param        id   path  string  true  "Task ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	outcome, err := h.store.Remove(c.Request.Context(), c.Param("id"))
	if !h.checkErr(c, err) || !h.checkOutcome(c, outcome) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCompleted godoc
// @Summary      Remove all completed tasks
// @Tags         tasks
// @Produce      json
// @Success      200  {object}  dto.ClearCompletedResponse
// @Failure      503  {object}  map[string]string
// @Router       /tasks/completed [delete]
func (h *TaskHandler) ClearCompleted(c *gin.Context) {
	removed, err := h.store.ClearCompleted(c.Request.Context())
	if !h.checkErr(c, err) {
		return
	}
	c.JSON(http.StatusOK, dto.ClearCompletedResponse{Removed: removed})
}

// checkErr writes the error response and reports whether to continue.
// A persist failure still renders the applied result, with a warning header.
func (h *TaskHandler) checkErr(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, service.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tasks are still loading"})
		return false
	case errors.Is(err, service.ErrPersist):
		c.Header(PersistWarningHeader, "changes may not be saved")
		return true
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}
}

// requireReady answers 503 for edits that read the stored record before hydration.
func (h *TaskHandler) requireReady(c *gin.Context) bool {
	if h.store.Ready() {
		return true
	}
	return h.checkErr(c, service.ErrNotReady)
}

func (h *TaskHandler) checkOutcome(c *gin.Context, outcome service.Outcome) bool {
	switch outcome {
	case service.Applied:
		return true
	case service.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
	}
	return false
}

func (h *TaskHandler) toResponse(t dom.Task) dto.TaskResponse {
	return dto.TaskResponse{Task: t, Overdue: t.Overdue(h.now())}
}
