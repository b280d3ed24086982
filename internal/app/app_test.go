package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskmaster/internal/config"
	"taskmaster/internal/logger"
	"taskmaster/internal/repo"
	"taskmaster/internal/service"

	_ "taskmaster/docs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	var cfg config.Config
	cfg.App.Env = "test"
	cfg.App.Version = "1.2.3"
	cfg.App.Timezone = "UTC"
	cfg.Storage.Driver = driver
	cfg.Storage.Key = "tasks"
	cfg.Storage.Dir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "nested", "tasks.db")
	return cfg
}

func TestOpenSlot(t *testing.T) {
	for _, driver := range []string{config.DriverMemory, config.DriverFile, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			slot, err := OpenSlot(testConfig(t, driver))
			require.NoError(t, err)
			t.Cleanup(func() { _ = slot.Close() })

			ctx := context.Background()
			_, err = slot.Get(ctx, "tasks")
			require.ErrorIs(t, err, repo.ErrSlotEmpty)
			require.NoError(t, slot.Set(ctx, "tasks", []byte("[]")))
			got, err := slot.Get(ctx, "tasks")
			require.NoError(t, err)
			assert.Equal(t, "[]", string(got))
		})
	}

	_, err := OpenSlot(testConfig(t, "floppy"))
	require.Error(t, err)
}

func TestOpenStore_SharesSlotAcrossRestarts(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	ctx := context.Background()

	store, slot, err := OpenStore(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	require.True(t, store.Ready())
	_, _, err = store.Add(ctx, "persist me", nil, nil)
	require.NoError(t, err)
	require.NoError(t, slot.Close())

	store, slot, err = OpenStore(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer slot.Close()
	tasks := store.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "persist me", tasks[0].Title)
}

func TestNew_BadTimezone(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	cfg.App.Timezone = "Mars/Olympus_Mons"
	_, err := New(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(context.Background(), testConfig(t, config.DriverMemory), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t, config.DriverSQLite), logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.Nil(t, a.slot)
	require.NoError(t, a.Close())
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes_Meta(t *testing.T) {
	a := newTestApp(t)
	r := a.Router()

	w := get(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"env":"test"}`, w.Body.String())

	w = get(r, "/ready")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ready":true}`, w.Body.String())

	w = get(r, "/version")
	assert.JSONEq(t, `{"version":"1.2.3"}`, w.Body.String())

	w = get(r, "/")
	var root map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.Equal(t, "/api/v1", root["api"])

	w = get(r, "/swagger-doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/tasks/{id}/toggle"`)

	w = get(r, "/swagger")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestRoutes_RequestIDAndCORS(t *testing.T) {
	r := newTestApp(t).Router()

	w := get(r, "/api/v1/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set(requestIDHeader, "abc")
	req.Header.Set("Origin", "http://frontend.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(requestIDHeader))
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Expose-Headers")), "x-persist-warning")
}

func TestRoutes_TaskLifecycle(t *testing.T) {
	r := newTestApp(t).Router()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{"title":"ship it"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = get(r, "/api/v1/tasks/"+created.ID)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReady_BeforeHydrate(t *testing.T) {
	cfg := testConfig(t, config.DriverMemory)
	store := service.NewTaskStore(repo.NewSlotTaskRepo(repo.NewMemorySlot(), cfg.Storage.Key), nil)

	r := gin.New()
	Setup(r, cfg, store, time.UTC)

	assert.Equal(t, http.StatusServiceUnavailable, get(r, "/ready").Code)

	require.NoError(t, store.Hydrate(context.Background()))
	assert.Equal(t, http.StatusOK, get(r, "/ready").Code)
}
