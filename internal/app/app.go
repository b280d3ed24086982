package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"taskmaster/internal/config"
	"taskmaster/internal/handlers"
	"taskmaster/internal/logger"
	"taskmaster/internal/repo"
	"taskmaster/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type App struct {
	cfg    config.Config
	log    *logger.Logger
	slot   repo.Slot
	store  *service.TaskStore
	router *gin.Engine
}

func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	store, slot, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, slot: slot, store: store}
	a.router = newRouter(cfg, log, store, loc)
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Store() *service.TaskStore {
	return a.store
}

// Close releases the storage slot.
func (a *App) Close() error {
	if a.slot == nil {
		return nil
	}
	a.log.Info("closing storage", "driver", a.cfg.Storage.Driver)
	err := a.slot.Close()
	a.slot = nil
	return err
}

// OpenStore opens the configured slot and hydrates a task store over it.
// The caller owns the returned slot and must Close it.
func OpenStore(ctx context.Context, cfg config.Config, log *logger.Logger) (*service.TaskStore, repo.Slot, error) {
	slot, err := OpenSlot(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info("storage opened", "driver", cfg.Storage.Driver, "key", cfg.Storage.Key)

	store := service.NewTaskStore(repo.NewSlotTaskRepo(slot, cfg.Storage.Key), log)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Hydrate(hctx); err != nil {
		_ = slot.Close()
		return nil, nil, err
	}
	return store, slot, nil
}

// OpenSlot connects the durable slot selected by STORAGE_DRIVER.
func OpenSlot(cfg config.Config) (repo.Slot, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return repo.NewMemorySlot(), nil
	case config.DriverFile:
		return repo.NewFileSlot(filepath.Clean(cfg.Storage.Dir))
	case config.DriverSQLite:
		return repo.OpenSQLiteSlot(cfg.Storage.SQLitePath)
	case config.DriverRedis:
		rdb, err := repo.DialRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout.Duration())
		if err != nil {
			return nil, err
		}
		return repo.NewRedisSlot(rdb), nil
	case config.DriverPostgres:
		if err := repo.RunMigrations(cfg.PG.DSN); err != nil {
			return nil, err
		}
		pool, err := repo.DialPostgres(cfg.PG.DSN)
		if err != nil {
			return nil, err
		}
		return repo.NewPGSlot(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newRouter(cfg config.Config, log *logger.Logger, store *service.TaskStore, loc *time.Location) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogging(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Type", requestIDHeader, handlers.PersistWarningHeader},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, cfg, store, loc)
	return r
}
