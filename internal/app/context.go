package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"launchboard/internal/config"
	"launchboard/internal/db"
	"launchboard/internal/engine"
	"launchboard/internal/migrate"
	"launchboard/internal/persist"
	"launchboard/internal/repo"
)

// App is an opened workspace: the storage backend chosen by config and the
// engine loaded from it.
type App struct {
	Engine *engine.Engine
	Config *config.Config
	KV     repo.KV

	closers []func() error
}

// Open resolves storage for the workspace and loads the engine. A nil cfg
// means launchboard.yml is read if present, defaults otherwise.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *log.Logger) (*App, error) {
	if cfg == nil {
		var err error
		cfg, err = config.LoadOptional(workspace)
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &App{Config: cfg}
	kv, err := a.openKV(ctx, workspace)
	if err != nil {
		return nil, err
	}
	a.KV = kv
	a.Engine = engine.New(ctx, engine.Options{
		Store: persist.Adapter{
			KV:          kv,
			SnapshotKey: cfg.Storage.SnapshotKey,
			LogKey:      cfg.Storage.LogKey,
			Logger:      logger,
		},
		MaxLogEntries: cfg.Activity.MaxEntries,
		Logger:        logger,
		Now:           time.Now,
		Project: engine.ProjectOverride{
			Name:       cfg.Project.Name,
			LaunchDate: cfg.Project.LaunchDate,
		},
	})
	return a, nil
}

func (a *App) openKV(ctx context.Context, workspace string) (repo.KV, error) {
	switch a.Config.Storage.Driver {
	case config.DriverMemory:
		return repo.NewMemory(), nil
	case config.DriverRedis:
		r, err := repo.NewRedis(ctx, a.Config.Storage.RedisAddr, a.Config.Storage.RedisDB, a.Config.Storage.RedisPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, nil
	case config.DriverSQLite, "":
		conn, err := db.Open(db.Config{Workspace: workspace})
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if _, err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		return repo.Repo{DB: conn}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.Config.Storage.Driver)
	}
}

// Close flushes the engine and releases the storage backend.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.Engine != nil {
		firstErr = a.Engine.Close(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
