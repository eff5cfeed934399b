package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"family-tree-go/internal/config"
	"family-tree-go/internal/db"
	profiledomain "family-tree-go/internal/domain/profile"
	treedomain "family-tree-go/internal/domain/tree"
	badgerprofile "family-tree-go/internal/repository/badger/profile"
	"family-tree-go/internal/repository/inmemory"
	postgresprofile "family-tree-go/internal/repository/postgres/profile"
	redisprofile "family-tree-go/internal/repository/redis/profile"
	"family-tree-go/internal/transport/httpserver"
	"family-tree-go/internal/transport/httpserver/handler"
	"family-tree-go/pkg/logger"
	"gorm.io/gorm"
)

type App struct {
	cfg        config.Config
	log        logger.Logger
	profiles   *profiledomain.Service
	trees      *treedomain.Builder
	httpServer *http.Server
	closers    []func() error
}

func New(ctx context.Context, cfg config.Config, log logger.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	log.Info("app: initializing profile store", "backend", cfg.Store.Backend)
	repo, err := a.openStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.Info("app: initializing profile cache", "backend", cfg.Cache.Backend)
	cache, err := a.openCache(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	index := profiledomain.NewIndex(repo, cache)
	a.profiles = profiledomain.NewService(repo, index, cache, cfg.Cache.TTL)
	a.trees = treedomain.NewBuilder(a.profiles, treedomain.Config{
		MaxDepth:         cfg.Tree.MaxDepth,
		ClimbLimit:       cfg.Tree.ClimbLimit,
		FetchConcurrency: cfg.Tree.FetchConcurrency,
	}, treedomain.LogDiagnostics(log))

	log.Info("app: initializing router")
	handlers := handler.New(a.profiles, a.trees, log)
	router := httpserver.NewRouter(cfg, handlers, log)

	log.Info("app: initializing http server")
	a.httpServer = httpserver.New(cfg, router)

	return a, nil
}

func (a *App) openStore() (profiledomain.Repository, error) {
	switch a.cfg.Store.Backend {
	case config.StoreBackendPostgres:
		gormDB, err := db.NewPostgres(a.cfg.DB, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		if a.cfg.Store.MigrateOnStart {
			if err := db.Migrate(gormDB, a.log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return postgresprofile.NewPostgres(gormDB), nil
	case config.StoreBackendBadger:
		bdb, err := db.NewBadger(a.cfg.Badger, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, bdb.Close)
		return badgerprofile.NewBadger(bdb.DB), nil
	case config.StoreBackendMemory:
		a.log.Warn("app: profiles are kept in memory and lost on exit")
		return inmemory.NewProfileStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", a.cfg.Store.Backend)
	}
}

func (a *App) openCache(ctx context.Context) (profiledomain.Cache, error) {
	switch a.cfg.Cache.Backend {
	case config.CacheBackendNone:
		return profiledomain.NoopCache(), nil
	case config.CacheBackendMemory:
		return inmemory.NewInMemoryProfileCache(), nil
	case config.CacheBackendRedis:
		client, err := db.NewRedis(ctx, a.cfg.Redis, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redisprofile.NewRedisProfileCache(client, a.cfg.Redis.KeyPrefix, a.log.With("component", "profile_cache")), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", a.cfg.Cache.Backend)
	}
}

// Migrate applies the SQL migrations to the configured postgres database.
func Migrate(cfg config.Config, log logger.Logger) error {
	return withPostgres(cfg, log, func(gormDB *gorm.DB) error {
		return db.Migrate(gormDB, log)
	})
}

// PendingMigrations lists migrations not yet applied to the configured
// postgres database.
func PendingMigrations(cfg config.Config, log logger.Logger) ([]string, error) {
	var pending []string
	err := withPostgres(cfg, log, func(gormDB *gorm.DB) error {
		var err error
		pending, err = db.Pending(gormDB)
		return err
	})
	return pending, err
}

func withPostgres(cfg config.Config, log logger.Logger, fn func(*gorm.DB) error) error {
	if cfg.Store.Backend != config.StoreBackendPostgres {
		return fmt.Errorf("migrations only apply to the postgres store, STORE_BACKEND is %q", cfg.Store.Backend)
	}
	gormDB, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	return fn(gormDB)
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Profiles() *profiledomain.Service {
	return a.profiles
}

func (a *App) Trees() *treedomain.Builder {
	return a.trees
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
