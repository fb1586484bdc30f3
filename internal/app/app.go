// Package app wires the scoring engine from service configuration. The
// daemon and the CLI share it so both score users identically.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/socialweight/socialweight/internal/archive"
	"github.com/socialweight/socialweight/internal/collect"
	"github.com/socialweight/socialweight/internal/engine"
	"github.com/socialweight/socialweight/internal/platform"
	"github.com/socialweight/socialweight/internal/store"
	"github.com/socialweight/socialweight/pkg/config"
	"github.com/socialweight/socialweight/pkg/scoring"
)

// App holds the wired engine and the resources it owns.
type App struct {
	DB      *sql.DB
	Source  store.Source
	Config  scoring.Provider
	Cache   store.ScoreCache
	Archive *archive.Transitions
	Engine  *engine.Cached

	closers []func() error
}

// Open connects to Postgres, applies migrations when enabled and wires the
// engine over it.
func Open(ctx context.Context, cfg platform.AppConfig, log zerolog.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := platform.AutoMigrate(db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("migrations applied")
	}

	a, err := New(ctx, cfg, store.NewPostgres(db), log)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	return a, nil
}

// New wires the engine over src.
func New(ctx context.Context, cfg platform.AppConfig, src store.Source, log zerolog.Logger) (*App, error) {
	a := &App{Source: src}

	var fallback scoring.Provider
	if cfg.Scoring.WeightsFile != "" {
		fp, err := config.NewFileProvider(cfg.Scoring.WeightsFile)
		if err != nil {
			return nil, fmt.Errorf("load weights file: %w", err)
		}
		fallback = fp
	}
	a.Config = store.NewConfigStore(src, fallback)

	cache, err := a.newCache(cfg, src)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cache

	blobs, err := archive.Open(ctx, archive.Config{
		Backend:   cfg.Archive.Backend,
		LocalDir:  cfg.Archive.LocalDir,
		Bucket:    cfg.Archive.Bucket,
		Region:    cfg.Archive.Region,
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	var archiver engine.Archiver
	if blobs != nil {
		a.Archive = archive.NewTransitions(blobs)
		archiver = a.Archive
	}

	users := engine.NewUserCountMemo(cfg.Scoring.UserCountTTL, engine.CountUsers(src))
	runner := collect.NewRunner(log, cfg.Scoring.CollectorTimeout, collect.Defaults(src, cache, cfg.Scoring.ContentWindow)...)
	pipeline := engine.NewPipeline(src, a.Config, runner, users, log)
	a.Engine = engine.NewCached(pipeline, cache, a.Config, src, archiver, log)
	return a, nil
}

func (a *App) newCache(cfg platform.AppConfig, src store.Source) (store.ScoreCache, error) {
	switch cfg.CacheBackend {
	case platform.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, client.Close)
		return store.NewRedisScoreCache(client, 0), nil
	case platform.CacheBackendMemory:
		return store.NewMemoryScoreCache(0), nil
	case "", platform.CacheBackendPostgres:
		return store.NewSourceScoreCache(src), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Ping checks the database, when there is one.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

// Close releases everything the app opened, newest first.
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
