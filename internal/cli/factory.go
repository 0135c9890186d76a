package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/llm"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/retrieval"
	"github.com/aretw0/arbor/pkg/adapters/solver"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
)

// Storage is the checkpoint store selected by configuration, with its lock.
type Storage struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker

	closers []func() error
}

// Close releases connections opened for the store.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// OpenStorage builds the configured store wrapped in its at-rest middleware.
// Redaction runs before encryption, so sealed checkpoints never hold masked-out values.
func OpenStorage(cfg config.Config) (*Storage, error) {
	s := &Storage{}

	switch cfg.Store.Kind {
	case config.StoreMemory:
		s.Store = memory.NewStore()
	case config.StoreFile:
		s.Store = file.New(cfg.Store.Path)
	case config.StoreSQLite:
		path := cfg.Store.Path
		if path == "" {
			path = filepath.Join(".arbor", "sessions.db")
		}
		db, err := OpenDB(path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		s.Store = sqlite.NewStore(db)
	case config.StoreRedis:
		rc := cfg.Store.Redis
		client := backend.NewClient(&backend.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		s.closers = append(s.closers, client.Close)

		opts := []redis.Option{}
		if rc.Prefix != "" {
			opts = append(opts, redis.WithPrefix(rc.Prefix))
		}
		if rc.TTL > 0 {
			opts = append(opts, redis.WithTTL(rc.TTL))
		}
		s.Store = redis.NewFromClient(client, opts...)
		s.Locker = redis.NewLocker(client, rc.Prefix)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	var mws []middleware.Middleware
	if len(cfg.Store.RedactPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Store.RedactPatterns))
	}
	if cfg.Store.EncryptionKey != "" {
		active, fallback, err := cfg.EncryptionKeys()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	s.Store = middleware.Chain(s.Store, mws...)
	return s, nil
}

// App bundles an engine with the resources it owns.
type App struct {
	Engine  *arbor.Engine
	Storage *Storage
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases the store and the retrieval index.
func (a *App) Close() error {
	errs := []error{a.Storage.Close()}
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Build constructs the engine described by cfg. Extra hooks run after the logging
// and metrics hooks.
func Build(cfg config.Config, logger *slog.Logger, extra ...domain.LifecycleHooks) (*App, error) {
	storage, err := OpenStorage(cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Storage: storage, Logger: logger}

	model, err := llm.NewModel(llm.ModelConfig{
		Model:   cfg.Model.Model,
		APIKey:  config.Secret(cfg.Model.APIKeyEnv),
		BaseURL: cfg.Model.BaseURL,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	reasoner := llm.New(model,
		llm.WithLogger(logger),
		llm.WithTemperature(cfg.Model.Temperature),
	)

	retriever, err := app.retriever(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	hooks := observability.LogHooks(logger)
	if cfg.Metrics.Enabled {
		m, err := observability.NewMetrics(nil)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Metrics = m
		hooks = hooks.Merge(m.Hooks())
	}
	for _, h := range extra {
		hooks = hooks.Merge(h)
	}

	opts := []arbor.Option{
		arbor.WithPlanner(reasoner),
		arbor.WithReasoner(reasoner),
		arbor.WithRetriever(retriever),
		arbor.WithSolver(solver.New(cfg.Solver.BaseURL,
			solver.WithAPIKey(config.Secret(cfg.Solver.APIKeyEnv)),
			solver.WithPollInterval(cfg.Solver.PollInterval),
			solver.WithTimeout(cfg.Solver.Timeout),
		)),
		arbor.WithStore(storage.Store),
		arbor.WithLifecycleHooks(hooks),
		arbor.WithLogger(logger),
		arbor.WithRetryPolicy(arbor.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		arbor.WithSynthesisAttempts(cfg.SynthesisAttempts),
	}
	if storage.Locker != nil {
		opts = append(opts, arbor.WithLocker(storage.Locker))
	}

	eng, err := arbor.New(opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Engine = eng
	return app, nil
}

func (a *App) retriever(cfg config.Config) (ports.Retriever, error) {
	switch cfg.Retrieval.Kind {
	case config.RetrievalSQLite:
		db, err := OpenDB(cfg.Retrieval.IndexPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return sqlite.NewIndex(db, sqlite.WithLimit(cfg.Retrieval.Limit)), nil
	case config.RetrievalHTTP:
		return retrieval.New(cfg.Retrieval.BaseURL,
			retrieval.WithAPIKey(config.Secret(cfg.Retrieval.APIKeyEnv)),
			retrieval.WithHTTPClient(&http.Client{Timeout: cfg.Retrieval.Timeout}),
		), nil
	default:
		return nil, fmt.Errorf("unknown retrieval kind %q", cfg.Retrieval.Kind)
	}
}

// OpenDB opens a SQLite database, creating its parent directory.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return sqlite.Open(path)
}
