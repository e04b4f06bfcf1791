package wizards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/aretw0/wizards/internal/config"
	"github.com/aretw0/wizards/internal/logging"
	"github.com/aretw0/wizards/pkg/adapters/file"
	loamAdapter "github.com/aretw0/wizards/pkg/adapters/loam"
	"github.com/aretw0/wizards/pkg/adapters/memory"
	"github.com/aretw0/wizards/pkg/adapters/openai"
	redisAdapter "github.com/aretw0/wizards/pkg/adapters/redis"
	"github.com/aretw0/wizards/pkg/adapters/sqlite"
	"github.com/aretw0/wizards/pkg/catalog"
	"github.com/aretw0/wizards/pkg/domain"
	"github.com/aretw0/wizards/pkg/drawer"
	"github.com/aretw0/wizards/pkg/observability"
	"github.com/aretw0/wizards/pkg/persistence/middleware"
	"github.com/aretw0/wizards/pkg/ports"
	"github.com/aretw0/wizards/pkg/session"
	"github.com/aretw0/wizards/pkg/suggest"
	goredis "github.com/redis/go-redis/v9"
)

// Engine is the high-level entry point. It owns the adapters selected by the
// configuration and the session manager built on them.
type Engine struct {
	Sessions  *session.Manager
	Templates ports.TemplateSource
	Service   ports.SuggestionService
	Metrics   *observability.Metrics

	logger  *slog.Logger
	llm     ports.SuggestionService
	hooks   domain.LifecycleHooks
	redis   goredis.UniversalClient
	dbs     map[string]*sqlite.Store
	closers []func() error
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLLM replaces the backend built from the llm section of the configuration.
func WithLLM(llm ports.SuggestionService) Option {
	return func(e *Engine) {
		e.llm = llm
	}
}

// WithLifecycleHooks registers extra hooks on every drawer.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRedisClient uses client instead of dialing the configured address.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(e *Engine) {
		e.redis = client
	}
}

// New wires an Engine from cfg. Adapters that hold connections are released
// by Close.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.build(ctx, cfg); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(ctx context.Context, cfg config.Config) error {
	templates, err := e.templates(cfg.Templates)
	if err != nil {
		return err
	}
	e.Templates = templates

	store, err := e.snapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	prefs, err := e.preferenceStore(ctx, cfg)
	if err != nil {
		return err
	}

	routerOpts := []suggest.Option{
		suggest.WithLogger(e.logger),
		suggest.WithFallbackTemplates(templates),
	}
	if e.llm == nil && cfg.LLM.Enabled() {
		e.llm = openai.New(openai.Config{
			BaseURL:           cfg.LLM.BaseURL,
			APIKey:            cfg.LLM.APIKey,
			Model:             cfg.LLM.Model,
			Timeout:           cfg.LLM.Timeout,
			RequestsPerSecond: cfg.LLM.RequestsPerSecond,
			Burst:             cfg.LLM.Burst,
			MaxSuggestions:    cfg.LLM.MaxSuggestions,
		}, openai.WithLogger(e.logger))
	}
	if e.llm != nil {
		routerOpts = append(routerOpts, suggest.WithLLM(e.llm))
	} else {
		e.logger.Info("No LLM configured, AI prompts are matched against templates")
	}
	e.Service = suggest.NewRouter(routerOpts...)

	e.Metrics = observability.NewMetrics()
	hooks := observability.LogHooks(e.logger).
		Merge(e.Metrics.Hooks()).
		Merge(e.hooks)

	managerOpts := []session.Option{
		session.WithLogger(e.logger),
		session.WithLockTTL(cfg.Drawer.LockTTL),
		session.WithDrawerOptions(
			drawer.WithPreferences(prefs),
			drawer.WithTemplates(templates),
			drawer.WithHooks(hooks),
			drawer.WithFetchTimeout(cfg.Drawer.FetchTimeout),
		),
	}
	if store != nil {
		managerOpts = append(managerOpts, session.WithSnapshotStore(store))
	}
	if cfg.Store.Driver == config.DriverRedis {
		managerOpts = append(managerOpts, session.WithLocker(redisAdapter.NewLocker(e.redisClient(cfg.Redis), cfg.Redis.Prefix)))
	}
	e.Sessions = session.NewManager(e.Service, managerOpts...)
	return nil
}

func (e *Engine) templates(cfg config.TemplatesConfig) (ports.TemplateSource, error) {
	switch cfg.Source {
	case config.TemplatesYAML:
		c, err := catalog.LoadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		return c, nil
	case config.TemplatesLoam:
		src, err := loamAdapter.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open template repository: %w", err)
		}
		return src, nil
	default:
		return catalog.Default(), nil
	}
}

// snapshotStore returns nil for the memory driver: drawers then live only in
// the manager.
func (e *Engine) snapshotStore(ctx context.Context, cfg config.Config) (ports.SnapshotStore, error) {
	var store ports.SnapshotStore
	switch cfg.Store.Driver {
	case config.DriverFile:
		store = file.New(cfg.Store.Dir)
	case config.DriverRedis:
		store = redisAdapter.NewFromClient(e.redisClient(cfg.Redis),
			redisAdapter.WithPrefix(cfg.Redis.Prefix),
			redisAdapter.WithTTL(cfg.Store.TTL),
		)
	case config.DriverSQLite:
		db, err := e.sqlite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = db
	default:
		return nil, nil
	}

	mws, err := storeMiddleware(cfg.Store)
	if err != nil {
		return nil, err
	}
	return middleware.Chain(store, mws...), nil
}

// storeMiddleware masks prompts before encrypting them.
func storeMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.MaskPatterns) > 0 {
		for _, p := range cfg.MaskPatterns {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
			}
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.MaskPatterns))
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		var fallback [][]byte
		for i, k := range cfg.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			fallback = append(fallback, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return mws, nil
}

func (e *Engine) preferenceStore(ctx context.Context, cfg config.Config) (ports.PreferenceStore, error) {
	switch cfg.Preferences.Driver {
	case config.DriverFile:
		return file.NewPreferenceStore(cfg.Preferences.Path), nil
	case config.DriverRedis:
		return redisAdapter.NewPreferenceStore(e.redisClient(cfg.Redis), cfg.Redis.Prefix), nil
	case config.DriverSQLite:
		return e.sqlite(ctx, cfg.Preferences.Path)
	default:
		return memory.NewPreferenceStore(), nil
	}
}

// sqlite opens each database path once; snapshots and preferences may share it.
func (e *Engine) sqlite(ctx context.Context, path string) (*sqlite.Store, error) {
	if db, ok := e.dbs[path]; ok {
		return db, nil
	}
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if e.dbs == nil {
		e.dbs = make(map[string]*sqlite.Store)
	}
	e.dbs[path] = db
	e.closers = append(e.closers, db.Close)
	return db, nil
}

func (e *Engine) redisClient(cfg config.RedisConfig) goredis.UniversalClient {
	if e.redis == nil {
		e.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		e.closers = append(e.closers, e.redis.Close)
	}
	return e.redis
}

// Close shuts every open drawer down and releases the adapters.
func (e *Engine) Close() error {
	if e.Sessions != nil {
		e.Sessions.Shutdown()
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
