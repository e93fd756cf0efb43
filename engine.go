package godataguard

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/GoDataGuard/go-data-guard/compliance"
	"github.com/GoDataGuard/go-data-guard/events"
	"github.com/GoDataGuard/go-data-guard/internal/bootstrap"
	internalevents "github.com/GoDataGuard/go-data-guard/internal/events"
	"github.com/GoDataGuard/go-data-guard/models"
	"github.com/GoDataGuard/go-data-guard/ratelimit"
	"github.com/GoDataGuard/go-data-guard/session"
	"github.com/GoDataGuard/go-data-guard/storage"
)

// ---------------------------------
// INITIALISATION
// ---------------------------------

// Engine wires the expiring store, rate limiter, session manager and
// compliance lifecycle into one unit. Construct it with New and shut it
// down with Close.
type Engine struct {
	Config *models.Config

	logger    models.Logger
	store     models.ExpiringStore
	storeType models.ExpiringStoreType

	limiter    *ratelimit.Limiter
	sessions   *session.Manager
	lifecycle  *compliance.Manager
	compliance *compliance.Facade

	eventBus models.EventBus
	repo     compliance.Repository
	dbCloser func() error
}

// Options carries optional dependency overrides, mainly for embedding the
// engine into an application that already owns these resources.
type Options struct {
	// Store replaces backend selection entirely when set. The engine does
	// not close an injected store.
	Store models.ExpiringStore
	// Repository replaces the bun-backed compliance repository. When set,
	// the relational database is not opened.
	Repository compliance.Repository
	// PubSub replaces the default in-process event transport.
	PubSub models.PubSub
	// Logger replaces the default slog-backed logger.
	Logger models.Logger
	// Notifier, when set, is subscribed to erasure-completed events.
	Notifier compliance.Notifier
}

// New constructs a fully wired Engine from config. It connects to the
// persistent store (falling back to memory when unreachable), opens the
// relational database unless a repository is injected, and fails fast on a
// weak signing secret.
func New(config *models.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = bootstrap.InitLogger(bootstrap.LoggerOptions{Level: config.Logger.Level})
	}

	engine := &Engine{
		Config: config,
		logger: logger,
	}

	if opts.Store != nil {
		engine.store = opts.Store
		engine.storeType = models.ExpiringStoreTypeCustom
	} else {
		engine.store, engine.storeType = storage.Connect(config.Store, logger)
	}

	engine.limiter = ratelimit.NewLimiter(engine.selectRateLimitProvider(), logger, ratelimit.LimiterOptions{})

	sessions, err := session.NewManager(engine.store, logger, session.ManagerOptions{
		Secret:              config.Secret,
		MinSecretLength:     config.Security.MinSecretLength,
		TokenLifetime:       config.Session.TokenLifetime,
		AccessTokenLifetime: config.Session.AccessTokenLifetime,
	})
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}
	engine.sessions = sessions

	if err := engine.initRepository(opts); err != nil {
		engine.Close()
		return nil, err
	}
	engine.initEventBus(opts)

	engine.lifecycle = compliance.NewManager(engine.repo, engine.sessions, engine.eventBus, logger, compliance.ManagerOptions{
		RetentionOverrides: config.Retention.Overrides,
	})
	engine.compliance = compliance.NewFacade(engine.lifecycle, engine.repo, logger)

	if opts.Notifier != nil {
		if _, err := compliance.RegisterNotifier(engine.eventBus, opts.Notifier, logger); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to register erasure notifier: %w", err)
		}
	}

	logger.Info("engine initialized",
		"app", config.AppName,
		"store", string(engine.storeType),
	)

	return engine, nil
}

// selectRateLimitProvider matches the limiter backend to the store backend
// so both degrade together: redis-backed counting when the store reached
// redis, process-local counting otherwise.
func (e *Engine) selectRateLimitProvider() ratelimit.Provider {
	if redisStore, ok := e.store.(*storage.RedisExpiringStore); ok {
		return ratelimit.NewRedisProvider(redisStore.Client())
	}
	return ratelimit.NewMemoryProvider()
}

func (e *Engine) initRepository(opts Options) error {
	if opts.Repository != nil {
		e.repo = opts.Repository
		return nil
	}

	db, err := bootstrap.InitDatabase(bootstrap.DatabaseOptions{
		Provider:        e.Config.Database.Provider,
		URL:             e.Config.Database.URL,
		MaxOpenConns:    e.Config.Database.MaxOpenConns,
		MaxIdleConns:    e.Config.Database.MaxIdleConns,
		ConnMaxLifetime: e.Config.Database.ConnMaxLifetime,
	}, e.Config.Logger.Level)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	e.repo = compliance.NewBunRepository(db)
	if closer, ok := db.(interface{ Close() error }); ok {
		e.dbCloser = closer.Close
	}
	return nil
}

func (e *Engine) initEventBus(opts Options) {
	pubsub := opts.PubSub
	if pubsub == nil {
		pubsub = internalevents.NewGoChannelPubSub(e.Config.EventBus.BufferSize, watermill.NopLogger{})
	}
	e.eventBus = events.NewEventBus(e.Config.EventBus, pubsub)
}

// ---------------------------------
// ACCESSORS
// ---------------------------------

// Logger returns the engine's logger.
func (e *Engine) Logger() models.Logger {
	return e.logger
}

// Store returns the expiring key-value store the engine selected at startup.
func (e *Engine) Store() models.ExpiringStore {
	return e.store
}

// StoreType reports which backend the store runs on.
func (e *Engine) StoreType() models.ExpiringStoreType {
	return e.storeType
}

// RateLimiter returns the sliding-window rate limiter.
func (e *Engine) RateLimiter() *ratelimit.Limiter {
	return e.limiter
}

// Sessions returns the session and token manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Lifecycle returns the compliance data lifecycle manager.
func (e *Engine) Lifecycle() *compliance.Manager {
	return e.lifecycle
}

// Compliance returns the validated compliance request facade.
func (e *Engine) Compliance() *compliance.Facade {
	return e.compliance
}

// EventBus returns the engine's event bus for additional subscribers.
func (e *Engine) EventBus() models.EventBus {
	return e.eventBus
}

// ---------------------------------
// SHUTDOWN
// ---------------------------------

// Close releases the resources the engine owns: the event bus, the store
// (unless injected) and the database connection (unless a repository was
// injected). The first error is returned, later steps still run.
func (e *Engine) Close() error {
	var firstErr error

	if e.eventBus != nil {
		if err := e.eventBus.Close(); err != nil {
			firstErr = err
		}
	}

	if e.limiter != nil {
		if err := e.limiter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.storeType != models.ExpiringStoreTypeCustom && e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.dbCloser != nil {
		if err := e.dbCloser(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
