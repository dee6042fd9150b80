// Package app wires storage, caches, the event bus and the application
// handlers into one container shared by the API server and gradectl.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gradebook-hub/gradebook/config"
	"github.com/gradebook-hub/gradebook/internal/application/command"
	"github.com/gradebook-hub/gradebook/internal/application/eventhandler"
	"github.com/gradebook-hub/gradebook/internal/application/query"
	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/messaging"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence/redis"
	"github.com/gradebook-hub/gradebook/internal/interface/http/handlers"
	"github.com/gradebook-hub/gradebook/pkg/circuitbreaker"
	"github.com/gradebook-hub/gradebook/pkg/retry"
)

// Commands groups the write side.
type Commands struct {
	CreateStudent *command.CreateStudentHandler
	DeleteStudent *command.DeleteStudentHandler
	UpsertScore   *command.UpsertScoreHandler
}

// Queries groups the read side.
type Queries struct {
	GetStudent        *query.GetStudentHandler
	ListStudents      *query.ListStudentsHandler
	SearchStudents    *query.SearchStudentsHandler
	StudentAverage    *query.GetStudentAverageHandler
	TopScorer         *query.GetTopScorerHandler
	DepartmentAverage *query.GetDepartmentAverageHandler
}

// App is the wired application.
type App struct {
	Store    *persistence.Store
	Cache    *redis.Cache // nil when Redis is disabled or unreachable
	Bus      *messaging.InMemoryEventBus
	Commands Commands
	Queries  Queries

	logger *slog.Logger
}

// Options tunes New.
type Options struct {
	// Registerer receives event bus metrics. Nil disables them.
	Registerer prometheus.Registerer

	// RetryStartup waits for the database with retry.StartupRetrier.
	RetryStartup bool
}

// New opens storage, connects the optional cache and builds the handlers.
// A Redis failure is logged and the app runs uncached.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Storage
	// ─────────────────────────────────────────────────────────────────────────
	open := func(ctx context.Context) (*persistence.Store, error) {
		store, err := persistence.Open(ctx, persistence.Options{
			URL:      cfg.Database.URL,
			MaxConns: int32(cfg.Database.MaxConns),
			MinConns: int32(cfg.Database.MinConns),
			Logger:   log,
		})
		if errors.Is(err, persistence.ErrInvalidURL) {
			// Waiting will not fix the URL.
			return nil, retry.Permanent(err)
		}
		return store, err
	}

	var (
		store *persistence.Store
		err   error
	)
	if opts.RetryStartup {
		r := retry.StartupRetrier(func(attempt int, err error, delay time.Duration) {
			log.Warn("database not ready, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", err.Error()),
			)
		})
		store, err = retry.DoWithData(ctx, r, open)
	} else {
		store, err = open(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage ready", slog.String("backend", string(store.Backend)))

	a := &App{Store: store, logger: log}

	// ─────────────────────────────────────────────────────────────────────────
	// Cache (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		studentCache   student.Cache
		aggregateCache score.AggregateCache
	)
	if cfg.Redis.Enabled {
		breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("cache circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})

		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis), breaker)
		if err != nil {
			log.Warn("redis unavailable, running without cache", slog.String("error", err.Error()))
		} else {
			a.Cache = cache
			studentCache = redis.NewStudentCache(cache)
			aggregateCache = redis.NewAggregateCache(cache, store.Backend.Fold())
			log.Info("redis cache connected", slog.Duration("ttl", cfg.Redis.TTL))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Registerer = opts.Registerer
	a.Bus = messaging.NewInMemoryEventBus(busCfg)

	if a.Cache != nil {
		inv := eventhandler.NewCacheInvalidator(studentCache, aggregateCache, log)
		if err := inv.Register(a.Bus); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("register cache invalidator: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Application layer
	// ─────────────────────────────────────────────────────────────────────────
	// Commands publish through the clock so reads never outlive a write.
	clock := query.NewWriteClock()
	publisher := clock.Publisher(a.Bus)

	a.Commands = Commands{
		CreateStudent: command.NewCreateStudentHandler(store.Students, publisher),
		DeleteStudent: command.NewDeleteStudentHandler(store.Students, publisher),
		UpsertScore:   command.NewUpsertScoreHandler(store.Students, store.Scores, publisher),
	}
	a.Queries = Queries{
		GetStudent:        query.NewGetStudentHandler(store.Students, studentCache, clock),
		ListStudents:      query.NewListStudentsHandler(store.Students),
		SearchStudents:    query.NewSearchStudentsHandler(store.Students),
		StudentAverage:    query.NewGetStudentAverageHandler(store.Scores, aggregateCache, clock),
		TopScorer:         query.NewGetTopScorerHandler(store.Scores, aggregateCache, clock),
		DepartmentAverage: query.NewGetDepartmentAverageHandler(store.Scores, aggregateCache, clock),
	}

	return a, nil
}

// HealthChecker builds the checks served on /health: storage is required,
// the cache only degrades the service.
func (a *App) HealthChecker(version string) *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(version)
	hc.AddCheck("database", handlers.NewDatabaseCheck(a.Store))
	if a.Cache != nil {
		hc.AddOptionalCheck("cache", handlers.NewCacheCheck(a.Cache))
	}
	return hc
}

// Close drains the event bus and releases connections.
func (a *App) Close() error {
	var errs []error
	if a.Bus != nil {
		if err := a.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	if c.Host != "" {
		rc.Host = c.Host
	}
	if c.Port > 0 {
		rc.Port = c.Port
	}
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		rc.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		rc.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		rc.WriteTimeout = c.WriteTimeout
	}
	if c.TTL > 0 {
		rc.TTL = c.TTL
	}
	return rc
}
