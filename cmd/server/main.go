// Command server runs the gradebook REST API.
//
// Configuration comes from the environment (and an optional .env file); see
// package config. With no configuration at all the server listens on :8000
// and keeps its data in ./students.db.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/gradebook-hub/gradebook/config"
	"github.com/gradebook-hub/gradebook/internal/app"
	httpserver "github.com/gradebook-hub/gradebook/internal/interface/http"
	"github.com/gradebook-hub/gradebook/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	slog.SetDefault(log)
	log.Info("starting gradebook API",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("database", redactURL(cfg.Database.URL)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Metrics registry
	// ─────────────────────────────────────────────────────────────────────────
	var reg *prometheus.Registry
	var registerer prometheus.Registerer
	if cfg.Observability.MetricsEnabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer = reg
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Storage, cache, event bus, handlers
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log, app.Options{
		Registerer:   registerer,
		RetryStartup: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing connections...")
		if err := application.Close(); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	srvCfg := httpserver.DefaultConfig()
	srvCfg.Host = cfg.HTTP.Host
	srvCfg.Port = cfg.HTTP.Port
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.RequestTimeout = cfg.Database.QueryTimeout
	srvCfg.AllowedOrigins = cfg.HTTP.CORSAllowedOrigins
	srvCfg.RateLimitRPS = cfg.HTTP.RateLimitRPS
	srvCfg.RateLimitBurst = cfg.HTTP.RateLimitBurst

	server := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		CreateStudent:     application.Commands.CreateStudent,
		DeleteStudent:     application.Commands.DeleteStudent,
		UpsertScore:       application.Commands.UpsertScore,
		GetStudent:        application.Queries.GetStudent,
		ListStudents:      application.Queries.ListStudents,
		SearchStudents:    application.Queries.SearchStudents,
		StudentAverage:    application.Queries.StudentAverage,
		TopScorer:         application.Queries.TopScorer,
		DepartmentAverage: application.Queries.DepartmentAverage,
		Logger:            log,
		HealthChecker:     application.HealthChecker(cfg.App.Version),
		Registry:          reg,
		ServiceName:       cfg.App.Name,
		Version:           cfg.App.Version,
	})

	ln, err := net.Listen("tcp", srvCfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Serve until a signal arrives, then drain
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", slog.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("gradebook API stopped")
	return nil
}

// setupLogger configures structured logging: JSON unless LOG_FORMAT=text,
// debug level when APP_DEBUG is set.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}
	if cfg.Observability.LogFormat != "" {
		opts.Format = logger.Format(cfg.Observability.LogFormat)
	}
	opts.Attrs = []slog.Attr{
		slog.String("service", "gradebook"),
		slog.String("env", string(cfg.App.Environment)),
	}

	return logger.New(opts)
}
