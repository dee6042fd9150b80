// Package persistence opens the storage backend named by a database URL and
// exposes its repositories.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence/sqlite"
)

// Backend identifies a storage engine.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

// DetectBackend picks the backend from the URL scheme. Anything that is not a
// postgres URL is treated as a SQLite path.
func DetectBackend(databaseURL string) Backend {
	lower := strings.ToLower(databaseURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return BackendPostgres
	}
	return BackendSQLite
}

// Fold returns the case mapping the backend applies when it matches subjects
// and departments. Cache keys built from user text must use the same one,
// or a cached entry could answer for text the backend would not match.
func (b Backend) Fold() func(string) string {
	if b == BackendPostgres {
		// LOWER() on a UTF-8 database.
		return strings.ToLower
	}
	return sqlite.Fold
}

var (
	// ErrInvalidURL is returned by Open for a database URL it cannot use.
	ErrInvalidURL = sqlite.ErrInvalidURL

	// ErrNoMigrations is returned by MigrationStatus on SQLite, whose schema
	// script is idempotent and unversioned.
	ErrNoMigrations = errors.New("backend has no versioned migrations")
)

// Options configures Open.
type Options struct {
	URL      string
	MaxConns int32
	MinConns int32
	Logger   *slog.Logger
}

// Store bundles the repositories of one backend with its lifecycle.
type Store struct {
	Backend  Backend
	Students student.Repository
	Scores   score.Repository

	migrator *postgres.Migrator
	ping     func(ctx context.Context) error
	close    func() error
}

// Open connects to the backend, brings the schema up to date and builds the
// repositories.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch backend := DetectBackend(opts.URL); backend {
	case BackendPostgres:
		pool := postgres.DefaultPoolOptions()
		if opts.MaxConns > 0 {
			pool.MaxConns = opts.MaxConns
		}
		if opts.MinConns > 0 {
			pool.MinConns = opts.MinConns
		}

		conn, err := postgres.NewConnectionFromURL(ctx, opts.URL, pool)
		if err != nil {
			return nil, err
		}

		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("connected to PostgreSQL, migrations applied")

		return &Store{
			Backend:  backend,
			Students: postgres.NewStudentRepository(conn),
			Scores:   postgres.NewScoreRepository(conn),
			migrator: migrator,
			ping:     conn.Ping,
			close:    conn.Close,
		}, nil

	default:
		conn, err := sqlite.OpenURL(ctx, opts.URL)
		if err != nil {
			return nil, err
		}
		logger.Info("opened SQLite database", "path", conn.Path())

		return &Store{
			Backend:  backend,
			Students: sqlite.NewStudentRepository(conn),
			Scores:   sqlite.NewScoreRepository(conn),
			ping:     conn.Ping,
			close:    conn.Close,
		}, nil
	}
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backend's connections.
func (s *Store) Close() error {
	return s.close()
}

// MigrationStatus lists the versioned migrations and whether each is applied.
func (s *Store) MigrationStatus(ctx context.Context) ([]postgres.Migration, error) {
	if s.migrator == nil {
		return nil, ErrNoMigrations
	}
	return s.migrator.Status(ctx)
}
