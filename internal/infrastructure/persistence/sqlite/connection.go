// Package sqlite implements the gradebook repositories on an embedded SQLite
// database (modernc.org/sqlite, no cgo). It is the default backend for local
// runs and the backend used by tests.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"modernc.org/sqlite"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnectionClosed indicates the database handle is closed.
	ErrConnectionClosed = errors.New("sqlite: database is closed")

	// ErrInvalidURL indicates a database URL that does not name a SQLite file.
	ErrInvalidURL = errors.New("sqlite: invalid database URL")
)

// ══════════════════════════════════════════════════════════════════════════════
// CASE FOLDING
// ══════════════════════════════════════════════════════════════════════════════

// FoldFunc is the SQL function used for case-insensitive comparisons.
// SQLite's built-in lower() only folds ASCII.
const FoldFunc = "casefold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(FoldFunc, 1, foldValue)
}

// Fold is the Go side of casefold(): full Unicode case folding.
func Fold(s string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(s)
}

func foldValue(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return Fold(v), nil
	case []byte:
		return Fold(string(v)), nil
	default:
		return v, nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Connection wraps a *sql.DB opened on the sqlite driver.
type Connection struct {
	db     *sql.DB
	path   string
	closed bool
	mu     sync.RWMutex
}

// PathFromURL extracts the file path from a database URL.
//
//	sqlite:///./students.db  -> ./students.db
//	sqlite:////var/lib/g.db  -> /var/lib/g.db
//	sqlite://students.db     -> students.db
//	file:students.db         -> students.db
//	students.db              -> students.db
func PathFromURL(databaseURL string) (string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		p := strings.TrimPrefix(databaseURL, "sqlite://")
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, databaseURL)
		}
		return p, nil
	case strings.HasPrefix(databaseURL, "file:"):
		p := strings.TrimPrefix(databaseURL, "file:")
		if i := strings.IndexByte(p, '?'); i >= 0 {
			p = p[:i]
		}
		if p == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidURL, databaseURL)
		}
		return p, nil
	case databaseURL == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	default:
		return databaseURL, nil
	}
}

// dsn builds the driver DSN. Writers start with BEGIN IMMEDIATE so that
// read-then-write transactions serialize instead of failing on upgrade.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	if path != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Connection, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	if path == ":memory:" {
		// Every connection would get its own private database otherwise.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping %s: %w", path, err)
	}

	if err := CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Connection{db: db, path: path}, nil
}

// OpenURL is Open for a database URL.
func OpenURL(ctx context.Context, databaseURL string) (*Connection, error) {
	path, err := PathFromURL(databaseURL)
	if err != nil {
		return nil, err
	}
	return Open(ctx, path)
}

// DB returns the underlying handle.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Path returns the database file path.
func (c *Connection) Path() string {
	return c.path
}

// Ping checks the database is reachable.
func (c *Connection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}
	return c.db.PingContext(ctx)
}

// Close closes the database. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// WithTx runs fn inside a write transaction. It commits when fn returns nil
// and rolls back on any error or panic.
func (c *Connection) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrConnectionClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	return nil
}

// querier is implemented by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
