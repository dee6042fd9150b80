package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBackend(t *testing.T) {
	assert.Equal(t, BackendPostgres, DetectBackend("postgres://u:p@localhost/db"))
	assert.Equal(t, BackendPostgres, DetectBackend("PostgreSQL://localhost/db"))
	assert.Equal(t, BackendSQLite, DetectBackend("sqlite:///./students.db"))
	assert.Equal(t, BackendSQLite, DetectBackend("students.db"))
}

func TestBackend_Fold(t *testing.T) {
	pg := BackendPostgres.Fold()
	assert.Equal(t, pg("MATH"), pg("math"))
	assert.NotEqual(t, pg("STRASSE"), pg("Straße"))

	lite := BackendSQLite.Fold()
	assert.Equal(t, lite("MATH"), lite("math"))
	assert.Equal(t, lite("STRASSE"), lite("Straße"))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "students.db")

	store, err := Open(ctx, Options{URL: url})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, BackendSQLite, store.Backend)
	assert.NoError(t, store.Ping(ctx))

	n, err := store.Students.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = store.MigrationStatus(ctx)
	assert.ErrorIs(t, err, ErrNoMigrations)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), Options{URL: "sqlite://"})
	assert.ErrorIs(t, err, ErrInvalidURL)
}
