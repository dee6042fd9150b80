package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
students:
  - name: Ada Lovelace
    department: CS
    scores:
      - subject: Math
        score: 80
      - subject: Physics
        score: 90
  - name: Alan Turing
    department: CS
    scores:
      - subject: Math
        score: 95
  - name: Marie Curie
    department: Physics
`

type cli struct {
	t    *testing.T
	db   string
	file string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ENABLED", "false")

	dir := t.TempDir()
	file := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(file, []byte(fixture), 0o600))

	return &cli{t: t, db: "sqlite:///" + filepath.Join(dir, "cli.db"), file: file}
}

func (c *cli) run(args ...string) (code int, stdout, stderr string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), append([]string{"-db", c.db}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestImportAndQuery(t *testing.T) {
	c := newCLI(t)

	code, out, stderr := c.run("import", c.file)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "students created: 3, scores created: 3, scores updated: 0")

	code, out, _ = c.run("students")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Marie Curie")

	code, out, _ = c.run("students", "-skip", "1", "-limit", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Alan Turing")
	assert.NotContains(t, out, "Ada Lovelace")

	code, out, _ = c.run("search", "curie")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Marie Curie")

	code, out, _ = c.run("average", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "85.00")

	code, out, _ = c.run("top", "math")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "95.00")

	code, out, _ = c.run("department", "cs")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "88.33")
}

func TestErrors(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"no command", nil, 2, "Usage"},
		{"unknown command", []string{"drop"}, 2, `unknown command "drop"`},
		{"missing student", []string{"average", "42"}, 1, "student not found"},
		{"bad id", []string{"average", "abc"}, 1, "student id must be a positive integer"},
		{"unknown subject", []string{"top", "Latin"}, 1, "no scores for subject"},
		{"empty search", []string{"search", " "}, 1, "search query must not be empty"},
		{"bad limit", []string{"students", "-limit", "0"}, 1, "limit must be between 1 and 1000"},
		{"missing file", []string{"import", "nope.yaml"}, 1, "open fixture"},
		{"wrong arity", []string{"top"}, 1, "wrong number of arguments"},
		{"migrate without status", []string{"migrate"}, 1, "migrate status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := c.run(tt.args...)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantErr)
		})
	}
}

func TestMigrateStatus_SQLite(t *testing.T) {
	c := newCLI(t)

	code, out, stderr := c.run("migrate", "status")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "sqlite schema is applied on open")
}
