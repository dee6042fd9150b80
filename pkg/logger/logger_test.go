package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" debug "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{
		Output: &buf,
		Level:  slog.LevelInfo,
		Format: FormatJSON,
		Attrs:  []slog.Attr{slog.String("service", "gradebook")},
	})

	log.Debug("hidden")
	log.Info("score recorded", StudentID(7), Subject("Math"), Department("CS"), Err(errors.New("x")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "score recorded", entry["msg"])
	assert.Equal(t, "gradebook", entry["service"])
	assert.Equal(t, 7.0, entry["student_id"])
	assert.Equal(t, "Math", entry["subject"])
	assert.Equal(t, "CS", entry["department"])
	assert.Equal(t, "x", entry["error"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Format: FormatText}).Info("hello", RequestID("abc"))

	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestContext(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	l := New(Options{Output: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}
