package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/pkg/circuitbreaker"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheFromClient(client, nil, 0), mr
}

func TestKeys_FoldUserText(t *testing.T) {
	ac := NewAggregateCache(nil, nil)
	assert.Equal(t, ac.TopScorerKey("Math"), ac.TopScorerKey(" MATH "))
	assert.Equal(t, ac.DepartmentKey("Straße"), ac.DepartmentKey("STRASSE"))
	assert.NotEqual(t, ac.TopScorerKey("Math"), ac.TopScorerKey("Maths"))
	assert.Equal(t, "gradebook:student:42", StudentKey(42))
}

func TestConfig_Options(t *testing.T) {
	opts, err := Config{URL: "redis://:secret@cache:6380/2"}.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	_, err = Config{URL: "http://nope"}.Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestNewCache_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.URL = "redis://" + mr.Addr()

	c, err := NewCache(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping(context.Background()))
}

func TestCache_SetGetDelete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}))

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	ttl := mr.TTL("k")
	assert.Equal(t, DefaultTTL, ttl)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCache_EntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1))
	mr.FastForward(DefaultTTL + time.Second)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestCache_MissesDoNotTripBreaker(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	var v int
	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, c.Get(ctx, "absent", &v), ErrCacheMiss)
	}
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestCache_BreakerOpensWhenRedisDies(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	mr.Close()

	var v int
	for i := 0; i < 3; i++ {
		err := c.Get(ctx, "k", &v)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCacheMiss)
	}

	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())
	assert.ErrorIs(t, c.Get(ctx, "k", &v), circuitbreaker.ErrCircuitOpen)
}

func TestStudentCache(t *testing.T) {
	c, _ := newTestCache(t)
	sc := NewStudentCache(c)
	ctx := context.Background()

	_, err := sc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, sc.Set(ctx, &student.Student{ID: 1, Name: "Ada", Department: "CS"}))
	require.NoError(t, sc.Set(ctx, &student.Student{ID: 2, Name: "Alan", Department: "CS"}))

	got, err := sc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	require.NoError(t, sc.Delete(ctx, 1))
	_, err = sc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, sc.InvalidateAll(ctx))
	_, err = sc.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAggregateCache(t *testing.T) {
	c, _ := newTestCache(t)
	ac := NewAggregateCache(c, nil)
	ctx := context.Background()

	require.NoError(t, ac.SetStudentAverage(ctx, 7, 86.67))
	avg, err := ac.GetStudentAverage(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 86.67, avg)
	require.NoError(t, ac.DeleteStudentAverage(ctx, 7))
	_, err = ac.GetStudentAverage(ctx, 7)
	assert.ErrorIs(t, err, ErrCacheMiss)

	top := &score.Score{ID: 3, StudentID: 7, Subject: "Math", Value: 95}
	require.NoError(t, ac.SetTopScorer(ctx, "Math", top))
	require.NoError(t, ac.SetTopScorer(ctx, "Art", top))
	got, err := ac.GetTopScorer(ctx, "MATH")
	require.NoError(t, err)
	assert.Equal(t, *top, *got)

	require.NoError(t, ac.DeleteTopScorer(ctx, "math"))
	_, err = ac.GetTopScorer(ctx, "Math")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, ac.DeleteAllTopScorers(ctx))
	_, err = ac.GetTopScorer(ctx, "Art")
	assert.ErrorIs(t, err, ErrCacheMiss)

	dept := &score.DepartmentAverage{Department: "CS", Average: 100, StudentCount: 2, ScoreCount: 1}
	require.NoError(t, ac.SetDepartmentAverage(ctx, "CS", dept))
	gotDept, err := ac.GetDepartmentAverage(ctx, "cs")
	require.NoError(t, err)
	assert.Equal(t, *dept, *gotDept)
	require.NoError(t, ac.DeleteDepartmentAverage(ctx, "Cs"))
	_, err = ac.GetDepartmentAverage(ctx, "CS")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestAggregateCache_KeysFollowBackendFold(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	top := &score.Score{ID: 1, StudentID: 1, Subject: "Straße", Value: 90}

	// LOWER() keeps ß, so STRASSE is another subject on PostgreSQL.
	lower := NewAggregateCache(c, strings.ToLower)
	require.NoError(t, lower.SetTopScorer(ctx, "Straße", top))
	_, err := lower.GetTopScorer(ctx, "STRASSE")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = lower.GetTopScorer(ctx, " STRAßE ")
	assert.NoError(t, err)

	require.NoError(t, lower.DeleteAllTopScorers(ctx))

	folded := NewAggregateCache(c, nil)
	require.NoError(t, folded.SetTopScorer(ctx, "Straße", top))
	_, err = folded.GetTopScorer(ctx, "STRASSE")
	assert.NoError(t, err)
}
