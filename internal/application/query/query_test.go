package query

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-hub/gradebook/internal/application/command"
	"github.com/gradebook-hub/gradebook/internal/application/eventhandler"
	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/messaging"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence/redis"
)

type fixture struct {
	store *persistence.Store
	redis *miniredis.Miniredis
	clock *WriteClock

	aggregateCache score.AggregateCache

	createStudent *command.CreateStudentHandler
	deleteStudent *command.DeleteStudentHandler
	upsertScore   *command.UpsertScoreHandler

	getStudent    *GetStudentHandler
	listStudents  *ListStudentsHandler
	search        *SearchStudentsHandler
	studentAvg    *GetStudentAverageHandler
	topScorer     *GetTopScorerHandler
	departmentAvg *GetDepartmentAverageHandler
}

// newFixture wires the application exactly as the server does, with a
// SQLite file and, when cached is true, a miniredis-backed cache.
func newFixture(t *testing.T, cached bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := persistence.Open(ctx, persistence.Options{URL: filepath.Join(t.TempDir(), "gradebook.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })

	f := &fixture{store: store}

	var (
		studentCache   student.Cache
		aggregateCache score.AggregateCache
	)
	if cached {
		f.redis = miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: f.redis.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })

		cache := redis.NewCacheFromClient(client, nil, 0)
		studentCache = redis.NewStudentCache(cache)
		aggregateCache = redis.NewAggregateCache(cache, store.Backend.Fold())

		inv := eventhandler.NewCacheInvalidator(studentCache, aggregateCache, nil)
		require.NoError(t, inv.Register(bus))
	}

	f.clock = NewWriteClock()
	publisher := f.clock.Publisher(bus)
	f.aggregateCache = aggregateCache

	f.createStudent = command.NewCreateStudentHandler(store.Students, publisher)
	f.deleteStudent = command.NewDeleteStudentHandler(store.Students, publisher)
	f.upsertScore = command.NewUpsertScoreHandler(store.Students, store.Scores, publisher)

	f.getStudent = NewGetStudentHandler(store.Students, studentCache, f.clock)
	f.listStudents = NewListStudentsHandler(store.Students)
	f.search = NewSearchStudentsHandler(store.Students)
	f.studentAvg = NewGetStudentAverageHandler(store.Scores, aggregateCache, f.clock)
	f.topScorer = NewGetTopScorerHandler(store.Scores, aggregateCache, f.clock)
	f.departmentAvg = NewGetDepartmentAverageHandler(store.Scores, aggregateCache, f.clock)

	return f
}

func (f *fixture) addStudent(t *testing.T, name, department string) *student.Student {
	t.Helper()
	st, err := f.createStudent.Handle(context.Background(), command.CreateStudentCommand{Name: name, Department: department})
	require.NoError(t, err)
	return st
}

func (f *fixture) addScore(t *testing.T, studentID int64, subject string, value float64) int64 {
	t.Helper()
	res, err := f.upsertScore.Handle(context.Background(), command.UpsertScoreCommand{
		StudentID: studentID, Subject: subject, Value: value,
	})
	require.NoError(t, err)
	return res.Score.ID
}

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

func TestGetStudent(t *testing.T) {
	for _, cached := range []bool{false, true} {
		f := newFixture(t, cached)
		ctx := context.Background()

		st := f.addStudent(t, " Grace Hopper ", " Navy ")

		got, err := f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID})
		require.NoError(t, err)
		assert.Equal(t, "Grace Hopper", got.Name)
		assert.Equal(t, "Navy", got.Department)

		// Second read is served from the cache when one is configured.
		got, err = f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID})
		require.NoError(t, err)
		assert.Equal(t, st.ID, got.ID)

		_, err = f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID + 100})
		assert.ErrorIs(t, err, shared.ErrStudentNotFound)

		_, err = f.getStudent.Handle(ctx, GetStudentQuery{StudentID: -1})
		assert.True(t, shared.IsValidation(err))
	}
}

func TestListStudents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"A", "B", "C", "D"} {
		ids = append(ids, f.addStudent(t, name, "X").ID)
	}

	page, err := f.listStudents.Handle(ctx, ListStudentsQuery{Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)

	page, err = f.listStudents.Handle(ctx, ListStudentsQuery{Skip: 10, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, page)

	for _, q := range []ListStudentsQuery{{Skip: -1, Limit: 1}, {Skip: 0, Limit: 0}, {Skip: 0, Limit: 1001}} {
		_, err := f.listStudents.Handle(ctx, q)
		assert.True(t, shared.IsValidation(err), "%+v", q)
	}
}

func TestSearchStudents(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.addStudent(t, "Alice Smith", "Math")
	f.addStudent(t, "Bob", "Math")
	f.addStudent(t, "ALICIA", "Art")

	got, err := f.search.Handle(ctx, SearchStudentsQuery{Name: "  ali "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice Smith", got[0].Name)
	assert.Equal(t, "ALICIA", got[1].Name)

	got, err = f.search.Handle(ctx, SearchStudentsQuery{Name: "zed"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.search.Handle(ctx, SearchStudentsQuery{Name: "   "})
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, "name", shared.FieldOf(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates
// ─────────────────────────────────────────────────────────────────────────────

func TestStudentAverage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "Math")
	f.addScore(t, st.ID, "Math", 80)
	f.addScore(t, st.ID, "Physics", 90)
	f.addScore(t, st.ID, "Chemistry", 100)

	avg, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, 90.0, avg.Average)
	assert.Equal(t, st.ID, avg.StudentID)
}

func TestStudentAverage_RoundsToTwoDecimals(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "Math")
	f.addScore(t, st.ID, "A", 70)
	f.addScore(t, st.ID, "B", 70)
	f.addScore(t, st.ID, "C", 71)

	avg, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, 70.33, avg.Average)
}

func TestStudentAverage_NotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "Math")

	_, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	assert.ErrorIs(t, err, shared.ErrNoScores)
	assert.True(t, shared.IsNotFound(err))

	_, err = f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID + 1})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}

func TestTopScorer_TieBreakIsStable(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a := f.addStudent(t, "A", "X")
	b := f.addStudent(t, "B", "X")
	c := f.addStudent(t, "C", "X")
	f.addScore(t, a.ID, "Math", 80)
	winner := f.addScore(t, b.ID, "math", 95)
	f.addScore(t, c.ID, "MATH", 95)

	for i := 0; i < 3; i++ {
		top, err := f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: " Math "})
		require.NoError(t, err)
		assert.Equal(t, 95.0, top.Value)
		assert.Equal(t, winner, top.ID)
		assert.Equal(t, b.ID, top.StudentID)
	}
}

func TestTopScorer_NotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	st := f.addStudent(t, "A", "X")
	f.addScore(t, st.ID, "Math", 80)

	_, err := f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "History"})
	assert.ErrorIs(t, err, shared.ErrSubjectNotFound)

	_, err = f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "  "})
	assert.ErrorIs(t, err, shared.ErrSubjectNotFound)
}

func TestDepartmentAverage(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	withScore := f.addStudent(t, "A", "CS")
	f.addStudent(t, "B", "cs")
	f.addStudent(t, "C", "Math")
	f.addScore(t, withScore.ID, "Go", 100)

	got, err := f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: " CS "})
	require.NoError(t, err)
	assert.Equal(t, "CS", got.Department)
	assert.Equal(t, 100.0, got.Average)
	assert.Equal(t, 2, got.StudentCount)
	assert.Equal(t, 1, got.ScoreCount)
}

func TestDepartmentAverage_NotFound(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.addStudent(t, "A", "CS")

	_, err := f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "CS"})
	assert.ErrorIs(t, err, shared.ErrDepartmentNotFound)

	_, err = f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "Biology"})
	assert.ErrorIs(t, err, shared.ErrDepartmentNotFound)
}

func TestDeleteCascadesToAggregates(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "CS")
	f.addScore(t, st.ID, "Go", 90)

	_, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	require.NoError(t, err)
	_, err = f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID})
	require.NoError(t, err)

	require.NoError(t, f.deleteStudent.Handle(ctx, command.DeleteStudentCommand{StudentID: st.ID}))

	_, err = f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
	_, err = f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
	_, err = f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "Go"})
	assert.ErrorIs(t, err, shared.ErrSubjectNotFound)
	_, err = f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "CS"})
	assert.ErrorIs(t, err, shared.ErrDepartmentNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Cache behaviour
// ─────────────────────────────────────────────────────────────────────────────

func TestCachedAggregatesFollowWrites(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	a := f.addStudent(t, "A", "CS")
	f.addScore(t, a.ID, "Math", 60)

	avg, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 60.0, avg.Average)
	top, err := f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "math"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, top.Value)
	dept, err := f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "cs"})
	require.NoError(t, err)
	assert.Equal(t, 60.0, dept.Average)
	assert.Equal(t, "cs", dept.Department)

	assert.True(t, f.redis.Exists(redis.StudentAverageKey(a.ID)))
	keys := f.aggregateCache.(*redis.AggregateCache)
	assert.True(t, f.redis.Exists(keys.TopScorerKey("Math")))
	assert.True(t, f.redis.Exists(keys.DepartmentKey("CS")))

	// Update through a differently cased subject.
	f.addScore(t, a.ID, "MATH", 80)

	avg, err = f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 80.0, avg.Average)
	top, err = f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "Math"})
	require.NoError(t, err)
	assert.Equal(t, 80.0, top.Value)
	assert.Equal(t, "Math", top.Subject)

	// A new score-less student changes the department's student count.
	f.addStudent(t, "B", "Cs")
	dept, err = f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "CS"})
	require.NoError(t, err)
	assert.Equal(t, 2, dept.StudentCount)
	assert.Equal(t, 1, dept.ScoreCount)
	assert.Equal(t, "CS", dept.Department)
}

func TestCacheOutageFallsBackToStorage(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "CS")
	f.addScore(t, st.ID, "Go", 75)

	f.redis.Close()

	avg, err := f.studentAvg.Handle(ctx, GetStudentAverageQuery{StudentID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, 75.0, avg.Average)

	got, err := f.getStudent.Handle(ctx, GetStudentQuery{StudentID: st.ID})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
}

func TestConcurrentAggregateReads(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	st := f.addStudent(t, "Ada", "CS")
	f.addScore(t, st.ID, "Go", 88)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			top, err := f.topScorer.Handle(ctx, GetTopScorerQuery{Subject: "go"})
			if assert.NoError(t, err) {
				assert.Equal(t, 88.0, top.Value)
			}
			dept, err := f.departmentAvg.Handle(ctx, GetDepartmentAverageQuery{Department: "cs"})
			if assert.NoError(t, err) {
				assert.Equal(t, "cs", dept.Department)
			}
		}()
	}
	wg.Wait()
}
