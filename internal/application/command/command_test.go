package command

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/infrastructure/persistence"
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store     *persistence.Store
	publisher *recordingPublisher
	create    *CreateStudentHandler
	remove    *DeleteStudentHandler
	upsert    *UpsertScoreHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := persistence.Open(context.Background(), persistence.Options{
		URL: filepath.Join(t.TempDir(), "gradebook.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pub := &recordingPublisher{}
	return &fixture{
		store:     store,
		publisher: pub,
		create:    NewCreateStudentHandler(store.Students, pub),
		remove:    NewDeleteStudentHandler(store.Students, pub),
		upsert:    NewUpsertScoreHandler(store.Students, store.Scores, pub),
	}
}

func TestCreateStudent_TrimsAndStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "  Ada Lovelace ", Department: " Math\t"})
	require.NoError(t, err)
	assert.Positive(t, st.ID)
	assert.Equal(t, "Ada Lovelace", st.Name)
	assert.Equal(t, "Math", st.Department)

	stored, err := f.store.Students.GetByID(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st, stored)

	assert.Equal(t, []shared.EventType{shared.EventStudentCreated}, f.publisher.types())
}

func TestCreateStudent_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		cmd       CreateStudentCommand
		wantField string
	}{
		{"empty name", CreateStudentCommand{Name: "   ", Department: "Math"}, "name"},
		{"empty department", CreateStudentCommand{Name: "Ada", Department: ""}, "department"},
		{"long name", CreateStudentCommand{Name: strings.Repeat("a", 101), Department: "Math"}, "name"},
		{"long department", CreateStudentCommand{Name: "Ada", Department: strings.Repeat("é", 101)}, "department"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.create.Handle(context.Background(), tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
			assert.Equal(t, tt.wantField, shared.FieldOf(err))
		})
	}

	assert.Empty(t, f.publisher.types())
}

func TestCreateStudent_HundredRunesAccepted(t *testing.T) {
	f := newFixture(t)

	name := strings.Repeat("ü", 100)
	st, err := f.create.Handle(context.Background(), CreateStudentCommand{Name: " " + name + " ", Department: "Physics"})
	require.NoError(t, err)
	assert.Equal(t, name, st.Name)
}

func TestUpsertScore_CaseInsensitiveSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "Math"})
	require.NoError(t, err)

	first, err := f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "Math", Value: 80})
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "math", Value: 95})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Score.ID, second.Score.ID)
	assert.Equal(t, "Math", second.Score.Subject)
	assert.Equal(t, 95.0, second.Score.Value)

	scores, err := f.store.Scores.ListByStudent(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "Math", scores[0].Subject)
	assert.Equal(t, 95.0, scores[0].Value)

	events := f.publisher.events
	require.Len(t, events, 3)
	recorded, ok := events[2].(shared.ScoreRecordedEvent)
	require.True(t, ok)
	assert.False(t, recorded.Created)
	assert.Equal(t, "Math", recorded.Department)
	assert.Equal(t, "Math", recorded.Subject)
}

func TestUpsertScore_TrimsSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "Science"})
	require.NoError(t, err)

	res, err := f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: " Physics ", Value: 70})
	require.NoError(t, err)
	assert.Equal(t, "Physics", res.Score.Subject)
}

func TestUpsertScore_RejectsOutOfRangeOnBothPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "Science"})
	require.NoError(t, err)

	for _, v := range []float64{-0.01, 100.01, math.NaN(), math.Inf(1)} {
		_, err := f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "Art", Value: v})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err), "value %v", v)
	}

	_, err = f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "Art", Value: 50})
	require.NoError(t, err)

	_, err = f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "ART", Value: 101})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	scores, err := f.store.Scores.ListByStudent(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 50.0, scores[0].Value)
}

func TestUpsertScore_UnknownStudentBeforeValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.upsert.Handle(context.Background(), UpsertScoreCommand{StudentID: 999, Subject: "", Value: 500})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestUpsertScore_EmptySubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "Science"})
	require.NoError(t, err)

	_, err = f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "  ", Value: 50})
	require.Error(t, err)
	assert.Equal(t, "subject", shared.FieldOf(err))
}

func TestUpsertScore_ConcurrentWritersProduceOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "Science"})
	require.NoError(t, err)

	subjects := []string{"Chemistry", "chemistry", "CHEMISTRY", " Chemistry "}
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.upsert.Handle(ctx, UpsertScoreCommand{
				StudentID: st.ID,
				Subject:   subjects[i%len(subjects)],
				Value:     float64(i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	scores, err := f.store.Scores.ListByStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Len(t, scores, 1)
}

func TestDeleteStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.create.Handle(ctx, CreateStudentCommand{Name: "Ada", Department: "CS"})
	require.NoError(t, err)
	_, err = f.upsert.Handle(ctx, UpsertScoreCommand{StudentID: st.ID, Subject: "Go", Value: 100})
	require.NoError(t, err)

	require.NoError(t, f.remove.Handle(ctx, DeleteStudentCommand{StudentID: st.ID}))

	_, err = f.store.Students.GetByID(ctx, st.ID)
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)

	scores, err := f.store.Scores.ListByStudent(ctx, st.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)

	err = f.remove.Handle(ctx, DeleteStudentCommand{StudentID: st.ID})
	assert.True(t, shared.IsNotFound(err))

	err = f.remove.Handle(ctx, DeleteStudentCommand{StudentID: 0})
	assert.True(t, shared.IsValidation(err))

	last := f.publisher.events[len(f.publisher.events)-1]
	deleted, ok := last.(shared.StudentDeletedEvent)
	require.True(t, ok)
	assert.Equal(t, st.ID, deleted.StudentID)
	assert.Equal(t, "CS", deleted.Department)
}

func TestCorrelationIDPropagates(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Handle(context.Background(), CreateStudentCommand{
		Name: "Ada", Department: "CS", CorrelationID: "req-42",
	})
	require.NoError(t, err)

	e := f.publisher.events[0].(shared.StudentCreatedEvent)
	assert.Equal(t, "req-42", e.CorrelationID)
}
