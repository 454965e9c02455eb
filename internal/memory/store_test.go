package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/futig/manual-assistant/internal/entity"
)

type fakeTurnRepo struct {
	turns     map[string][]entity.Turn
	appendErr error
	deleted   []string
}

func newFakeTurnRepo() *fakeTurnRepo {
	return &fakeTurnRepo{turns: make(map[string][]entity.Turn)}
}

func (r *fakeTurnRepo) AppendTurn(_ context.Context, sessionID string, turn entity.Turn) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.turns[sessionID] = append(r.turns[sessionID], turn)
	return nil
}

func (r *fakeTurnRepo) ListTurns(_ context.Context, sessionID string, limit int) ([]entity.Turn, error) {
	turns := r.turns[sessionID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (r *fakeTurnRepo) DeleteSession(_ context.Context, sessionID string) error {
	r.deleted = append(r.deleted, sessionID)
	delete(r.turns, sessionID)
	return nil
}

func testContext(t *testing.T) context.Context {
	return ctxzap.ToContext(context.Background(), zaptest.NewLogger(t))
}

func TestSessions_InMemory(t *testing.T) {
	ctx := testContext(t)
	s := NewSessions(Config{}, time.Hour, time.Hour, nil)

	_, err := s.Lookup(ctx, "a")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	a, err := s.Get(ctx, "a")
	require.NoError(t, err)
	s.Record(ctx, "a", a, "hello", "hi", entity.TurnMetadata{})

	again, err := s.Lookup(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 1, again.Len())

	b, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 2, s.Active())

	require.NoError(t, s.Clear(ctx, "a"))
	assert.Equal(t, 0, a.Len())
	_, err = s.Lookup(ctx, "a")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSessions_RestoresFromRepository(t *testing.T) {
	ctx := testContext(t)
	repo := newFakeTurnRepo()

	first := NewSessions(Config{MaxHistory: 2}, time.Hour, time.Hour, repo)
	mem, err := first.Get(ctx, "s1")
	require.NoError(t, err)
	first.Record(ctx, "s1", mem, "washer leaks", "a1", entity.TurnMetadata{DeviceType: "washing_machine"})
	first.Record(ctx, "s1", mem, "and the drum?", "a2", entity.TurnMetadata{})
	first.Record(ctx, "s1", mem, "thanks", "a3", entity.TurnMetadata{BillNumber: "B-7"})
	require.Len(t, repo.turns["s1"], 3)

	// A fresh process has an empty cache.
	second := NewSessions(Config{MaxHistory: 2}, time.Hour, time.Hour, repo)
	restored, err := second.Lookup(ctx, "s1")
	require.NoError(t, err)

	turns := restored.AllTurns()
	require.Len(t, turns, 2)
	assert.Equal(t, "and the drum?", turns[0].UserInput)
	assert.Equal(t, "B-7", restored.LatestProblemContext().BillNumber)

	require.NoError(t, second.Clear(ctx, "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	_, err = second.Lookup(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSessions_RecordAfterClear(t *testing.T) {
	ctx := testContext(t)
	repo := newFakeTurnRepo()
	s := NewSessions(Config{}, time.Hour, time.Hour, repo)

	stale, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx, "s1"))

	s.Record(ctx, "s1", stale, "hello", "hi", entity.TurnMetadata{})

	_, err = s.Lookup(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
	assert.Empty(t, repo.turns["s1"])
	assert.Equal(t, 0, stale.Len())

	fresh, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	s.Record(ctx, "s1", fresh, "hello again", "hi", entity.TurnMetadata{})
	assert.Len(t, repo.turns["s1"], 1)
}

func TestSessions_RecordSurvivesRepositoryFailure(t *testing.T) {
	ctx := testContext(t)
	repo := newFakeTurnRepo()
	repo.appendErr = errors.New("db down")

	s := NewSessions(Config{}, time.Hour, time.Hour, repo)
	mem, err := s.Get(ctx, "s1")
	require.NoError(t, err)

	turn := s.Record(ctx, "s1", mem, "hello", "hi", entity.TurnMetadata{})
	assert.Equal(t, "hello", turn.UserInput)
	assert.Equal(t, 1, mem.Len())
}
