package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/judgeproxy/internal/domain/analysis"
	"github.com/bryanwahyu/judgeproxy/internal/domain/webhooks"
)

func TestResultStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, analysis.ErrNotFound)

	rec := analysis.Record{ID: "u1", Result: analysis.Result{Data: map[string]any{"answer": "x"}}}
	require.NoError(t, s.Put(ctx, rec))

	// mutating the caller's copy must not leak into the store
	rec.Result.Data["answer"] = "mutated"

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Result.Answer())
	assert.Equal(t, 1, s.Len())
}

func TestResultStore_MergeIsShallowLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore()
	require.NoError(t, s.Put(ctx, analysis.Record{ID: "r", Result: analysis.Result{Data: map[string]any{"a": 1, "b": 2}}}))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got, err := s.Merge(ctx, "r", map[string]any{"b": 3, "c": 4}, at)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 3, "c": 4}, got.Result.Data)
	assert.Equal(t, at, got.UpdatedAt)

	_, err = s.Merge(ctx, "nope", map[string]any{"x": 1}, at)
	assert.ErrorIs(t, err, analysis.ErrNotFound)
}

func TestResultStore_MergeIntoEmptyData(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore()
	require.NoError(t, s.Put(ctx, analysis.Record{ID: "r"}))

	got, err := s.Merge(ctx, "r", map[string]any{"note": "hi"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Result.Data["note"])
}

func TestResultStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, analysis.Record{ID: "b", CreatedAt: base}))
	require.NoError(t, s.Put(ctx, analysis.Record{ID: "a", CreatedAt: base}))
	require.NoError(t, s.Put(ctx, analysis.Record{ID: "c", CreatedAt: base.Add(-time.Second)}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestResultStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s := NewResultStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(ctx, analysis.Record{ID: "same", Result: analysis.Result{Data: map[string]any{"n": i}}})
			_ = s.Put(ctx, analysis.Record{ID: fmt.Sprintf("id-%d", i)})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 51, s.Len())
}

func TestEventStore(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	_, ok, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, webhooks.Event{ConversationID: "c2", Event: webhooks.EventCompleted}))
	require.NoError(t, s.Put(ctx, webhooks.Event{ConversationID: "c1", Event: webhooks.EventCompleted}))

	e, ok, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, webhooks.EventCompleted, e.Event)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].ConversationID)
}
