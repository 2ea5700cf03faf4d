// Package memorytest provides a conformance suite for core.SessionMemory
// implementations. Backends call Run from their own tests:
//
//	func TestConformance(t *testing.T) {
//		memorytest.Run(t, func(t *testing.T) core.SessionMemory { return NewThing() })
//	}
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
)

// Factory returns a fresh, empty backend. The suite cleans it up.
type Factory func(t *testing.T) core.SessionMemory

// Run executes the conformance suite against backends built by newMemory.
func Run(t *testing.T, newMemory Factory) {
	t.Helper()

	open := func(t *testing.T) core.SessionMemory {
		m := newMemory(t)
		t.Cleanup(func() { _ = m.Cleanup(context.Background()) })
		return m
	}

	t.Run("UnknownSessionIsEmpty", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		items, err := m.LoadSession(ctx, "missing")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)

		ok, err := m.SessionExists(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("AppendConcatenates", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		first := Items(0, "hello", "hi there")
		second := Items(2, "how are you", "fine")

		require.NoError(t, m.AppendToSession(ctx, "s1", first))
		require.NoError(t, m.AppendToSession(ctx, "s1", second))

		got, err := m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		AssertItemsEqual(t, append(append([]core.Item{}, first...), second...), got)

		ok, err := m.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AppendEmptyCreatesSession", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		require.NoError(t, m.AppendToSession(ctx, "s1", nil))

		ok, err := m.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SessionsAreIsolated", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		a := Items(0, "for a")
		b := Items(0, "for b", "reply b")
		require.NoError(t, m.AppendToSession(ctx, "a", a))
		require.NoError(t, m.AppendToSession(ctx, "b", b))

		gotA, err := m.LoadSession(ctx, "a")
		require.NoError(t, err)
		AssertItemsEqual(t, a, gotA)

		gotB, err := m.LoadSession(ctx, "b")
		require.NoError(t, err)
		AssertItemsEqual(t, b, gotB)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		require.NoError(t, m.AppendToSession(ctx, "s1", Items(0, "one", "two", "three")))
		replacement := Items(0, "only")
		require.NoError(t, m.SaveSession(ctx, "s1", replacement))

		got, err := m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		AssertItemsEqual(t, replacement, got)
	})

	t.Run("ClearRemovesSession", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		require.NoError(t, m.AppendToSession(ctx, "s1", Items(0, "x")))
		require.NoError(t, m.ClearSession(ctx, "s1"))

		got, err := m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, got)

		ok, err := m.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, m.ClearSession(ctx, "s1"))
		require.NoError(t, m.ClearSession(ctx, "never-existed"))
	})

	t.Run("ListSessions", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		ids, err := m.ListSessions(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, m.AppendToSession(ctx, id, Items(0, id)))
		}
		require.NoError(t, m.ClearSession(ctx, "b"))

		ids, err = m.ListSessions(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "c"}, ids)
	})

	t.Run("ContentRoundTrip", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		items := core.Renumber([]core.Item{
			core.NewUserMessage("what is the weather in Berlin?"),
			core.NewToolCall("assistant", core.FunctionCall{ID: "call-1", Name: "weather", Arguments: `{"city":"Berlin"}`}),
			core.NewToolResult("assistant", "call-1", "weather", map[string]any{"temp": 21.5, "sky": "clear"}, nil),
			core.NewToolResult("assistant", "call-2", "forecast", nil, errors.New("unavailable")),
			core.NewTransferMarker("assistant", "call-3", "transfer_to_agent", "billing"),
			core.NewAssistantMessage("billing", core.Content{Parts: []core.Part{
				core.TextPart{Text: "done"},
				core.DataPart{Data: map[string]any{"ok": true, "id": int64(9007199254740993)}},
			}}),
		}, 0)

		require.NoError(t, m.AppendToSession(ctx, "rt", items))

		got, err := m.LoadSession(ctx, "rt")
		require.NoError(t, err)
		AssertItemsEqual(t, items, got)

		target, ok := got[4].TransferTarget()
		require.True(t, ok)
		assert.Equal(t, "billing", target)
	})

	t.Run("AppendAssignsOrdinals", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		// both batches numbered from 0, as a caller without loaded history would
		require.NoError(t, m.AppendToSession(ctx, "s1", Items(0, "one", "two")))
		require.NoError(t, m.AppendToSession(ctx, "s1", Items(0, "three", "four")))

		got, err := m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 4)
		for i, it := range got {
			assert.Equal(t, i, it.Ordinal, "item %d", i)
		}

		require.NoError(t, m.SaveSession(ctx, "s1", Items(5, "replaced")))
		got, err = m.LoadSession(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 0, got[0].Ordinal)
	})

	t.Run("ConcurrentAppendsDoNotInterleave", func(t *testing.T) {
		m := open(t)
		ctx := context.Background()

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				batch := Items(0, fmt.Sprintf("w%d-a", w), fmt.Sprintf("w%d-b", w), fmt.Sprintf("w%d-c", w))
				errs <- m.AppendToSession(ctx, "shared", batch)
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := m.LoadSession(ctx, "shared")
		require.NoError(t, err)
		require.Len(t, got, writers*3)
		for i, it := range got {
			assert.Equal(t, i, it.Ordinal)
		}

		// every batch must appear as a contiguous run
		for i := 0; i < len(got); i += 3 {
			prefix := got[i].Text()[:len(got[i].Text())-1]
			assert.Equal(t, prefix+"a", got[i].Text())
			assert.Equal(t, prefix+"b", got[i+1].Text())
			assert.Equal(t, prefix+"c", got[i+2].Text())
		}
	})

	t.Run("CleanupIsIdempotent", func(t *testing.T) {
		m := newMemory(t)
		ctx := context.Background()

		require.NoError(t, m.AppendToSession(ctx, "s1", Items(0, "x")))
		require.NoError(t, m.Cleanup(ctx))
		require.NoError(t, m.Cleanup(ctx))

		_, err := m.LoadSession(ctx, "s1")
		var se *core.StorageError
		require.ErrorAs(t, err, &se)
		assert.ErrorIs(t, err, core.ErrMemoryClosed)
	})
}

// Items builds alternating user/assistant text items numbered from start.
func Items(start int, texts ...string) []core.Item {
	items := make([]core.Item, len(texts))
	for i, text := range texts {
		if i%2 == 0 {
			items[i] = core.NewUserMessage(text)
		} else {
			items[i] = core.NewAssistantMessage("assistant", core.Content{Parts: []core.Part{core.TextPart{Text: text}}})
		}
	}
	return core.Renumber(items, start)
}

// AssertItemsEqual compares item sequences field by field. Timestamps are
// compared with Equal so that monotonic clock readings and locations do not
// matter.
func AssertItemsEqual(t *testing.T, want, got []core.Item) {
	t.Helper()

	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.ID, g.ID, "item %d id", i)
		assert.Equal(t, w.Kind, g.Kind, "item %d kind", i)
		assert.Equal(t, w.Ordinal, g.Ordinal, "item %d ordinal", i)
		assert.Equal(t, w.Agent, g.Agent, "item %d agent", i)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "item %d created_at: %v != %v", i, w.CreatedAt, g.CreatedAt)
		assert.Equal(t, w.Content, g.Content, "item %d content", i)
	}
}
