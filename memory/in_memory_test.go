package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory/memorytest"
)

func TestInMemory_Conformance(t *testing.T) {
	memorytest.Run(t, func(t *testing.T) core.SessionMemory { return NewInMemory() })
}

func TestInMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	items := memorytest.Items(0, "hello")
	require.NoError(t, m.AppendToSession(ctx, "s1", items))

	items[0].Content.Parts[0] = core.TextPart{Text: "mutated"}

	got, err := m.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got[0].Text())

	got[0].Content.Parts[0] = core.TextPart{Text: "mutated again"}

	again, err := m.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "hello", again[0].Text())
}

func TestInMemory_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	m := NewInMemory()

	require.NoError(t, m.AppendToSession(ctx, "old", memorytest.Items(0, "a")))
	require.NoError(t, m.AppendToSession(ctx, "new", memorytest.Items(0, "b")))

	// touch "old" again so that it becomes the most recent
	m.mu.Lock()
	m.sessions["old"].updatedAt = m.sessions["new"].updatedAt.Add(1)
	m.mu.Unlock()

	ids, err := m.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids)
}
