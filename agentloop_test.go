package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/memory"
)

func TestAgentLoop_RegisterAndRun(t *testing.T) {
	rec := &testutil.RecordingTracer{}
	loop := New(func(o *Options) { o.Tracer = rec })

	llm := testutil.NewScriptedModel(testutil.Reply("hello"))
	require.NoError(t, loop.RegisterAgent(agent.New("assistant", llm)))
	assert.Error(t, loop.RegisterAgent(agent.New("assistant", llm)), "duplicate names are rejected")
	assert.Error(t, loop.RegisterAgent(agent.New("", llm)))

	got, ok := loop.Agent("assistant")
	require.True(t, ok)
	assert.Equal(t, "assistant", got.Name())

	res, err := loop.Run(context.Background(), "assistant", Text("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalOutput)
	assert.NotEmpty(t, rec.Events())

	_, err = loop.Run(context.Background(), "unknown", Text("hi"))
	assert.Error(t, err)
	assert.Error(t, loop.Cancel("nope"))
}

func TestAgentLoop_MaxTurns(t *testing.T) {
	loop := New(func(o *Options) { o.MaxTurns = 1 })
	llm := testutil.NewScriptedModel(
		testutil.CallTools("", testutil.Call("c1", "lookup", `{}`)),
		testutil.Reply("unreachable"),
	)
	require.NoError(t, loop.RegisterAgent(agent.New("assistant", llm, agent.WithTools(testutil.NewStubTool("lookup", 1)))))

	_, err := loop.Run(context.Background(), "assistant", Text("go"))
	assert.True(t, IsMaxTurnsExceeded(err))
	assert.Equal(t, 1, llm.Calls())
}

func TestNewFromConfig_DefaultBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "inmemory"
	cfg.Logging.Console = false
	cfg.Logging.File = t.TempDir() + "/agentloop.log"

	loop, err := NewFromConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = loop.Close(ctx)
		_ = memory.SetDefaultFactory(ctx, nil)
	})

	llm := testutil.NewScriptedModel(testutil.Reply("noted"), testutil.Reply("you said hi"))
	require.NoError(t, loop.RegisterAgent(agent.New("assistant", llm, agent.WithMemory(memory.DefaultBackend()))))

	_, err = loop.Run(ctx, "assistant", Text("hi"), WithSession("s1"))
	require.NoError(t, err)
	_, err = loop.Run(ctx, "assistant", Text("what did I say?"), WithSession("s1"))
	require.NoError(t, err)
	assert.Len(t, llm.LastRequest().Input, 3)

	mem, err := memory.Default(ctx)
	require.NoError(t, err)
	_, isInMemory := mem.(*memory.InMemory)
	assert.True(t, isInMemory)
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Memory.Backend = "redis"
	_, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}

func TestRun_OneOff(t *testing.T) {
	llm := testutil.NewScriptedModel(testutil.Reply("4"))
	res, err := Run(context.Background(), agent.New("math", llm), "2+2?", WithMaxTurns(1))
	require.NoError(t, err)
	assert.Equal(t, "4", res.FinalText)
	assert.Equal(t, []core.ItemKind{core.ItemUserMessage, core.ItemAssistantMessage}, func() []core.ItemKind {
		var k []core.ItemKind
		for _, it := range res.ToInputList() {
			k = append(k, it.Kind)
		}
		return k
	}())
}
