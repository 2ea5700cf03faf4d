package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/schema"
	"github.com/hupe1980/agentloop/tool"
)

func TestNew_Defaults(t *testing.T) {
	a := New("helper", testutil.NewScriptedModel())

	assert.Equal(t, "helper", a.Name())
	assert.Equal(t, memory.PolicyDisabled, a.Memory().Kind())
	assert.Nil(t, a.OutputSchema())
	assert.Empty(t, a.ToolDefinitions())

	text, err := a.Instructions(core.NewRunContext(context.Background(), "r", "", "helper", 1, nil, nil, nil))
	require.NoError(t, err)
	assert.Contains(t, text, "helper")
	assert.NoError(t, a.Validate())
}

func TestAgent_TransfersAndTools(t *testing.T) {
	llm := testutil.NewScriptedModel()
	billing := New("billing", llm, func(o *Options) { o.Description = "Invoices" })
	support := New("support", llm)
	lookup := testutil.NewStubTool("lookup", "ok")

	triage := New("triage", llm,
		WithTools(lookup),
		WithTransfers(billing, support),
		WithMemory(memory.DefaultBackend()),
	)

	assert.Equal(t, []string{"billing", "support"}, triage.TransferNames())
	got, ok := triage.TransferTarget("billing")
	require.True(t, ok)
	assert.Same(t, billing, got)
	_, ok = triage.TransferTarget("sales")
	assert.False(t, ok)

	defs := triage.ToolDefinitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "lookup", defs[0].Function.Name)
	assert.Equal(t, tool.TransferToolName, defs[1].Function.Name)
	assert.Contains(t, defs[1].Function.Description, "billing: Invoices")

	found, ok := triage.Tool("lookup")
	require.True(t, ok)
	assert.Same(t, lookup, found)
}

func TestAgent_Immutable(t *testing.T) {
	tools := []tool.Tool{testutil.NewStubTool("a", nil)}
	a := New("x", testutil.NewScriptedModel(), func(o *Options) { o.Tools = tools })

	tools[0] = testutil.NewStubTool("mutated", nil)
	assert.Equal(t, "a", a.Tools()[0].Name())

	returned := a.Tools()
	returned[0] = nil
	assert.NotNil(t, a.Tools()[0])
}

func TestAgent_Clone(t *testing.T) {
	type answer struct {
		Value string `json:"value"`
	}
	base := New("base", testutil.NewScriptedModel(), WithInstruction("be brief"))
	structured := base.Clone("structured", WithOutputSchema(schema.NewOutput("answer", answer{})))

	assert.Nil(t, base.OutputSchema())
	assert.NotNil(t, structured.OutputSchema())
	assert.Equal(t, "structured", structured.Name())
	assert.Same(t, base.Model(), structured.Model())
}

func TestAgent_Validate(t *testing.T) {
	llm := testutil.NewScriptedModel()

	var nilAgent *Agent
	assert.Error(t, nilAgent.Validate())
	assert.Error(t, New("", llm).Validate())
	assert.Error(t, New("x", nil).Validate())

	dup := New("x", llm, WithTools(testutil.NewStubTool("a", nil), testutil.NewStubTool("a", nil)))
	assert.Error(t, dup.Validate())

	reserved := New("x", llm, WithTools(testutil.NewStubTool(tool.TransferToolName, nil)))
	assert.Error(t, reserved.Validate())

	other := New("y", llm)
	assert.Error(t, New("x", llm, WithTransfers(other, other)).Validate())
}

func TestInstruction_Sources(t *testing.T) {
	rc := core.NewRunContext(context.Background(), "r", "", "x", 1, map[string]any{"user": "alice"}, nil, nil)

	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	got, err := inst.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)

	inst = NewInstructionFromFunc(func(rc *core.RunContext) (string, error) { return "turn " + rc.Agent, nil })
	assert.False(t, inst.IsStatic())
	got, err = inst.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "turn x", got)

	inst = NewInstructionFromTemplate("Greet {{.user | title}}.")
	got, err = inst.Resolve(rc)
	require.NoError(t, err)
	assert.Equal(t, "Greet Alice.", got)
}

type failingProvider struct{ err error }

func (p failingProvider) Instruction(*core.RunContext) (string, error) { return "", p.err }

func TestInstruction_ErrorPropagation(t *testing.T) {
	boom := errors.New("boom")
	a := New("x", testutil.NewScriptedModel(), func(o *Options) {
		o.Instruction = NewInstructionFromProvider(failingProvider{err: boom})
	})

	_, err := a.Instructions(core.NewRunContext(context.Background(), "r", "", "x", 1, nil, nil, nil))
	assert.ErrorIs(t, err, boom)
}
