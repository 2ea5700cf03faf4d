package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

func newToolContext(callID string) *core.ToolContext {
	rc := core.NewRunContext(context.Background(), "run-1", "sess-1", "assistant", 1, map[string]any{"user": "alice"}, nil, logging.NoOpLogger{})
	return core.NewToolContext(rc, callID)
}

// -------------------- FunctionTool --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(newToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(newToolContext("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var ve *ValidationError
	require.ErrorAs(t, toolErr.Details.(error), &ve)
	assert.Equal(t, "a", ve.Field)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(newToolContext("fc3"), nil)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
	assert.False(t, IsFatal(err))
}

func TestFunctionTool_ForwardsToolErrorAndFatal(t *testing.T) {
	custom := NewToolError("quota", "limit reached", "QUOTA")
	quota := NewFunctionTool("quota", "Quota", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	_, err := quota.Call(newToolContext("fc4"), nil)
	assert.Same(t, custom, err)

	dead := errors.New("credentials revoked")
	fatal := NewFunctionTool("fatal", "Fatal", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, Fatal(dead)
	})
	_, err = fatal.Call(newToolContext("fc5"), nil)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, dead)
}

type weatherArgs struct {
	City  string `json:"city" jsonschema:"description=City name"`
	Units string `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
}

func TestNewTypedTool(t *testing.T) {
	weather := NewTypedTool("get_weather", "Weather", func(tc *core.ToolContext, in weatherArgs) (any, error) {
		user, _ := tc.Var("user")
		return map[string]any{"city": in.City, "units": in.Units, "user": user}, nil
	})

	props, ok := weather.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "units")

	out, err := weather.Call(newToolContext("fc6"), map[string]any{"city": "Berlin", "units": "metric"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Berlin", "units": "metric", "user": "alice"}, out)

	_, err = weather.Call(newToolContext("fc7"), map[string]any{"city": "Berlin", "units": "kelvin"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

// -------------------- Transfer --------------------

func TestTransferTool(t *testing.T) {
	tr := NewTransferTool(
		TransferTarget{Name: "billing", Description: "Invoices and payments"},
		TransferTarget{Name: "support"},
	)
	assert.Equal(t, TransferToolName, tr.Name())
	assert.True(t, IsTransfer(tr.Name()))
	assert.Contains(t, tr.Description(), "billing: Invoices and payments")
	assert.Contains(t, tr.Description(), "- support")

	agentProp := tr.Parameters()["properties"].(map[string]any)["agent"].(map[string]any)
	assert.Equal(t, []any{"billing", "support"}, agentProp["enum"])

	tc := newToolContext("fc8")
	out, err := tr.Call(tc, map[string]any{"agent": "billing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"assistant": "billing"}, out)

	target, ok := tc.TransferRequest()
	assert.True(t, ok)
	assert.Equal(t, "billing", target)

	_, err = tr.Call(newToolContext("fc9"), map[string]any{})
	assert.Error(t, err)
}

func TestParseTransferArguments(t *testing.T) {
	name, err := ParseTransferArguments(`{"agent":"billing"}`)
	require.NoError(t, err)
	assert.Equal(t, "billing", name)

	for _, bad := range []string{``, `{}`, `{"agent":""}`, `{"agent":42}`, `not json`} {
		_, err := ParseTransferArguments(bad)
		assert.Error(t, err, bad)
	}
}

// -------------------- Helpers --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}

func TestFind(t *testing.T) {
	a := NewFunctionTool("a", "", nil, nil)
	b := NewFunctionTool("b", "", nil, nil)

	got, ok := Find([]Tool{a, b}, "b")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = Find([]Tool{a}, "missing")
	assert.False(t, ok)
}

func TestFatal(t *testing.T) {
	assert.Nil(t, Fatal(nil))
	assert.False(t, IsFatal(errors.New("x")))
}
