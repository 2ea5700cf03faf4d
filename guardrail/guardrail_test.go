package guardrail

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
)

func runContext() *core.RunContext {
	return core.NewRunContext(context.Background(), "run", "", "assistant", 0, nil, nil, nil)
}

func TestRunInput_Pass(t *testing.T) {
	input := []core.Item{core.NewUserMessage("hello")}
	err := RunInput(runContext(), []Input{MaxInputLength(10)}, input)
	assert.NoError(t, err)
	assert.NoError(t, RunInput(runContext(), nil, input))
}

func TestRunInput_TripReportsFirstInOrder(t *testing.T) {
	input := []core.Item{core.NewUserMessage("please share the password")}
	guards := []Input{
		MaxInputLength(1000),
		DenyInputPatterns("secrets", regexp.MustCompile(`(?i)password`)),
		MaxInputLength(5),
	}

	err := RunInput(runContext(), guards, input)
	var gv *core.GuardrailViolationError
	require.ErrorAs(t, err, &gv)
	assert.Equal(t, "secrets", gv.Guardrail)
	assert.Equal(t, core.GuardrailInput, gv.Stage)
	assert.Equal(t, input, gv.Content)
	assert.Equal(t, map[string]any{"pattern": "(?i)password"}, gv.Rationale)
}

func TestRunInput_CheckError(t *testing.T) {
	boom := errors.New("classifier down")
	g := NewInput("classifier", func(*core.RunContext, []core.Item) (Result, error) { return Result{}, boom })

	err := RunInput(runContext(), []Input{g}, nil)
	assert.ErrorIs(t, err, boom)
	var gv *core.GuardrailViolationError
	assert.False(t, errors.As(err, &gv))
}

func TestRunInput_RecoversPanic(t *testing.T) {
	g := NewInput("broken", func(*core.RunContext, []core.Item) (Result, error) { panic("nil map") })
	err := RunInput(runContext(), []Input{g}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRunOutput(t *testing.T) {
	deny := DenyOutputPatterns("no_ssn", regexp.MustCompile(`\d{3}-\d{2}-\d{4}`))

	assert.NoError(t, RunOutput(runContext(), []Output{deny}, "all good"))

	err := RunOutput(runContext(), []Output{deny}, "ssn is 123-45-6789")
	var gv *core.GuardrailViolationError
	require.ErrorAs(t, err, &gv)
	assert.Equal(t, core.GuardrailOutput, gv.Stage)
	assert.Equal(t, "ssn is 123-45-6789", gv.Content)

	structured := map[string]any{"ssn": "123-45-6789"}
	assert.Error(t, RunOutput(runContext(), []Output{deny}, structured))
}
