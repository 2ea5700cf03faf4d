package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// ErrScriptExhausted is returned when a ScriptedModel is called more often
// than it has steps.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step produces the response for one model call.
type Step func(req model.Request) (model.Response, error)

// ScriptedModel replays a fixed sequence of steps, one per Generate call, and
// records every request it receives.
type ScriptedModel struct {
	name string

	mu       sync.Mutex
	steps    []Step
	requests []model.Request
}

var _ model.Model = (*ScriptedModel)(nil)

// NewScriptedModel constructs a model answering with steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{name: "scripted", steps: steps}
}

// Named sets the model name reported by Info.
func (m *ScriptedModel) Named(name string) *ScriptedModel {
	m.name = name
	return m
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	req.Input = core.CloneItems(req.Input)
	m.requests = append(m.requests, req)
	var step Step
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	}
	m.mu.Unlock()

	if step == nil {
		errCh <- ErrScriptExhausted
	} else if resp, err := step(req); err != nil {
		errCh <- err
	} else {
		out <- resp
	}
	close(out)
	close(errCh)

	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "test", SupportsTools: true}
}

// Calls returns the number of Generate calls so far.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of all recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// LastRequest returns the most recent request.
func (m *ScriptedModel) LastRequest() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return model.Request{}
	}
	return m.requests[len(m.requests)-1]
}

func response(parts ...core.Part) model.Response {
	return model.Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: "stop",
		Usage:        &model.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

// Reply answers with plain text.
func Reply(text string) Step {
	return func(model.Request) (model.Response, error) {
		return response(core.TextPart{Text: text}), nil
	}
}

// ReplyFunc computes the text answer from the request.
func ReplyFunc(fn func(req model.Request) string) Step {
	return func(req model.Request) (model.Response, error) {
		return response(core.TextPart{Text: fn(req)}), nil
	}
}

// CallTools answers with the given function calls and optional leading text.
func CallTools(text string, calls ...core.FunctionCall) Step {
	return func(model.Request) (model.Response, error) {
		parts := make([]core.Part, 0, len(calls)+1)
		if text != "" {
			parts = append(parts, core.TextPart{Text: text})
		}
		for _, fc := range calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}
		resp := response(parts...)
		resp.FinishReason = "tool_calls"
		return resp, nil
	}
}

// Transfer answers with a transfer_to_agent call.
func Transfer(callID, target string) Step {
	return CallTools("", TransferCall(callID, target))
}

// Fail makes the call fail with err.
func Fail(err error) Step {
	return func(model.Request) (model.Response, error) { return model.Response{}, err }
}

// Call builds a function call.
func Call(id, name, args string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: name, Arguments: args}
}

// TransferCall builds a transfer_to_agent function call.
func TransferCall(id, target string) core.FunctionCall {
	return Call(id, "transfer_to_agent", fmt.Sprintf(`{"agent":%q}`, target))
}
