package runner

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tracing"
)

// toolOutcome is the result of one tool call.
type toolOutcome struct {
	call     core.FunctionCall
	result   any
	err      error
	duration time.Duration
}

// toolExecutor runs the tool calls of one turn. Calls execute concurrently up
// to maxParallel; outcomes are returned in request order. A fatal tool error
// cancels the remaining calls of the batch.
type toolExecutor struct {
	maxParallel int
	emit        func(ev tracing.Event)
}

func (e *toolExecutor) execute(rc *core.RunContext, a *agent.Agent, calls []core.FunctionCall) ([]toolOutcome, error) {
	outcomes := make([]toolOutcome, len(calls))
	if len(calls) == 0 {
		return outcomes, nil
	}

	eg, ctx := errgroup.WithContext(rc.Context)
	if e.maxParallel > 0 {
		eg.SetLimit(e.maxParallel)
	}
	scoped := *rc
	scoped.Context = ctx

	batchStart := time.Now()
	for i, fc := range calls {
		eg.Go(func() error {
			out := e.call(&scoped, a, fc)
			outcomes[i] = out
			if tool.IsFatal(out.err) {
				return &core.ToolExecutionError{Tool: fc.Name, CallID: fc.ID, Fatal: true, Err: out.err}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := rc.Context.Err(); err != nil {
		return nil, err
	}

	rc.LogDebug(
		"runner.tools.batch.complete",
		"count", len(calls),
		"parallelism", e.maxParallel,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return outcomes, nil
}

func (e *toolExecutor) call(rc *core.RunContext, a *agent.Agent, fc core.FunctionCall) toolOutcome {
	e.emit(tracing.Event{Type: tracing.EventToolStart, Tool: fc.Name, CallID: fc.ID})

	start := time.Now()
	out := toolOutcome{call: fc}
	func() {
		defer func() {
			if r := recover(); r != nil {
				out.err = panicError(r)
				rc.LogError("runner.tool.panic", "tool", fc.Name, "recover", fmt.Sprint(r))
			}
		}()
		out.result, out.err = invokeTool(rc, a, fc)
	}()
	out.duration = time.Since(start)

	rc.LogInfo(
		"runner.tool.executed",
		"tool", fc.Name,
		"function_call_id", fc.ID,
		"duration_ms", out.duration.Milliseconds(),
		"error", out.err != nil,
	)
	e.emit(tracing.Event{Type: tracing.EventToolEnd, Tool: fc.Name, CallID: fc.ID, Err: out.err, Duration: out.duration})

	return out
}

// invokeTool centralizes tool lookup, argument decoding and execution.
func invokeTool(rc *core.RunContext, a *agent.Agent, fc core.FunctionCall) (any, error) {
	impl, ok := a.Tool(fc.Name)
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), tool.CodeNotFound)
	}

	args, err := decodeArguments(fc.Arguments)
	if err != nil {
		return nil, tool.NewToolError(fc.Name, err.Error(), tool.CodeValidation)
	}

	tc := core.NewToolContext(rc, fc.ID)
	result, err := impl.Call(tc, args)
	if target, requested := tc.TransferRequest(); requested {
		rc.LogWarn("runner.tool.transfer_ignored", "tool", fc.Name, "target", target)
	}
	return result, err
}

func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return args, nil
}

// panicError converts a recovered panic value to an error carrying the stack.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
