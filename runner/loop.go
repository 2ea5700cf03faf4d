package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/guardrail"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tracing"
)

// errExtraTransfer is recorded for transfer calls beyond the first of a turn.
var errExtraTransfer = errors.New("only the first transfer of a turn is applied")

// run holds the state of a single Run call. It is discarded when the call
// returns.
type run struct {
	opts      Options
	runID     string
	sessionID string
	vars      map[string]any
	logger    logging.Logger

	limiter *core.TurnLimiter
	start   *agent.Agent
	active  *agent.Agent
	state   State
	turn    int

	prior     []core.Item
	input     []core.Item
	generated []core.Item
	// committed is set once the input passed the input guardrails.
	committed bool
	pending   *model.Response

	usage       model.TokenUsage
	finalOutput any
	finalText   string
}

func newRun(r *Runner, opts RunOptions) *run {
	return &run{
		opts:      r.opts,
		runID:     opts.RunID,
		sessionID: opts.SessionID,
		vars:      opts.Vars,
		logger:    r.opts.Logger,
		limiter:   core.NewTurnLimiter(opts.MaxTurns),
		start:     r.agent,
		active:    r.agent,
		state:     StateStart,
	}
}

// step is the outcome of one turn.
type step struct {
	items []core.Item
	done  bool
}

func (rs *run) execute(ctx context.Context, input Input) (*RunResult, error) {
	began := time.Now()
	rs.logger.Info("runner.run.start", "run_id", rs.runID, "agent", rs.start.Name(), "session_id", rs.sessionID)
	rs.emit(ctx, tracing.Event{Type: tracing.EventRunStart})

	err := rs.loop(ctx, input)
	if perr := rs.persist(ctx); perr != nil {
		if err == nil {
			err = perr
		} else {
			err = errors.Join(err, perr)
		}
	}

	duration := time.Since(began)
	rs.emit(ctx, tracing.Event{Type: tracing.EventRunEnd, Agent: rs.start.Name(), Err: err, Duration: duration})

	if err != nil {
		rs.logger.Warn("runner.run.failed", "run_id", rs.runID, "step", rs.state.String(), "agent", rs.active.Name(), "turn", rs.turn, "error", err.Error())
		return nil, &RunError{Err: err, State: rs.snapshot(rs.state)}
	}

	rs.logger.Info("runner.run.complete", "run_id", rs.runID, "agent", rs.active.Name(), "turns", rs.turn, "duration_ms", duration.Milliseconds())
	return &RunResult{
		RunID:       rs.runID,
		SessionID:   rs.sessionID,
		FinalOutput: rs.finalOutput,
		FinalText:   rs.finalText,
		Input:       core.CloneItems(rs.input),
		NewItems:    core.CloneItems(rs.generated),
		LastAgent:   rs.active.Name(),
		Turns:       rs.turn,
		Usage:       rs.usage,
		Duration:    duration,
		prior:       core.CloneItems(rs.prior),
	}, nil
}

func (rs *run) loop(ctx context.Context, input Input) error {
	if err := rs.resolveHistory(ctx, input); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rs.state = StateInvokeModel
		turn, err := rs.limiter.Increment()
		if err != nil {
			return err
		}
		rs.turn = turn
		rs.pending = nil

		rs.logger.Debug("runner.turn.start", "run_id", rs.runID, "agent", rs.active.Name(), "turn", turn)
		rs.emit(ctx, tracing.Event{Type: tracing.EventTurnStart})

		st, err := rs.step(ctx)
		if err != nil {
			rs.emit(ctx, tracing.Event{Type: tracing.EventTurnEnd, Err: err})
			return err
		}

		rs.generated = append(rs.generated, core.Renumber(st.items, len(rs.prior)+len(rs.input)+len(rs.generated))...)
		rs.pending = nil
		rs.emit(ctx, tracing.Event{Type: tracing.EventTurnEnd})

		if st.done {
			rs.state = StateDone
			return nil
		}
	}
}

// resolveHistory loads prior history from the starting agent's memory and
// checks the new input against the input guardrails.
func (rs *run) resolveHistory(ctx context.Context, input Input) error {
	if rs.sessionID != "" && rs.start.Memory().Enabled() {
		mem, err := rs.start.Memory().Resolve(ctx)
		if err != nil {
			return core.NewStorageError(rs.sessionID, "resolve", err)
		}
		prior, err := mem.LoadSession(ctx, rs.sessionID)
		rs.emit(ctx, tracing.Event{Type: tracing.EventMemoryLoad, Items: len(prior), Err: err})
		if err != nil {
			return core.NewStorageError(rs.sessionID, "load", err)
		}
		rs.prior = prior
		rs.logger.Debug("runner.memory.load", "run_id", rs.runID, "session_id", rs.sessionID, "items", len(prior))
	}

	rs.input = input.toItems(len(rs.prior))

	if len(rs.opts.InputGuardrails) > 0 {
		if err := guardrail.RunInput(rs.runContext(ctx), rs.opts.InputGuardrails, rs.input); err != nil {
			rs.traceGuardrail(ctx, err)
			return err
		}
	}
	rs.committed = true
	return nil
}

// step performs one INVOKE_MODEL and the handling of its response. The
// returned items are not yet part of the run.
func (rs *run) step(ctx context.Context) (step, error) {
	a := rs.active
	rc := rs.runContext(ctx)

	instructions, err := a.Instructions(rc)
	if err != nil {
		return step{}, err
	}

	req := model.Request{
		Instructions: instructions,
		Input:        rs.history(),
		Tools:        a.ToolDefinitions(),
		Output:       a.OutputSchema(),
	}

	began := time.Now()
	resp, err := model.Collect(ctx, a.Model(), req, nil)
	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	rs.emit(ctx, tracing.Event{Type: tracing.EventModelCall, Tokens: tokens, Err: err, Duration: time.Since(began)})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return step{}, ctxErr
		}
		return step{}, &core.ModelError{Agent: a.Name(), Model: a.Model().Info().Name, Err: err}
	}
	rs.pending = &resp
	rs.usage.Add(resp.Usage)

	calls := resp.FunctionCalls()
	if len(calls) == 0 {
		return rs.finalize(rc, resp)
	}

	var st step
	if text := textContent(resp.Content); len(text.Parts) > 0 {
		st.items = append(st.items, core.NewAssistantMessage(a.Name(), text))
	}

	var regular, transfers []core.FunctionCall
	for _, fc := range calls {
		if tool.IsTransfer(fc.Name) {
			transfers = append(transfers, fc)
		} else {
			regular = append(regular, fc)
		}
	}

	if len(regular) > 0 {
		if err := ctx.Err(); err != nil {
			return step{}, err
		}
		rs.state = StateHandleTools
		items, err := rs.handleTools(rc, a, regular)
		if err != nil {
			return step{}, err
		}
		st.items = append(st.items, items...)
	}

	if len(transfers) > 0 {
		if err := ctx.Err(); err != nil {
			return step{}, err
		}
		rs.state = StateHandleTransfer
		items, err := rs.handleTransfer(ctx, rc, a, transfers)
		if err != nil {
			return step{}, err
		}
		st.items = append(st.items, items...)
	}

	return st, nil
}

// finalize handles a response without tool calls. With an output schema the
// response only ends the run if its text matches the schema; otherwise it is
// kept as an assistant message and the loop continues.
func (rs *run) finalize(rc *core.RunContext, resp model.Response) (step, error) {
	a := rs.active
	item := core.NewAssistantMessage(a.Name(), resp.Content)
	text := resp.Text()

	var output any = text
	if out := a.OutputSchema(); out != nil {
		doc, err := out.Parse(text)
		if err != nil {
			rs.logger.Debug("runner.output.mismatch", "run_id", rs.runID, "agent", a.Name(), "turn", rs.turn, "error", err.Error())
			return step{items: []core.Item{item}}, nil
		}
		output = doc
	}

	if len(rs.opts.OutputGuardrails) > 0 {
		if err := guardrail.RunOutput(rc, rs.opts.OutputGuardrails, output); err != nil {
			rs.traceGuardrail(rc.Context, err)
			return step{}, err
		}
	}

	rs.finalOutput = output
	rs.finalText = text
	return step{items: []core.Item{item}, done: true}, nil
}

func (rs *run) handleTools(rc *core.RunContext, a *agent.Agent, calls []core.FunctionCall) ([]core.Item, error) {
	exec := &toolExecutor{
		maxParallel: rs.opts.MaxParallelTools,
		emit:        func(ev tracing.Event) { rs.emit(rc.Context, ev) },
	}

	outcomes, err := exec.execute(rc, a, calls)
	if err != nil {
		return nil, err
	}

	items := make([]core.Item, 0, 2*len(outcomes))
	for _, out := range outcomes {
		items = append(items,
			core.NewToolCall(a.Name(), out.call),
			core.NewToolResult(a.Name(), out.call.ID, out.call.Name, out.result, out.err),
		)
	}
	return items, nil
}

// handleTransfer applies the first transfer request and answers any further
// ones with an error result. An unknown target aborts the run.
func (rs *run) handleTransfer(ctx context.Context, rc *core.RunContext, a *agent.Agent, calls []core.FunctionCall) ([]core.Item, error) {
	first := calls[0]

	target, err := requestedTarget(rc, a, first)
	if err != nil {
		return nil, &core.InvalidTransferTargetError{Agent: a.Name(), Target: target, Permitted: a.TransferNames()}
	}
	next, ok := a.TransferTarget(target)
	if !ok {
		return nil, &core.InvalidTransferTargetError{Agent: a.Name(), Target: target, Permitted: a.TransferNames()}
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("transfer target %s: %w", target, err)
	}

	items := []core.Item{
		core.NewToolCall(a.Name(), first),
		core.NewTransferMarker(a.Name(), first.ID, first.Name, target),
	}
	for _, fc := range calls[1:] {
		items = append(items,
			core.NewToolCall(a.Name(), fc),
			core.NewToolResult(a.Name(), fc.ID, fc.Name, nil, errExtraTransfer),
		)
	}

	rs.logger.Info("runner.transfer", "run_id", rs.runID, "from_agent", a.Name(), "to_agent", target, "turn", rs.turn)
	rs.emit(ctx, tracing.Event{Type: tracing.EventTransfer, Agent: a.Name(), Target: target})
	rs.active = next
	return items, nil
}

// requestedTarget runs the transfer tool for fc and returns the agent it
// asked for.
func requestedTarget(rc *core.RunContext, a *agent.Agent, fc core.FunctionCall) (string, error) {
	target, err := tool.ParseTransferArguments(fc.Arguments)
	if err != nil {
		return "", err
	}
	tt := a.TransferTool()
	if tt == nil {
		return target, fmt.Errorf("agent %s has no transfer targets", a.Name())
	}
	args, err := decodeArguments(fc.Arguments)
	if err != nil {
		return target, err
	}
	tc := core.NewToolContext(rc, fc.ID)
	if _, err := tt.Call(tc, args); err != nil {
		return target, err
	}
	requested, ok := tc.TransferRequest()
	if !ok {
		return target, errors.New("transfer tool did not request a transfer")
	}
	return requested, nil
}

// persist appends the run's input and generated items to the session memory
// of the active agent. It runs once, on exit.
func (rs *run) persist(ctx context.Context) error {
	if rs.sessionID == "" || !rs.committed || !rs.active.Memory().Enabled() {
		return nil
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rs.opts.PersistTimeout)
	defer cancel()

	mem, err := rs.active.Memory().Resolve(pctx)
	if err != nil {
		return core.NewStorageError(rs.sessionID, "resolve", err)
	}

	items := make([]core.Item, 0, len(rs.input)+len(rs.generated))
	items = append(items, rs.input...)
	items = append(items, rs.generated...)

	err = mem.AppendToSession(pctx, rs.sessionID, items)
	rs.emit(pctx, tracing.Event{Type: tracing.EventMemoryAppend, Items: len(items), Err: err})
	if err != nil {
		rs.logger.Error("runner.memory.append.failed", "run_id", rs.runID, "session_id", rs.sessionID, "error", err.Error())
		return core.NewStorageError(rs.sessionID, "append", err)
	}
	rs.logger.Debug("runner.memory.append", "run_id", rs.runID, "session_id", rs.sessionID, "items", len(items))
	return nil
}

// history returns a fresh slice of prior history, input and completed steps.
func (rs *run) history() []core.Item {
	h := make([]core.Item, 0, len(rs.prior)+len(rs.input)+len(rs.generated))
	h = append(h, rs.prior...)
	h = append(h, rs.input...)
	h = append(h, rs.generated...)
	return h
}

func (rs *run) runContext(ctx context.Context) *core.RunContext {
	return core.NewRunContext(ctx, rs.runID, rs.sessionID, rs.active.Name(), rs.turn, rs.vars, rs.history(), rs.logger)
}

func (rs *run) snapshot(step State) RunState {
	return RunState{
		RunID:    rs.runID,
		State:    StateFailed,
		Step:     step,
		Agent:    rs.active.Name(),
		Turn:     rs.turn,
		History:  core.CloneItems(rs.history()),
		NewItems: core.CloneItems(rs.generated),
		Pending:  rs.pending,
		Usage:    rs.usage,
	}
}

func (rs *run) traceGuardrail(ctx context.Context, err error) {
	var gv *core.GuardrailViolationError
	if errors.As(err, &gv) {
		rs.emit(ctx, tracing.Event{Type: tracing.EventGuardrailTripped, Guardrail: gv.Guardrail, Stage: string(gv.Stage)})
	}
}

// emit stamps ev with the run identity and delivers it to the tracer.
func (rs *run) emit(ctx context.Context, ev tracing.Event) {
	ev.RunID = rs.runID
	ev.SessionID = rs.sessionID
	if ev.Agent == "" {
		ev.Agent = rs.active.Name()
	}
	if ev.Turn == 0 {
		ev.Turn = rs.turn
	}
	tracing.Notify(ctx, rs.opts.Tracer, ev, rs.logger)
}

// textContent returns the non tool-call parts of c.
func textContent(c core.Content) core.Content {
	out := core.Content{Role: c.Role}
	for _, p := range c.Parts {
		if _, ok := p.(core.FunctionCallPart); ok {
			continue
		}
		out.Parts = append(out.Parts, p)
	}
	return out
}
