package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/schema"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures an Agent. Use functional options with New to override
// defaults.
type Options struct {
	// Description is shown to other agents that may transfer to this one.
	Description string
	Instruction Instruction
	// Tools are advertised to the model in order.
	Tools []tool.Tool
	// Transfers are the agents this agent may hand control to.
	Transfers []*Agent
	// OutputSchema, when set, makes the run continue until a response
	// validates against it.
	OutputSchema *schema.Output
	// Memory selects where the conversation history of sessions lives.
	Memory memory.Policy
}

// Agent is an immutable description of one participant in a run: its model,
// instructions, tools, permitted transfer targets, output shape and memory
// policy. The runner never mutates an Agent; a transfer only swaps which
// Agent is active.
type Agent struct {
	name        string
	description string
	llm         model.Model
	instruction Instruction
	tools       []tool.Tool
	transfers   []*Agent
	output      *schema.Output
	memory      memory.Policy
}

// New creates an agent. Without an explicit instruction the agent introduces
// itself by name; without a memory option it keeps no history.
func New(name string, llm model.Model, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		Memory:      memory.Disabled(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Agent{
		name:        name,
		description: opts.Description,
		llm:         llm,
		instruction: opts.Instruction,
		tools:       append([]tool.Tool(nil), opts.Tools...),
		transfers:   append([]*Agent(nil), opts.Transfers...),
		output:      opts.OutputSchema,
		memory:      opts.Memory,
	}
}

// WithInstruction sets a static instruction.
func WithInstruction(text string) func(o *Options) {
	return func(o *Options) { o.Instruction = NewInstructionFromText(text) }
}

// WithTools appends tools.
func WithTools(tools ...tool.Tool) func(o *Options) {
	return func(o *Options) { o.Tools = append(o.Tools, tools...) }
}

// WithTransfers appends permitted transfer targets.
func WithTransfers(targets ...*Agent) func(o *Options) {
	return func(o *Options) { o.Transfers = append(o.Transfers, targets...) }
}

// WithOutputSchema sets the structured output shape.
func WithOutputSchema(out *schema.Output) func(o *Options) {
	return func(o *Options) { o.OutputSchema = out }
}

// WithMemory sets the memory policy.
func WithMemory(p memory.Policy) func(o *Options) {
	return func(o *Options) { o.Memory = p }
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent description.
func (a *Agent) Description() string { return a.description }

// Model returns the model driving the agent.
func (a *Agent) Model() model.Model { return a.llm }

// Instruction returns the instruction source.
func (a *Agent) Instruction() Instruction { return a.instruction }

// Instructions resolves the instruction text for a run step.
func (a *Agent) Instructions(rc *core.RunContext) (string, error) {
	text, err := a.instruction.Resolve(rc)
	if err != nil {
		return "", fmt.Errorf("resolve instruction of agent %s: %w", a.name, err)
	}
	return text, nil
}

// Tools returns a copy of the agent's tools.
func (a *Agent) Tools() []tool.Tool { return append([]tool.Tool(nil), a.tools...) }

// Tool returns the tool named name.
func (a *Agent) Tool(name string) (tool.Tool, bool) { return tool.Find(a.tools, name) }

// Transfers returns a copy of the permitted transfer targets.
func (a *Agent) Transfers() []*Agent { return append([]*Agent(nil), a.transfers...) }

// TransferNames returns the names of the permitted transfer targets.
func (a *Agent) TransferNames() []string {
	names := make([]string, len(a.transfers))
	for i, t := range a.transfers {
		names[i] = t.name
	}
	return names
}

// TransferTarget returns the permitted target named name.
func (a *Agent) TransferTarget(name string) (*Agent, bool) {
	for _, t := range a.transfers {
		if t.name == name {
			return t, true
		}
	}
	return nil, false
}

// OutputSchema returns the structured output shape, nil for free text.
func (a *Agent) OutputSchema() *schema.Output { return a.output }

// Memory returns the memory policy.
func (a *Agent) Memory() memory.Policy { return a.memory }

// Clone returns a copy of the agent with optFns applied on top of its
// current configuration. The receiver is left untouched.
func (a *Agent) Clone(name string, optFns ...func(o *Options)) *Agent {
	base := func(o *Options) {
		o.Description = a.description
		o.Instruction = a.instruction
		o.Tools = append([]tool.Tool(nil), a.tools...)
		o.Transfers = append([]*Agent(nil), a.transfers...)
		o.OutputSchema = a.output
		o.Memory = a.memory
	}
	return New(name, a.llm, append([]func(o *Options){base}, optFns...)...)
}

// ToolDefinitions returns the definitions advertised to the model: the
// agent's tools followed by the transfer tool when transfers are permitted.
func (a *Agent) ToolDefinitions() []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(a.tools)+1)
	for _, t := range a.tools {
		defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
	}
	if tr := a.TransferTool(); tr != nil {
		defs = append(defs, model.NewToolDefinition(tr.Name(), tr.Description(), tr.Parameters()))
	}
	return defs
}

// TransferTool returns the transfer tool for the permitted targets, nil when
// the agent cannot transfer.
func (a *Agent) TransferTool() tool.Tool {
	if len(a.transfers) == 0 {
		return nil
	}
	targets := make([]tool.TransferTarget, len(a.transfers))
	for i, t := range a.transfers {
		targets[i] = tool.TransferTarget{Name: t.name, Description: t.description}
	}
	return tool.NewTransferTool(targets...)
}

// Validate checks the configuration before a run uses the agent.
func (a *Agent) Validate() error {
	if a == nil {
		return errors.New("agent is nil")
	}
	if a.name == "" {
		return errors.New("agent name is required")
	}
	if a.llm == nil {
		return fmt.Errorf("agent %s: model is required", a.name)
	}

	seen := make(map[string]struct{}, len(a.tools))
	for _, t := range a.tools {
		if t == nil {
			return fmt.Errorf("agent %s: nil tool", a.name)
		}
		if tool.IsTransfer(t.Name()) {
			return fmt.Errorf("agent %s: tool name %q is reserved", a.name, t.Name())
		}
		if _, dup := seen[t.Name()]; dup {
			return fmt.Errorf("agent %s: duplicate tool %q", a.name, t.Name())
		}
		seen[t.Name()] = struct{}{}
	}

	targets := make(map[string]struct{}, len(a.transfers))
	for _, t := range a.transfers {
		if t == nil {
			return fmt.Errorf("agent %s: nil transfer target", a.name)
		}
		if _, dup := targets[t.name]; dup {
			return fmt.Errorf("agent %s: duplicate transfer target %q", a.name, t.name)
		}
		targets[t.name] = struct{}{}
	}
	return nil
}

func (a *Agent) String() string { return a.name }
