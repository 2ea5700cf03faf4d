package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
)

// TransferToolName is the name under which the transfer tool is advertised.
const TransferToolName = "transfer_to_agent"

// TransferTarget describes an agent the model may hand control to.
type TransferTarget struct {
	Name        string
	Description string
}

// transferTool requests hand over of control to one of a fixed set of agents.
// The runner, not the tool, validates the target and swaps the active agent.
type transferTool struct {
	targets []TransferTarget
}

// NewTransferTool constructs the transfer tool for the given targets.
func NewTransferTool(targets ...TransferTarget) Tool {
	return &transferTool{targets: append([]TransferTarget(nil), targets...)}
}

// IsTransfer reports whether a call with the given name is a transfer request.
func IsTransfer(name string) bool { return name == TransferToolName }

func (t *transferTool) Name() string { return TransferToolName }

func (t *transferTool) Description() string {
	var b strings.Builder
	b.WriteString("Transfer the conversation to another agent that is better suited to answer. Available agents:")
	for _, target := range t.targets {
		b.WriteString("\n- ")
		b.WriteString(target.Name)
		if target.Description != "" {
			b.WriteString(": ")
			b.WriteString(target.Description)
		}
	}
	return b.String()
}

func (t *transferTool) Parameters() map[string]any {
	names := make([]any, len(t.targets))
	for i, target := range t.targets {
		names[i] = target.Name
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{
				"type":        "string",
				"description": "Target agent name",
				"enum":        names,
			},
		},
		"required":             []any{"agent"},
		"additionalProperties": false,
	}
}

func (t *transferTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	agentName, err := transferTarget(args)
	if err != nil {
		return nil, err
	}
	tc.TransferToAgent(agentName)
	return map[string]any{"assistant": agentName}, nil
}

// ParseTransferArguments extracts the target agent from the raw JSON
// arguments of a transfer call.
func ParseTransferArguments(arguments string) (string, error) {
	args := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid transfer arguments: %w", err)
		}
	}
	return transferTarget(args)
}

func transferTarget(args map[string]any) (string, error) {
	raw, ok := args["agent"]
	if !ok {
		return "", fmt.Errorf("missing required field 'agent'")
	}
	agentName, ok := raw.(string)
	if !ok || agentName == "" {
		return "", fmt.Errorf("field 'agent' must be non-empty string")
	}
	return agentName, nil
}
