package agent

import (
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
)

// Provider computes the system instructions for one model call from the
// current run view.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a plain function to Provider.
type Func func(*core.RunContext) (string, error)

// Instruction calls f.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either fixed text or a Provider evaluated per step.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText returns fixed instructions.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider returns instructions computed by p.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc returns instructions computed by f.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate creates an Instruction rendered as a
// text/template against the run variables, e.g. "Greet {{.user | title}}".
func NewInstructionFromTemplate(text string) Instruction {
	return NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		return util.RenderTemplate(text, rc.Vars)
	})
}

// IsStatic reports whether the text is fixed.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the text for the step described by rc.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}
