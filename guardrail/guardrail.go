// Package guardrail runs safety and validation checks on the input of a run
// (before the first model call) and on its final output. A tripped guardrail
// aborts the run with a *core.GuardrailViolationError carrying the offending
// content and the guardrail's rationale.
package guardrail

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentloop/core"
)

// Result is the verdict of one check.
type Result struct {
	// Tripped reports a violation.
	Tripped bool
	// Rationale is optional structured detail for the caller.
	Rationale any
}

// Pass is the verdict of a successful check.
func Pass() Result { return Result{} }

// Trip is the verdict of a failed check.
func Trip(rationale any) Result { return Result{Tripped: true, Rationale: rationale} }

// Input checks the items a run starts with.
type Input interface {
	Name() string
	CheckInput(rc *core.RunContext, input []core.Item) (Result, error)
}

// Output checks the final output of a run.
type Output interface {
	Name() string
	CheckOutput(rc *core.RunContext, output any) (Result, error)
}

type inputFunc struct {
	name string
	fn   func(rc *core.RunContext, input []core.Item) (Result, error)
}

// NewInput adapts a function to an input guardrail.
func NewInput(name string, fn func(rc *core.RunContext, input []core.Item) (Result, error)) Input {
	return &inputFunc{name: name, fn: fn}
}

func (g *inputFunc) Name() string { return g.name }

func (g *inputFunc) CheckInput(rc *core.RunContext, input []core.Item) (Result, error) {
	return g.fn(rc, input)
}

type outputFunc struct {
	name string
	fn   func(rc *core.RunContext, output any) (Result, error)
}

// NewOutput adapts a function to an output guardrail.
func NewOutput(name string, fn func(rc *core.RunContext, output any) (Result, error)) Output {
	return &outputFunc{name: name, fn: fn}
}

func (g *outputFunc) Name() string { return g.name }

func (g *outputFunc) CheckOutput(rc *core.RunContext, output any) (Result, error) {
	return g.fn(rc, output)
}

// RunInput executes the guardrails concurrently. When several trip, the
// violation of the first one in guards order is returned.
func RunInput(rc *core.RunContext, guards []Input, input []core.Item) error {
	if len(guards) == 0 {
		return nil
	}
	checks := make([]check, len(guards))
	for i, g := range guards {
		checks[i] = check{name: g.Name(), run: func(rc *core.RunContext) (Result, error) {
			return g.CheckInput(rc, core.CloneItems(input))
		}}
	}
	return run(rc, core.GuardrailInput, checks, input)
}

// RunOutput executes the output guardrails concurrently.
func RunOutput(rc *core.RunContext, guards []Output, output any) error {
	if len(guards) == 0 {
		return nil
	}
	checks := make([]check, len(guards))
	for i, g := range guards {
		checks[i] = check{name: g.Name(), run: func(rc *core.RunContext) (Result, error) {
			return g.CheckOutput(rc, output)
		}}
	}
	return run(rc, core.GuardrailOutput, checks, output)
}

type check struct {
	name string
	run  func(rc *core.RunContext) (Result, error)
}

func run(rc *core.RunContext, stage core.GuardrailStage, checks []check, content any) error {
	results := make([]Result, len(checks))

	eg, ctx := errgroup.WithContext(rc.Context)
	scoped := *rc
	scoped.Context = ctx

	for i, c := range checks {
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s guardrail %q panicked: %v", stage, c.name, r)
				}
			}()
			res, err := c.run(&scoped)
			if err != nil {
				return fmt.Errorf("%s guardrail %q: %w", stage, c.name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		if res.Tripped {
			rc.LogWarn("guardrail.tripped", "guardrail", checks[i].name, "stage", string(stage))
			return &core.GuardrailViolationError{
				Guardrail: checks[i].name,
				Stage:     stage,
				Content:   content,
				Rationale: res.Rationale,
			}
		}
	}
	return nil
}
