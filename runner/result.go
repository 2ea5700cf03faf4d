package runner

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// RunResult is the outcome of a successful run.
type RunResult struct {
	RunID     string
	SessionID string
	// FinalOutput is the decoded JSON document when the final agent declares
	// an output schema, the final text otherwise.
	FinalOutput any
	FinalText   string
	// Input holds the new input items of the run.
	Input []core.Item
	// NewItems holds every item generated during the run.
	NewItems  []core.Item
	LastAgent string
	Turns     int
	Usage     model.TokenUsage
	Duration  time.Duration

	prior []core.Item
}

// ToInputList returns prior history, input and new items as one sequence,
// ready to be passed as Items input of a follow-up run.
func (r *RunResult) ToInputList() []core.Item {
	out := make([]core.Item, 0, len(r.prior)+len(r.Input)+len(r.NewItems))
	out = append(out, r.prior...)
	out = append(out, r.Input...)
	out = append(out, r.NewItems...)
	return core.CloneItems(out)
}

// DecodeFinalOutput decodes the final output into v.
func (r *RunResult) DecodeFinalOutput(v any) error {
	b, err := json.Marshal(r.FinalOutput)
	if err != nil {
		return fmt.Errorf("encode final output: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode final output: %w", err)
	}
	return nil
}
