package runner

import "github.com/hupe1980/agentloop/core"

// Input is the new input of a run: either a text message or a pre-built item
// sequence. An item sequence is the complete conversation and cannot be
// combined with a session id.
type Input struct {
	text    string
	items   []core.Item
	isItems bool
}

// Text creates a user message input.
func Text(s string) Input { return Input{text: s} }

// Items creates an input from pre-built items.
func Items(items ...core.Item) Input {
	return Input{items: core.CloneItems(items), isItems: true}
}

// IsItems reports whether the input is a pre-built item sequence.
func (in Input) IsItems() bool { return in.isItems }

func (in Input) toItems(start int) []core.Item {
	if in.isItems {
		return core.Renumber(in.items, start)
	}
	return core.Renumber([]core.Item{core.NewUserMessage(in.text)}, start)
}
