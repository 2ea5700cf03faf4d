package testutil

import "github.com/hupe1980/agentloop/core"

// HistoryBuilder constructs conversation histories with fluent chaining.
//
//	items := NewHistoryBuilder("assistant").User("hi").Assistant("hello").Build()
type HistoryBuilder struct {
	agent string
	items []core.Item
}

// NewHistoryBuilder creates a builder attributing generated items to agent.
func NewHistoryBuilder(agent string) *HistoryBuilder {
	return &HistoryBuilder{agent: agent}
}

// User appends a user message (chainable).
func (b *HistoryBuilder) User(text string) *HistoryBuilder {
	b.items = append(b.items, core.NewUserMessage(text))
	return b
}

// Assistant appends an assistant message (chainable).
func (b *HistoryBuilder) Assistant(text string) *HistoryBuilder {
	b.items = append(b.items, core.NewAssistantMessage(b.agent, core.Content{Parts: []core.Part{core.TextPart{Text: text}}}))
	return b
}

// Tool appends a tool call and its result (chainable).
func (b *HistoryBuilder) Tool(fc core.FunctionCall, result any, err error) *HistoryBuilder {
	b.items = append(b.items,
		core.NewToolCall(b.agent, fc),
		core.NewToolResult(b.agent, fc.ID, fc.Name, result, err),
	)
	return b
}

// Build returns the items numbered from zero.
func (b *HistoryBuilder) Build() []core.Item {
	return core.Renumber(b.items, 0)
}
