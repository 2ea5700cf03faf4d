package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemKind tags the variant of a conversation Item.
type ItemKind string

const (
	// ItemUserMessage is input authored by the caller.
	ItemUserMessage ItemKind = "user_message"
	// ItemAssistantMessage is model produced text or structured output.
	ItemAssistantMessage ItemKind = "assistant_message"
	// ItemToolCall is a model request to invoke a tool.
	ItemToolCall ItemKind = "tool_call"
	// ItemToolResult is the outcome of a tool call, successful or not.
	ItemToolResult ItemKind = "tool_result"
	// ItemTransferMarker records the hand over of control to another agent.
	ItemTransferMarker ItemKind = "transfer_marker"
)

// Valid reports whether k is one of the known item kinds.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemUserMessage, ItemAssistantMessage, ItemToolCall, ItemToolResult, ItemTransferMarker:
		return true
	}
	return false
}

// Role names used in Content.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Item is the immutable unit of conversation history. Items are append-only
// within a session: once created they are never mutated, and their position
// (Ordinal) is the sole source of truth for replay.
//
// Content is treated as an opaque payload by storage backends; it is encoded
// losslessly through Content's JSON codec.
type Item struct {
	ID        string    `json:"id"`
	Kind      ItemKind  `json:"kind"`
	Ordinal   int       `json:"ordinal"`
	Agent     string    `json:"agent,omitempty"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

func newItem(kind ItemKind, agent string, content Content) Item {
	return Item{
		ID:        NewID(),
		Kind:      kind,
		Agent:     agent,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage creates a user message item with a single text part.
func NewUserMessage(text string) Item {
	return newItem(ItemUserMessage, "", Content{Role: RoleUser, Parts: []Part{TextPart{Text: text}}})
}

// NewUserItem creates a user message item from arbitrary content.
func NewUserItem(content Content) Item {
	content.Role = RoleUser
	return newItem(ItemUserMessage, "", content.Clone())
}

// NewAssistantMessage creates an assistant message item authored by agent.
func NewAssistantMessage(agent string, content Content) Item {
	content.Role = RoleAssistant
	return newItem(ItemAssistantMessage, agent, content.Clone())
}

// NewToolCall creates a tool call item for fc requested by agent.
func NewToolCall(agent string, fc FunctionCall) Item {
	return newItem(ItemToolCall, agent, Content{
		Role:  RoleAssistant,
		Parts: []Part{FunctionCallPart{FunctionCall: fc}},
	})
}

// NewToolResult creates a tool result item. A non-nil err is recorded in the
// response's Error field and result is dropped. The result is normalized to its
// JSON form so the in-memory item equals its persisted counterpart.
func NewToolResult(agent, callID, name string, result any, err error) Item {
	fr := FunctionResponse{ID: callID, Name: name}
	if err != nil {
		fr.Error = err.Error()
	} else {
		fr.Response = normalizeJSON(result)
	}
	return newItem(ItemToolResult, agent, Content{
		Role:  RoleTool,
		Parts: []Part{FunctionResponsePart{FunctionResponse: fr}},
	})
}

// NewTransferMarker records that agent handed control to target in response
// to the transfer call identified by callID.
func NewTransferMarker(agent, callID, callName, target string) Item {
	return newItem(ItemTransferMarker, agent, Content{
		Role: RoleTool,
		Parts: []Part{FunctionResponsePart{
			FunctionResponse: FunctionResponse{
				ID:       callID,
				Name:     callName,
				Response: map[string]any{"assistant": target},
			},
			Metadata: map[string]any{"transfer_from": agent, "transfer_to": target},
		}},
	})
}

// Text returns the concatenated text of the item.
func (it Item) Text() string { return it.Content.Text() }

// FunctionCall returns the call carried by a tool call item.
func (it Item) FunctionCall() (FunctionCall, bool) {
	for _, p := range it.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			return fc.FunctionCall, true
		}
	}
	return FunctionCall{}, false
}

// FunctionResponse returns the response carried by a tool result or transfer marker.
func (it Item) FunctionResponse() (FunctionResponse, bool) {
	for _, p := range it.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			return fr.FunctionResponse, true
		}
	}
	return FunctionResponse{}, false
}

// TransferTarget returns the target agent name of a transfer marker.
func (it Item) TransferTarget() (string, bool) {
	if it.Kind != ItemTransferMarker {
		return "", false
	}
	for _, p := range it.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			if to, ok := fr.Metadata["transfer_to"].(string); ok {
				return to, true
			}
		}
	}
	return "", false
}

// Clone returns a copy of the item that shares no slices with the original.
func (it Item) Clone() Item {
	it.Content = it.Content.Clone()
	return it
}

// UnmarshalJSON rejects unknown item kinds.
func (it *Item) UnmarshalJSON(b []byte) error {
	type alias Item
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown item kind %q", a.Kind)
	}
	*it = Item(a)
	return nil
}

// CloneItems copies a slice of items.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Renumber returns a copy of items with ordinals assigned consecutively from start.
func Renumber(items []Item, start int) []Item {
	out := CloneItems(items)
	for i := range out {
		out[i].Ordinal = start + i
	}
	return out
}

// MarshalItems encodes an ordered item sequence.
func MarshalItems(items []Item) ([]byte, error) {
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

// UnmarshalItems decodes an ordered item sequence produced by MarshalItems.
func UnmarshalItems(b []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func normalizeJSON(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := decodeJSON(b, &out); err != nil {
		return string(b)
	}
	return restoreNumbers(out)
}
