package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// Part type discriminators used in the serialized form.
const (
	PartTypeText             = "text"
	PartTypeData             = "data"
	PartTypeFunctionCall     = "function_call"
	PartTypeFunctionResponse = "function_response"
)

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., a decoded JSON object or a
// provider specific payload kept as an opaque blob).
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (DataPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Provider assigned call id
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall   `json:"function_call"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string `json:"name"`               // Function name
	Response any    `json:"response,omitempty"` // Successful result (any JSON shape)
	Error    string `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse `json:"function_response"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, tool, system)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Text concatenates all text parts of the content.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// FunctionCalls returns the function calls contained in the content in order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// Clone returns a copy of the content with its own parts slice.
func (c Content) Clone() Content {
	parts := make([]Part, len(c.Parts))
	copy(parts, c.Parts)
	return Content{Role: c.Role, Parts: parts}
}

type partEnvelope struct {
	Type             string            `json:"type"`
	Text             *string           `json:"text,omitempty"`
	Data             map[string]any    `json:"data,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

type contentJSON struct {
	Role  string            `json:"role,omitempty"`
	Parts []json.RawMessage `json:"parts"`
}

// MarshalJSON encodes the parts with a type discriminator.
func (c Content) MarshalJSON() ([]byte, error) {
	out := contentJSON{Role: c.Role, Parts: make([]json.RawMessage, 0, len(c.Parts))}
	for i, p := range c.Parts {
		env, err := toEnvelope(p)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		out.Parts = append(out.Parts, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes parts using their type discriminator.
//
// Numbers inside Data, Metadata and function responses keep their precision:
// integral literals decode as int64 (json.Number when out of range), all
// others as float64. Text is stored as JSON strings, so invalid UTF-8 in a
// TextPart comes back with U+FFFD in place of the offending bytes.
func (c *Content) UnmarshalJSON(b []byte) error {
	var in contentJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	c.Role = in.Role
	c.Parts = make([]Part, 0, len(in.Parts))
	for i, raw := range in.Parts {
		var env partEnvelope
		if err := decodeJSON(raw, &env); err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		p, err := fromEnvelope(env)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		c.Parts = append(c.Parts, p)
	}
	return nil
}

func toEnvelope(p Part) (partEnvelope, error) {
	switch v := p.(type) {
	case TextPart:
		text := v.Text
		return partEnvelope{Type: PartTypeText, Text: &text, Metadata: v.Metadata}, nil
	case DataPart:
		return partEnvelope{Type: PartTypeData, Data: v.Data, Metadata: v.Metadata}, nil
	case FunctionCallPart:
		fc := v.FunctionCall
		return partEnvelope{Type: PartTypeFunctionCall, FunctionCall: &fc, Metadata: v.Metadata}, nil
	case FunctionResponsePart:
		fr := v.FunctionResponse
		return partEnvelope{Type: PartTypeFunctionResponse, FunctionResponse: &fr, Metadata: v.Metadata}, nil
	default:
		return partEnvelope{}, fmt.Errorf("unsupported part type %T", p)
	}
}

func fromEnvelope(env partEnvelope) (Part, error) {
	switch env.Type {
	case PartTypeText:
		var text string
		if env.Text != nil {
			text = *env.Text
		}
		return TextPart{Text: text, Metadata: restoreMap(env.Metadata)}, nil
	case PartTypeData:
		return DataPart{Data: restoreMap(env.Data), Metadata: restoreMap(env.Metadata)}, nil
	case PartTypeFunctionCall:
		if env.FunctionCall == nil {
			return nil, fmt.Errorf("function_call part without payload")
		}
		return FunctionCallPart{FunctionCall: *env.FunctionCall, Metadata: restoreMap(env.Metadata)}, nil
	case PartTypeFunctionResponse:
		if env.FunctionResponse == nil {
			return nil, fmt.Errorf("function_response part without payload")
		}
		fr := *env.FunctionResponse
		fr.Response = restoreNumbers(fr.Response)
		return FunctionResponsePart{FunctionResponse: fr, Metadata: restoreMap(env.Metadata)}, nil
	default:
		return nil, fmt.Errorf("unknown part type %q", env.Type)
	}
}

// decodeJSON unmarshals b keeping numbers as json.Number.
func decodeJSON(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

func restoreMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = restoreNumbers(v)
	}
	return m
}

// restoreNumbers replaces the json.Number values in a decoded document.
func restoreNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		return numberValue(x)
	case map[string]any:
		return restoreMap(x)
	case []any:
		for i, e := range x {
			x[i] = restoreNumbers(e)
		}
		return x
	default:
		return v
	}
}

func numberValue(n json.Number) any {
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
		return n
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n
}
