package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Output describes the shape an agent's final answer must have. A response
// only counts as final output when its text parses as JSON and validates
// against Schema.
type Output struct {
	Name        string
	Description string
	Schema      map[string]any
	// Strict asks providers that support it to enforce the schema server side.
	Strict bool

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

// NewOutput derives the output shape from a sample Go value (struct or pointer to struct).
func NewOutput(name string, sample any) *Output {
	return &Output{Name: name, Schema: Reflect(sample), Strict: true}
}

// NewOutputFromSchema wraps an explicit JSON schema.
func NewOutputFromSchema(name string, s map[string]any) *Output {
	return &Output{Name: name, Schema: s}
}

// Parse extracts a JSON document from text and validates it. Markdown code
// fences around the document are tolerated.
func (o *Output) Parse(text string) (any, error) {
	o.once.Do(func() { o.compiled, o.err = Compile(o.Schema) })
	if o.err != nil {
		return nil, o.err
	}

	raw := stripFences(text)
	if raw == "" {
		return nil, &ValidationError{Message: "empty output"}
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("output is not valid JSON: %v", err), Value: text}
	}
	if err := ValidateCompiled(doc, o.compiled); err != nil {
		return nil, err
	}
	return doc, nil
}

// Matches reports whether text is a valid instance of the output shape.
func (o *Output) Matches(text string) bool {
	_, err := o.Parse(text)
	return err == nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
