// Package schema derives JSON schemas from Go types and validates documents
// against them. It backs tool argument validation and structured output
// matching in the runner.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents a schema violation with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation (empty for the root)
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
	Issues  []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Reflect creates a JSON schema from a Go value's type. Field names follow
// json tags; fields without omitempty are required. Descriptions and
// constraints come from `jsonschema:"..."` tags.
func Reflect(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := reflector.Reflect(v)

	m, err := toMap(s)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

func toMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile parses a schema map once for repeated validation.
func Compile(s map[string]any) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}
	return compiled, nil
}

// Validate checks doc against s. It returns a *ValidationError describing the
// first violation, with every violation listed in Issues.
func Validate(doc any, s map[string]any) error {
	compiled, err := Compile(s)
	if err != nil {
		return err
	}
	return ValidateCompiled(doc, compiled)
}

// ValidateCompiled checks doc against a compiled schema.
func ValidateCompiled(doc any, compiled *gojsonschema.Schema) error {
	result, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return &ValidationError{Message: err.Error(), Value: doc}
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	first := errs[0]
	ve := &ValidationError{
		Field:   fieldOf(first),
		Value:   first.Value(),
		Message: first.Description(),
	}
	for _, e := range errs {
		ve.Issues = append(ve.Issues, e.String())
	}
	return ve
}

func fieldOf(e gojsonschema.ResultError) string {
	if e.Type() == "required" {
		if p, ok := e.Details()["property"].(string); ok {
			return p
		}
	}
	f := e.Field()
	if f == rootContext {
		return ""
	}
	return strings.TrimPrefix(f, rootContext+".")
}

const rootContext = "(root)"
