package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	A string `json:"a" jsonschema:"description=Field A"`
	C int    `json:"c,omitempty" jsonschema:"description=Omit empty field"`
}

func TestReflect(t *testing.T) {
	s := Reflect(sampleArgs{})
	assert.Equal(t, "object", s["type"])
	assert.NotContains(t, s, "$schema")

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "c")

	req, _ := s["required"].([]any)
	assert.ElementsMatch(t, []any{"a"}, req)
}

func TestValidate(t *testing.T) {
	s := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, Validate(map[string]any{"x": 5}, s))

	err := Validate(map[string]any{}, s)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "x", ve.Field)

	err = Validate(map[string]any{"x": "not-int"}, s)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "x", ve.Field)
	assert.NotEmpty(t, ve.Issues)
}

func TestValidate_InvalidSchema(t *testing.T) {
	err := Validate(map[string]any{}, map[string]any{"type": 42})
	assert.Error(t, err)
}

type weather struct {
	City string  `json:"city"`
	Temp float64 `json:"temp"`
}

func TestOutput_Parse(t *testing.T) {
	out := NewOutput("weather", weather{})

	doc, err := out.Parse(`{"city":"Berlin","temp":21.5}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Berlin", "temp": 21.5}, doc)

	_, err = out.Parse("```json\n{\"city\":\"Paris\",\"temp\":18}\n```")
	assert.NoError(t, err)

	assert.False(t, out.Matches("It is sunny in Berlin"))
	assert.False(t, out.Matches(`{"city":"Berlin"}`))
	assert.False(t, out.Matches(""))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1} `))
}
