package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	out, err = RenderTemplate(`Hello {{.name | title}}, tier {{default "free" .tier}}`, map[string]any{"name": "aLICE"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice, tier free", out)

	out, err = RenderTemplate(`{{join ", " .items}}`, map[string]any{"items": []any{"a", 1}})
	require.NoError(t, err)
	assert.Equal(t, "a, 1", out)

	_, err = RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
