package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/schema"
)

func TestBuildMessages_MergesRoles(t *testing.T) {
	history := testutil.NewHistoryBuilder("assistant").
		User("weather in Berlin and Paris?").
		Tool(testutil.Call("c1", "weather", `{"city":"Berlin"}`), "sunny", nil).
		Tool(testutil.Call("c2", "weather", `{"city":"Paris"}`), "rain", nil).
		Assistant("Berlin is sunny, Paris rainy.").
		Build()

	msgs := buildMessages(history)
	// user, assistant(tool_use), user(tool_result), assistant(tool_use),
	// user(tool_result), assistant(text)
	require.Len(t, msgs, 6)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[5].Role)
}

func TestSystemPrompt(t *testing.T) {
	s, err := systemPrompt(model.Request{Instructions: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "be brief", s)

	type answer struct {
		City string `json:"city"`
	}
	s, err = systemPrompt(model.Request{Instructions: "be brief", Output: schema.NewOutput("answer", answer{})})
	require.NoError(t, err)
	assert.Contains(t, s, "be brief")
	assert.Contains(t, s, `"city"`)
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a"}, requiredFields([]string{"a"}))
	assert.Equal(t, []string{"a", "b"}, requiredFields([]any{"a", "b", 3}))
	assert.Nil(t, requiredFields(nil))
}
