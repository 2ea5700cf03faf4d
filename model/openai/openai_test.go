package openai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/schema"
)

func TestBuildMessages(t *testing.T) {
	history := testutil.NewHistoryBuilder("assistant").
		User("weather in Berlin?").
		Tool(testutil.Call("c1", "weather", `{"city":"Berlin"}`), map[string]any{"temp": 21}, nil).
		Tool(testutil.Call("c2", "forecast", `{}`), nil, errors.New("down")).
		Assistant("It is 21 degrees.").
		Build()
	history = append(history, core.NewTransferMarker("assistant", "c3", "transfer_to_agent", "billing"))

	msgs := buildMessages(model.Request{Instructions: "be helpful", Input: history})
	require.Len(t, msgs, 8)

	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Equal(t, "c1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.Equal(t, `{"city":"Berlin"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	require.NotNil(t, msgs[4].OfAssistant)
	require.NotNil(t, msgs[5].OfTool)
	require.NotNil(t, msgs[6].OfAssistant)
	require.NotNil(t, msgs[7].OfTool)
	assert.Equal(t, "c3", msgs[7].OfTool.ToolCallID)
}

func TestBuildParams(t *testing.T) {
	m := NewModelFromClient(nil, func(o *Options) { o.Model = "gpt-test" })

	type answer struct {
		City string `json:"city"`
	}
	req := model.Request{
		Tools:  []model.ToolDefinition{model.NewToolDefinition("lookup", "Look up", map[string]any{"type": "object"})},
		Output: schema.NewOutput("answer", answer{}),
	}
	params := m.buildParams(req, nil)

	assert.Equal(t, "gpt-test", params.Model)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "lookup", params.Tools[0].Function.Name)
	require.NotNil(t, params.ResponseFormat.OfJSONSchema)
	assert.Equal(t, "answer", params.ResponseFormat.OfJSONSchema.JSONSchema.Name)
}

func TestFinalPartsOrdersToolCalls(t *testing.T) {
	var b strings.Builder
	b.WriteString("hi")
	parts := finalParts(&b, map[int64]*aggCall{
		1: {id: "b", name: "second"},
		0: {id: "a", name: "first"},
	})
	require.Len(t, parts, 3)
	assert.Equal(t, core.TextPart{Text: "hi"}, parts[0])
	assert.Equal(t, "first", parts[1].(core.FunctionCallPart).FunctionCall.Name)
	assert.Equal(t, "second", parts[2].(core.FunctionCallPart).FunctionCall.Name)
}
