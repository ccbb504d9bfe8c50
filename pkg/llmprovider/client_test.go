package llmprovider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dummyArgs struct {
	ClaimID string `json:"claim_id" jsonschema:"required,description=the claim to evaluate"`
}

func TestSchemaForReflectsRequiredField(t *testing.T) {
	schema, err := SchemaFor[dummyArgs]()
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Contains(t, schema.Required, "claim_id")
}

func TestBuildRequestCarriesToolsAndMessages(t *testing.T) {
	schema, err := SchemaFor[dummyArgs]()
	require.NoError(t, err)

	req := buildRequest("gpt-test", []Message{
		{Role: RoleSystem, Content: "you are a judge"},
		{Role: RoleUser, Content: "evaluate c1"},
	}, []ToolDef{
		{Name: "evaluate_claim", Description: "score a claim", Schema: schema},
	})

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "evaluate_claim", req.Tools[0].Function.Name)
}

func TestBuildRequestCarriesToolCallsOnAssistantMessages(t *testing.T) {
	req := buildRequest("gpt-test", []Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-1", Name: "add_claim", Arguments: `{"id":"c1"}`}}},
		{Role: RoleTool, ToolCallID: "call-1", Name: "add_claim", Content: `{"ok":true}`},
	}, nil)

	require.Len(t, req.Messages, 2)
	require.Len(t, req.Messages[0].ToolCalls, 1)
	assert.Equal(t, "add_claim", req.Messages[0].ToolCalls[0].Function.Name)
	assert.Equal(t, "call-1", req.Messages[1].ToolCallID)
}
