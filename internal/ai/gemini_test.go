package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestCleanJSONString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONString("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONString("  {\"a\":1} "))
}

func TestIntentResult_OpenNowStaysNullable(t *testing.T) {
	var absent, null, yes, no IntentResult
	require.NoError(t, json.Unmarshal([]byte(`{"terms":["ramen"]}`), &absent))
	require.NoError(t, json.Unmarshal([]byte(`{"open_now":null}`), &null))
	require.NoError(t, json.Unmarshal([]byte(`{"open_now":true}`), &yes))
	require.NoError(t, json.Unmarshal([]byte(`{"open_now":false}`), &no))

	assert.Nil(t, absent.OpenNow)
	assert.Nil(t, null.OpenNow)
	require.NotNil(t, yes.OpenNow)
	assert.True(t, *yes.OpenNow)
	require.NotNil(t, no.OpenNow)
	assert.False(t, *no.OpenNow)
}

func TestSchemaFromMap(t *testing.T) {
	s := schemaFromMap(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message":  map[string]any{"type": "string"},
			"question": map[string]any{"type": "string"},
		},
		"required": []any{"message"},
	})
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeString, s.Properties["message"].Type)
	assert.Equal(t, []string{"message"}, s.Required)

	assert.Nil(t, schemaFromMap(nil))
	assert.Nil(t, schemaFromMap(map[string]any{"type": "null"}))
	assert.Nil(t, schemaFromMap(map[string]any{"type": "array"}))
}

func TestIsQuotaError(t *testing.T) {
	assert.True(t, isQuotaError(&googleapi.Error{Code: 429}))
	assert.True(t, isQuotaError(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 429})))
	assert.True(t, isQuotaError(errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED")))
	assert.False(t, isQuotaError(&googleapi.Error{Code: 500}))
	assert.False(t, isQuotaError(errors.New("deadline exceeded")))
}

func TestBuildContextBlock_Defaults(t *testing.T) {
	block := buildContextBlock(nil)
	assert.Contains(t, block, "UNKNOWN_LOCATION")
	assert.Contains(t, block, "UNKNOWN_TIME")

	block = buildContextBlock(map[string]string{"ui_language": "ja", "last_location": "Shibuya"})
	assert.Contains(t, block, "Session UI Language: ja")
	assert.Contains(t, block, "Last Searched Location: Shibuya")
}
