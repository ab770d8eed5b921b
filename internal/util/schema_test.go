package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":    map[string]any{"type": "string"},
			"top_k":    map[string]any{"type": "integer"},
			"material": map[string]any{"type": "string", "enum": []any{"PLA", "PETG"}},
		},
		"required": []string{"query"},
	}

	t.Run("valid", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"query": "warping", "top_k": float64(3)}, schema)
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"top_k": float64(3)}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"query": 42}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "query", verr.Field)
	})

	t.Run("fractional number rejected as integer", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"query": "q", "top_k": 2.5}, schema)
		assert.Error(t, err)
	})

	t.Run("enum violation", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"query": "q", "material": "ABS"}, schema)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "material", verr.Field)
	})

	t.Run("extra fields allowed", func(t *testing.T) {
		err := ValidateArgs(map[string]any{"query": "q", "unknown": true}, schema)
		assert.NoError(t, err)
	})
}

func TestValidateArgsRequiredRoundTrippedThroughJSON(t *testing.T) {
	raw := `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))

	err := ValidateArgs(map[string]any{}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)
}

func TestSchemaFromStruct(t *testing.T) {
	type args struct {
		Query    string   `json:"query" description:"search terms"`
		TopK     int      `json:"top_k,omitempty"`
		Strength *float64 `json:"strength"`
		Internal string   `json:"-"`
	}

	schema := SchemaFromStruct(args{})

	assert.Equal(t, "object", schema["type"])

	properties, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, properties, 3)
	assert.NotContains(t, properties, "Internal")

	query, ok := properties["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "search terms", query["description"])

	topK, ok := properties["top_k"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", topK["type"])

	strength, ok := properties["strength"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "number", strength["type"])

	// omitempty and pointer fields are optional; only query is required.
	assert.Equal(t, []string{"query"}, schema["required"])
}
