package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleArgs struct {
	Query   string   `json:"query" description:"The search query"`
	Limit   *int     `json:"limit,omitempty" description:"Maximum results"`
	Verbose bool     `json:"verbose,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	ignored string
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Contains(t, props, "verbose")
	assert.Contains(t, props, "tags")
	assert.NotContains(t, props, "ignored")

	query, ok := props["query"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "The search query", query["description"])

	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, required)
}

func TestCreateStrictSchema(t *testing.T) {
	schema := CreateStrictSchema(sampleArgs{})
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestValidateParameters(t *testing.T) {
	schema := CreateSchema(sampleArgs{})

	assert.NoError(t, ValidateParameters(map[string]any{"query": "go"}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"query": "go", "verbose": true}, schema))

	// Missing required field.
	err := ValidateParameters(map[string]any{}, schema)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)

	// Wrong type.
	assert.Error(t, ValidateParameters(map[string]any{"query": 42}, schema))

	// Extra fields are tolerated.
	assert.NoError(t, ValidateParameters(map[string]any{"query": "go", "extra": "x"}, schema))
}
