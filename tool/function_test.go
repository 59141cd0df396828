package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoTool() *FunctionTool {
	return NewFunctionTool("echo", "Echo the input text",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	)
}

func TestFunctionToolCall(t *testing.T) {
	echo := newEchoTool()

	result, err := echo.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestFunctionToolValidationError(t *testing.T) {
	echo := newEchoTool()

	_, err := echo.Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidationError, toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionToolWrapsExecutionError(t *testing.T) {
	failing := NewFunctionTool("flaky", "Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		},
	)

	_, err := failing.Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecutionError, toolErr.Code)
	assert.Equal(t, "backend unavailable", toolErr.Message)
}

func TestFunctionToolPreservesCustomToolError(t *testing.T) {
	custom := NewFunctionTool("custom", "Returns its own tool error",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", NewToolError("custom", "quota exhausted", "QUOTA_ERROR")
		},
	)

	_, err := custom.Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "QUOTA_ERROR", toolErr.Code)
}

type schemaArgs struct {
	Query string `json:"query" description:"The search query"`
	Limit *int   `json:"limit,omitempty" description:"Maximum results"`
}

func TestFunctionToolFromStruct(t *testing.T) {
	search := NewFunctionToolFromStruct("lookup", "Look something up", schemaArgs{},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "ok", nil
		},
	)

	params := search.Parameters()
	assert.Equal(t, "object", params["type"])

	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")

	required, ok := params["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"query"}, required)

	// Required field enforced, optional field not.
	_, err := search.Call(context.Background(), map[string]any{})
	assert.Error(t, err)

	_, err = search.Call(context.Background(), map[string]any{"query": "go"})
	assert.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(newEchoTool())
	registry.Register(NewFunctionTool("beta", "Another tool",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(ctx context.Context, args map[string]any) (string, error) { return "", nil },
	))

	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, []string{"beta", "echo"}, registry.Names())

	echo, ok := registry.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", echo.Name())

	_, ok = registry.Get("missing")
	assert.False(t, ok)

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "beta", defs[0].Name)
	assert.Equal(t, "echo", defs[1].Name)
	assert.Equal(t, "Echo the input text", defs[1].Description)
	assert.NotNil(t, defs[1].Parameters)
}
