// Package model defines the unified interface the state machine uses to drive
// LLM generation, decoupled from provider SDKs. Two roles exist: a
// tool-capable chat completion (Model) and a structured-output judge
// completion (StructuredModel). Provider adapters live in subpackages.
package model

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/sidekick/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flow nodes.
type Request struct {
	Messages []core.Message   `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed assistant turn returned by a model.
type Response struct {
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flow nodes to drive generation.
// Implementations classify provider failures via the invoke package so the
// retry layer can distinguish fatal from transient faults.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ResponseSchema names and describes a JSON schema for constrained decoding.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// StructuredModel is implemented by models that support provider-side
// constrained decoding into a caller supplied schema. Callers that receive a
// Model without this capability fall back to prompt-engineered JSON with
// parse-and-validate.
type StructuredModel interface {
	GenerateStructured(ctx context.Context, req Request, schema ResponseSchema) (json.RawMessage, error)
}
