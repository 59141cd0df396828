package core

// Role identifies the conversational origin of a message.
type Role string

const (
	// RoleUser marks messages authored by the human user (or substituted on
	// behalf of the user, e.g. worker failure notices).
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by the worker or evaluator models.
	RoleAssistant Role = "assistant"
	// RoleSystem marks the single instruction message at the head of the
	// transcript.
	RoleSystem Role = "system"
	// RoleTool marks tool execution results correlated to a prior tool call.
	RoleTool Role = "tool"
)

// ToolCall is a structured request emitted by the worker asking to invoke a
// named tool. ID is an opaque correlation token unique within a worker turn;
// Arguments is the decoded key/value argument mapping.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one element of the conversation transcript. Ordering is
// significant. Messages are owned by session state and treated as immutable
// once appended, with the single documented exception of the system message
// content rewrite performed by the worker (see State.SetSystemMessage).
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is set on assistant messages requesting tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID correlates a tool-role message to its originating ToolCall.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Name is the tool name on tool-role messages.
	Name string `json:"name,omitempty"`
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant-authored text message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewToolResultMessage records the outcome (or formatted error) of a tool
// call. Exactly one is produced per ToolCall, always, even on failure.
func NewToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Name: name}
}

// HasToolCalls reports whether the message carries tool call requests.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }
