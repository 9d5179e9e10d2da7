// Package llms provides chat completion providers behind a common interface.
//
// Three backends are supported: OpenAI-compatible endpoints, Ollama, and
// Google Gemini. Providers that can constrain a reply to a JSON schema
// additionally implement StructuredOutputProvider; the intent analyzer and
// the JSON agent mode depend on that capability.
package llms

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls carries native tool invocations on assistant turns.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName identify the invocation a role "tool"
	// turn answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage builds the turn that feeds a tool's output back to the
// model after a native tool call.
func ToolResultMessage(callID, toolName, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		ToolName:   toolName,
	}
}

// ToolCall is a provider-issued request to invoke a named tool.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolDefinition declares a callable tool to the model. Parameters holds a
// JSON schema for the tool's input.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Stream chunk types.
const (
	ChunkText     = "text"
	ChunkToolCall = "tool_call"
	ChunkDone     = "done"
	ChunkError    = "error"
)

// StreamChunk is one unit of a streaming completion. The channel carries
// zero or more text and tool_call chunks followed by exactly one done or
// error chunk.
type StreamChunk struct {
	Type     string
	Text     string
	ToolCall *ToolCall
	Tokens   int
	Error    error
}

// StructuredOutputConfig asks a provider to constrain its reply shape.
type StructuredOutputConfig struct {
	// Format selects the output mode. Only "json" is meaningful today.
	Format string

	// Schema is the JSON schema (a map[string]interface{}) the reply must
	// satisfy. Nil requests free-form JSON.
	Schema interface{}
}
