package ai

// Chat roles shared by all backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a chat completion request.
type Message struct {
	Role    string
	Content string

	// Name is the tool name for RoleTool messages.
	Name string
	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string
	// ToolCalls carries the calls an assistant turn requested.
	ToolCalls []ToolCall
}

// Tool describes a function the model may call. Parameters is a JSON
// Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a function invocation requested by the model. Arguments is
// the raw JSON argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Request is a single chat completion request.
type Request struct {
	System      string
	Messages    []Message
	Tools       []Tool
	Temperature float32
}

// Completion is the model's reply. ToolCalls is non-empty when the model
// wants tools executed before it can answer.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}
