package models

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolRequest is a tool invocation asked for by the model. It is only ever
// produced by the model, never by the caller.
type ToolRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Turn is one entry in a conversation. Which fields are set depends on the
// role: user turns carry Content; assistant turns carry Content, optional
// Thinking and optional ToolRequests; tool turns carry the result of a single
// tool request.
type Turn struct {
	Role          Role          `json:"role"`
	Content       string        `json:"content,omitempty"`
	Thinking      string        `json:"thinking,omitempty"`
	ToolRequests  []ToolRequest `json:"tool_requests,omitempty"`
	ToolName      string        `json:"tool_name,omitempty"`
	ToolRequestID string        `json:"tool_request_id,omitempty"`
}

func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func NewAssistantTurn(content, thinking string, requests []ToolRequest) Turn {
	return Turn{Role: RoleAssistant, Content: content, Thinking: thinking, ToolRequests: requests}
}

func NewToolResultTurn(requestID, toolName, content string) Turn {
	return Turn{Role: RoleTool, ToolRequestID: requestID, ToolName: toolName, Content: content}
}

// Conversation is the ordered exchange history for a single request. It is
// append-only: turns are never mutated or removed once added. Each request
// owns its conversation exclusively, so no locking is needed.
type Conversation struct {
	turns []Turn
}

func NewConversation(turns ...Turn) *Conversation {
	return &Conversation{turns: turns}
}

func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

func (c *Conversation) Turns() []Turn {
	return c.turns
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

// Rounds counts the assistant turns, i.e. how many model replies the
// conversation has absorbed.
func (c *Conversation) Rounds() int {
	count := 0
	for _, t := range c.turns {
		if t.Role == RoleAssistant {
			count++
		}
	}
	return count
}
