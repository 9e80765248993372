// Package llm abstracts the external model runtime. The rest of the service
// talks to a Runtime; whether that is a local Ollama server or the Anthropic
// API is decided once at startup.
package llm

import (
	"context"
	"strings"

	"finplan/models"
)

// ToolSpec declares one tool to the model. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatOptions tune a single non-streaming exchange.
type ChatOptions struct {
	// Think asks the model for an internal deliberation pass. The thinking
	// text is surfaced on the Reply but must never be sent back to the model.
	Think bool
	Tools []ToolSpec
}

// Reply is the model's structured answer to one round.
type Reply struct {
	Content      string
	Thinking     string
	ToolRequests []models.ToolRequest
}

// StreamFunc receives one fragment of model output. Returning an error aborts
// the stream.
type StreamFunc func(ctx context.Context, chunk []byte) error

// Runtime is the external model runtime. Both methods block until the model
// is done and honor context cancellation.
type Runtime interface {
	// Chat sends the full conversation and returns the model's reply, which
	// may contain tool requests.
	Chat(ctx context.Context, model string, conv *models.Conversation, opts ChatOptions) (*Reply, error)

	// Stream sends the conversation in streaming mode, invoking fn once per
	// fragment in the order the runtime produces them.
	Stream(ctx context.Context, model string, conv *models.Conversation, fn StreamFunc) error
}

// splitThinking separates a leading <think> block from the visible content.
// Reasoning models served through Ollama emit deliberation inline in this
// format; callers treat it as a log-only annotation.
func splitThinking(content string) (thinking, rest string) {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if !strings.HasPrefix(trimmed, "<think>") {
		return "", content
	}
	end := strings.Index(trimmed, "</think>")
	if end < 0 {
		return "", content
	}
	thinking = strings.TrimSpace(trimmed[len("<think>"):end])
	rest = strings.TrimLeft(trimmed[end+len("</think>"):], " \t\r\n")
	return thinking, rest
}
