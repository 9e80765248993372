package llm

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"finplan/models"
)

// OllamaRuntime talks to a local Ollama server through langchaingo. This is
// the default runtime.
type OllamaRuntime struct {
	llm *ollama.LLM
}

// NewOllamaRuntime connects to the Ollama server at serverURL, or the
// client's default (OLLAMA_HOST / localhost) when empty. The model is chosen
// per call, not here.
func NewOllamaRuntime(serverURL string) (*OllamaRuntime, error) {
	opts := []ollama.Option{}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ollama client")
	}
	return &OllamaRuntime{llm: client}, nil
}

func (r *OllamaRuntime) Chat(ctx context.Context, model string, conv *models.Conversation, opts ChatOptions) (*Reply, error) {
	callOpts := []llms.CallOption{llms.WithModel(model)}
	if len(opts.Tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toLangchainTools(opts.Tools)))
	}

	resp, err := r.llm.GenerateContent(ctx, toMessageContents(conv), callOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "ollama chat failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("ollama returned no choices")
	}

	choice := resp.Choices[0]
	reply := &Reply{Content: choice.Content}
	if opts.Think {
		reply.Thinking, reply.Content = splitThinking(choice.Content)
	}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return nil, errors.Wrapf(err, "failed to parse arguments for tool %s", tc.FunctionCall.Name)
			}
		}
		reply.ToolRequests = append(reply.ToolRequests, models.ToolRequest{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		})
	}

	return reply, nil
}

func (r *OllamaRuntime) Stream(ctx context.Context, model string, conv *models.Conversation, fn StreamFunc) error {
	_, err := r.llm.GenerateContent(ctx, toMessageContents(conv),
		llms.WithModel(model),
		llms.WithStreamingFunc(fn),
	)
	return errors.Wrap(err, "ollama stream failed")
}

func toMessageContents(conv *models.Conversation) []llms.MessageContent {
	var messages []llms.MessageContent

	for _, turn := range conv.Turns() {
		switch turn.Role {
		case models.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, turn.Content))
		case models.RoleAssistant:
			// Thinking stays out of the resent conversation.
			msg := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if turn.Content != "" {
				msg.Parts = append(msg.Parts, llms.TextContent{Text: turn.Content})
			}
			for _, req := range turn.ToolRequests {
				args, _ := json.Marshal(req.Arguments)
				msg.Parts = append(msg.Parts, llms.ToolCall{
					ID:   req.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      req.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)
		case models.RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: turn.ToolRequestID,
					Name:       turn.ToolName,
					Content:    turn.Content,
				}},
			})
		}
	}

	return messages
}

func toLangchainTools(specs []ToolSpec) []llms.Tool {
	tools := make([]llms.Tool, len(specs))
	for i, spec := range specs {
		tools[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		}
	}
	return tools
}
