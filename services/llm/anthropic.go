package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"

	"finplan/models"
)

const anthropicMaxTokens = 4096

// AnthropicRuntime drives the Anthropic Messages API. Selected via
// LLM_PROVIDER=anthropic for deployments without a local model server.
type AnthropicRuntime struct {
	client *anthropic.Client
}

func NewAnthropicRuntime(apiKey string) *AnthropicRuntime {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicRuntime{client: &client}
}

func (r *AnthropicRuntime) Chat(ctx context.Context, model string, conv *models.Conversation, opts ChatOptions) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages:  toAnthropicMessages(conv),
	}
	if len(opts.Tools) > 0 {
		params.Tools = toAnthropicTools(opts.Tools)
	}
	if opts.Think {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(2048)
	}

	response, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic chat failed")
	}

	reply := &Reply{}
	for _, block := range response.Content {
		switch block := block.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Content += block.Text
		case anthropic.ThinkingBlock:
			reply.Thinking += block.Thinking
		case anthropic.ToolUseBlock:
			inputJSON, _ := json.Marshal(block.Input)
			args := map[string]any{}
			json.Unmarshal(inputJSON, &args)
			reply.ToolRequests = append(reply.ToolRequests, models.ToolRequest{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			})
		}
	}

	return reply, nil
}

func (r *AnthropicRuntime) Stream(ctx context.Context, model string, conv *models.Conversation, fn StreamFunc) error {
	stream := r.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages:  toAnthropicMessages(conv),
	})

	for stream.Next() {
		event := stream.Current()
		switch event := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := event.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := fn(ctx, []byte(delta.Text)); err != nil {
					return err
				}
			}
		}
	}

	return errors.Wrap(stream.Err(), "anthropic stream failed")
}

func toAnthropicMessages(conv *models.Conversation) []anthropic.MessageParam {
	var messages []anthropic.MessageParam

	var pendingResults []anthropic.ContentBlockParamUnion
	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, turn := range conv.Turns() {
		switch turn.Role {
		case models.RoleUser:
			flushResults()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleAssistant:
			flushResults()
			contentBlocks := []anthropic.ContentBlockParamUnion{}
			if turn.Content != "" {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: turn.Content},
				})
			}
			for _, req := range turn.ToolRequests {
				contentBlocks = append(contentBlocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    req.ID,
						Name:  req.Name,
						Input: req.Arguments,
					},
				})
			}
			messages = append(messages, anthropic.NewAssistantMessage(contentBlocks...))
		case models.RoleTool:
			// Consecutive tool results go into a single user message.
			pendingResults = append(pendingResults, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: turn.ToolRequestID,
					Content: []anthropic.ToolResultBlockParamContentUnion{
						{OfText: &anthropic.TextBlockParam{Text: turn.Content}},
					},
				},
			})
		}
	}
	flushResults()

	return messages
}

func toAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	var tools []anthropic.ToolUnionParam
	for _, spec := range specs {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: spec.Parameters["properties"],
				},
			},
		})
	}
	return tools
}
