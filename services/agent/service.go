// Package agent drives the multi-turn, tool-augmented exchange with the
// model runtime: it sends the growing conversation, executes the tool
// requests the model issues, and feeds results back until the model produces
// a tool-free answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"finplan/models"
	"finplan/services/llm"
)

const (
	defaultMaxRounds          = 8
	defaultMaxToolResultChars = 8000
)

type Config struct {
	// MaxRounds bounds the number of chat rounds per request so a model
	// that keeps requesting tools cannot loop forever.
	MaxRounds int

	// MaxToolResultChars caps the length of a tool result before it is
	// appended to the conversation.
	MaxToolResultChars int

	// Think asks the runtime for a deliberation pass; the thinking text is
	// logged and kept on the assistant turn but never resent to the model.
	Think bool
}

// RoundLimitError is returned when the round cap is hit before the model
// produced a tool-free answer. LastContent carries the model's most recent
// textual content as a best-effort partial answer.
type RoundLimitError struct {
	Rounds      int
	LastContent string
}

func (e *RoundLimitError) Error() string {
	return fmt.Sprintf("conversation did not terminate within %d rounds", e.Rounds)
}

type Service struct {
	runtime llm.Runtime
	tools   []Tool
	logger  zerolog.Logger
	cfg     Config
}

func NewService(runtime llm.Runtime, tools []Tool, logger zerolog.Logger, cfg Config) *Service {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.MaxToolResultChars <= 0 {
		cfg.MaxToolResultChars = defaultMaxToolResultChars
	}
	return &Service{
		runtime: runtime,
		tools:   tools,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run drives rounds against the model until it answers without tool
// requests. The conversation is append-only: every model reply becomes an
// assistant turn, and every tool request in that reply gets exactly one
// result turn, in request order, before the next round.
func (s *Service) Run(ctx context.Context, conv *models.Conversation, model string) (string, error) {
	specs := s.toolSpecs()
	lastContent := ""

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		reply, err := s.runtime.Chat(ctx, model, conv, llm.ChatOptions{
			Think: s.cfg.Think,
			Tools: specs,
		})
		if err != nil {
			return "", errors.Wrapf(err, "model call failed on round %d", round)
		}

		if reply.Thinking != "" {
			s.logger.Debug().Int("round", round).Str("thinking", reply.Thinking).Msg("model deliberation")
		}

		conv.Append(models.NewAssistantTurn(reply.Content, reply.Thinking, reply.ToolRequests))

		if len(reply.ToolRequests) == 0 {
			s.logger.Info().Int("rounds", round).Msg("conversation terminated")
			return reply.Content, nil
		}
		lastContent = reply.Content

		for _, req := range reply.ToolRequests {
			result := s.dispatch(ctx, req)
			conv.Append(models.NewToolResultTurn(req.ID, req.Name, result))
		}
	}

	s.logger.Warn().Int("rounds", s.cfg.MaxRounds).Msg("round limit exceeded")
	return "", &RoundLimitError{Rounds: s.cfg.MaxRounds, LastContent: lastContent}
}

// dispatch resolves and invokes a single tool request. It always returns
// result content: an unknown tool and a failed invocation both produce a
// message the model can react to instead of aborting the request.
func (s *Service) dispatch(ctx context.Context, req models.ToolRequest) string {
	tool, ok := s.lookup(req.Name)
	if !ok {
		s.logger.Warn().Str("tool", req.Name).Msg("model requested unknown tool")
		return s.unknownToolMessage(req.Name)
	}

	input, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: could not encode arguments for tool %s: %v", req.Name, err)
	}

	s.logger.Info().Str("tool", req.Name).RawJSON("arguments", input).Msg("executing tool")

	result, err := tool.Call(ctx, string(input))
	if err != nil {
		s.logger.Error().Err(err).Str("tool", req.Name).Msg("tool execution failed")
		return fmt.Sprintf("Error: tool %s failed: %v", req.Name, err)
	}

	return lo.Ellipsis(result, s.cfg.MaxToolResultChars)
}

func (s *Service) lookup(name string) (Tool, bool) {
	for _, tool := range s.tools {
		if tool.Name() == name {
			return tool, true
		}
	}
	return nil, false
}

func (s *Service) unknownToolMessage(name string) string {
	names := lo.Map(s.tools, func(t Tool, _ int) string { return t.Name() })
	msg := fmt.Sprintf("Error: tool %q is not available. Available tools: %s.", name, strings.Join(names, ", "))

	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		msg += fmt.Sprintf(" Did you mean %q?", ranks[0].Target)
	}
	return msg
}

func (s *Service) toolSpecs() []llm.ToolSpec {
	return lo.Map(s.tools, func(t Tool, _ int) llm.ToolSpec {
		return llm.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		}
	})
}
