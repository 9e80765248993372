package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"finplan/models"
	"finplan/services/llm"
)

// scriptedRuntime returns canned replies in order, repeating the last one
// once the script is exhausted.
type scriptedRuntime struct {
	replies  []*llm.Reply
	err      error
	calls    int
	convLens []int
	tools    [][]llm.ToolSpec
}

func (r *scriptedRuntime) Chat(ctx context.Context, model string, conv *models.Conversation, opts llm.ChatOptions) (*llm.Reply, error) {
	r.convLens = append(r.convLens, conv.Len())
	r.tools = append(r.tools, opts.Tools)
	index := r.calls
	if index >= len(r.replies) {
		index = len(r.replies) - 1
	}
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.replies[index], nil
}

func (r *scriptedRuntime) Stream(ctx context.Context, model string, conv *models.Conversation, fn llm.StreamFunc) error {
	return nil
}

type stubTool struct {
	name   string
	result string
	err    error
	inputs []string
}

func (t *stubTool) Name() string           { return t.name }
func (t *stubTool) Description() string    { return "stub tool for tests" }
func (t *stubTool) Schema() map[string]any { return map[string]any{"type": "object"} }

func (t *stubTool) Call(ctx context.Context, input string) (string, error) {
	t.inputs = append(t.inputs, input)
	return t.result, t.err
}

func newTestService(runtime llm.Runtime, tools []Tool, cfg Config) *Service {
	return NewService(runtime, tools, zerolog.Nop(), cfg)
}

func TestRunTerminatesOnToolFreeReply(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{{Content: "You can afford it."}}}
	service := newTestService(runtime, nil, Config{})

	conv := models.NewConversation(models.NewUserTurn("Can I afford a home?"))
	answer, err := service.Run(context.Background(), conv, "gemma3:27b")
	if err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}

	if answer != "You can afford it." {
		t.Errorf("answer = %q, expected the reply content", answer)
	}
	if runtime.calls != 1 {
		t.Errorf("runtime called %d times, expected exactly one round", runtime.calls)
	}
	if conv.Len() != 2 {
		t.Errorf("conversation has %d turns, expected 2 (user, assistant)", conv.Len())
	}
}

func TestRunExecutesRegisteredTool(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{
		{
			Content: "Let me check current rates.",
			ToolRequests: []models.ToolRequest{
				{ID: "call-1", Name: "web_search", Arguments: map[string]any{"query": "mortgage rates"}},
			},
		},
		{Content: "Rates are around 6%."},
	}}
	search := &stubTool{name: "web_search", result: "6.1% average"}
	service := newTestService(runtime, []Tool{search}, Config{})

	conv := models.NewConversation(models.NewUserTurn("What are rates?"))
	answer, err := service.Run(context.Background(), conv, "gemma3:27b")
	if err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}

	if answer != "Rates are around 6%." {
		t.Errorf("answer = %q", answer)
	}
	if runtime.calls != 2 {
		t.Errorf("runtime called %d times, expected a second round after the tool result", runtime.calls)
	}

	turns := conv.Turns()
	if len(turns) != 4 {
		t.Fatalf("conversation has %d turns, expected 4 (user, assistant, tool, assistant)", len(turns))
	}
	result := turns[2]
	if result.Role != models.RoleTool || result.ToolName != "web_search" || result.ToolRequestID != "call-1" {
		t.Errorf("result turn = %+v, expected tool result for web_search call-1", result)
	}
	if result.Content != "6.1% average" {
		t.Errorf("result content = %q", result.Content)
	}

	if len(search.inputs) != 1 || !strings.Contains(search.inputs[0], "mortgage rates") {
		t.Errorf("tool inputs = %v, expected one call carrying the query", search.inputs)
	}
}

func TestRunDispatchesAllRequestsInOrder(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{
		{ToolRequests: []models.ToolRequest{
			{ID: "a", Name: "web_search", Arguments: map[string]any{"query": "taxes 94105"}},
			{ID: "b", Name: "web_fetch", Arguments: map[string]any{"url": "https://example.com"}},
		}},
		{Content: "done"},
	}}
	search := &stubTool{name: "web_search", result: "search result"}
	fetch := &stubTool{name: "web_fetch", result: "fetch result"}
	service := newTestService(runtime, []Tool{search, fetch}, Config{})

	conv := models.NewConversation(models.NewUserTurn("go"))
	if _, err := service.Run(context.Background(), conv, "gemma3:27b"); err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}

	turns := conv.Turns()
	if len(turns) != 5 {
		t.Fatalf("conversation has %d turns, expected 5", len(turns))
	}
	if turns[2].ToolRequestID != "a" || turns[2].ToolName != "web_search" {
		t.Errorf("first result turn = %+v, expected result for request a", turns[2])
	}
	if turns[3].ToolRequestID != "b" || turns[3].ToolName != "web_fetch" {
		t.Errorf("second result turn = %+v, expected result for request b", turns[3])
	}
}

func TestRunUnknownToolIsRecoverable(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{
		{ToolRequests: []models.ToolRequest{{ID: "x", Name: "web_serch", Arguments: map[string]any{}}}},
		{Content: "recovered"},
	}}
	search := &stubTool{name: "web_search", result: "unused"}
	service := newTestService(runtime, []Tool{search}, Config{})

	conv := models.NewConversation(models.NewUserTurn("go"))
	answer, err := service.Run(context.Background(), conv, "gemma3:27b")
	if err != nil {
		t.Fatalf("unknown tool must not fail the request, got: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q", answer)
	}

	result := conv.Turns()[2]
	if result.Role != models.RoleTool || result.ToolName != "web_serch" {
		t.Fatalf("expected a synthetic result turn for the unknown tool, got %+v", result)
	}
	if !strings.Contains(result.Content, "not available") {
		t.Errorf("synthetic result %q should state the tool is unknown", result.Content)
	}
	if !strings.Contains(result.Content, `"web_search"`) {
		t.Errorf("synthetic result %q should suggest the closest registered tool", result.Content)
	}
	if len(search.inputs) != 0 {
		t.Errorf("registered tool must not run for an unknown name, got inputs %v", search.inputs)
	}
}

func TestRunToolFailureIsRecoverable(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{
		{ToolRequests: []models.ToolRequest{{ID: "x", Name: "web_fetch", Arguments: map[string]any{"url": "https://example.com"}}}},
		{Content: "worked around it"},
	}}
	fetch := &stubTool{name: "web_fetch", err: errors.New("connection refused")}
	service := newTestService(runtime, []Tool{fetch}, Config{})

	conv := models.NewConversation(models.NewUserTurn("go"))
	answer, err := service.Run(context.Background(), conv, "gemma3:27b")
	if err != nil {
		t.Fatalf("tool failure should be recoverable, got: %v", err)
	}
	if answer != "worked around it" {
		t.Errorf("answer = %q", answer)
	}

	result := conv.Turns()[2]
	if !strings.Contains(result.Content, "web_fetch failed") || !strings.Contains(result.Content, "connection refused") {
		t.Errorf("result content %q should carry the failure for the model to react to", result.Content)
	}
}

func TestRunTruncatesToolResults(t *testing.T) {
	const limit = 50

	tests := []struct {
		name       string
		result     string
		wantLen    int
		wantSuffix string
	}{
		{
			name:       "long result truncated to the limit",
			result:     strings.Repeat("a", 500),
			wantLen:    limit,
			wantSuffix: "...",
		},
		{
			name:    "short result untouched",
			result:  "short result",
			wantLen: len("short result"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runtime := &scriptedRuntime{replies: []*llm.Reply{
				{ToolRequests: []models.ToolRequest{{ID: "x", Name: "web_search", Arguments: map[string]any{}}}},
				{Content: "done"},
			}}
			search := &stubTool{name: "web_search", result: tt.result}
			service := newTestService(runtime, []Tool{search}, Config{MaxToolResultChars: limit})

			conv := models.NewConversation(models.NewUserTurn("go"))
			if _, err := service.Run(context.Background(), conv, "gemma3:27b"); err != nil {
				t.Fatalf("Run() returned unexpected error: %v", err)
			}

			content := conv.Turns()[2].Content
			if len(content) != tt.wantLen {
				t.Errorf("result length = %d, expected %d", len(content), tt.wantLen)
			}
			if tt.wantSuffix != "" && !strings.HasSuffix(content, tt.wantSuffix) {
				t.Errorf("truncated result %q should end with %q", content, tt.wantSuffix)
			}
			if tt.wantSuffix == "" && content != tt.result {
				t.Errorf("short result modified: %q != %q", content, tt.result)
			}
		})
	}
}

func TestRunRoundLimit(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{
		{
			Content:      "still researching",
			ToolRequests: []models.ToolRequest{{ID: "x", Name: "web_search", Arguments: map[string]any{}}},
		},
	}}
	search := &stubTool{name: "web_search", result: "more data"}
	service := newTestService(runtime, []Tool{search}, Config{MaxRounds: 1})

	conv := models.NewConversation(models.NewUserTurn("go"))
	_, err := service.Run(context.Background(), conv, "gemma3:27b")

	var limitErr *RoundLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *RoundLimitError, got %v", err)
	}
	if limitErr.Rounds != 1 {
		t.Errorf("Rounds = %d, expected 1", limitErr.Rounds)
	}
	if limitErr.LastContent != "still researching" {
		t.Errorf("LastContent = %q, expected the last assistant content", limitErr.LastContent)
	}
	if runtime.calls != 1 {
		t.Errorf("runtime called %d times, the cap must stop the loop after round 1", runtime.calls)
	}
}

func TestRunPropagatesModelFailure(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{{}}, err: errors.New("runtime unreachable")}
	service := newTestService(runtime, nil, Config{})

	conv := models.NewConversation(models.NewUserTurn("go"))
	_, err := service.Run(context.Background(), conv, "gemma3:27b")
	if err == nil || !strings.Contains(err.Error(), "runtime unreachable") {
		t.Errorf("model failure must propagate, got: %v", err)
	}
}

func TestRunDeclaresToolsToRuntime(t *testing.T) {
	runtime := &scriptedRuntime{replies: []*llm.Reply{{Content: "ok"}}}
	search := &stubTool{name: "web_search"}
	fetch := &stubTool{name: "web_fetch"}
	service := newTestService(runtime, []Tool{search, fetch}, Config{})

	conv := models.NewConversation(models.NewUserTurn("go"))
	if _, err := service.Run(context.Background(), conv, "gemma3:27b"); err != nil {
		t.Fatalf("Run() returned unexpected error: %v", err)
	}

	if len(runtime.tools) != 1 || len(runtime.tools[0]) != 2 {
		t.Fatalf("expected both tools declared on the single round, got %v", runtime.tools)
	}
	if runtime.tools[0][0].Name != "web_search" || runtime.tools[0][1].Name != "web_fetch" {
		t.Errorf("declared tools = %v, expected registry order preserved", runtime.tools[0])
	}
}
