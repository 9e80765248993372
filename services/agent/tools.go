package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Tool is a capability the model may request mid-conversation.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
	Schema() map[string]any
}

// generateSchema builds a JSON schema object from a tool input struct.
func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	result := map[string]any{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return map[string]any{"type": "object"}
	}
	return result
}

const (
	defaultSearchResults = 5
	maxSearchResults     = 10
	maxFetchBytes        = 1 << 20
)

type WebSearchInput struct {
	Query      string `json:"query" jsonschema:"required,description=The search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return (default: 5)"`
}

// WebSearchTool queries a SearxNG-compatible search endpoint and returns the
// top results as plain text.
type WebSearchTool struct {
	endpoint string
	client   *http.Client
}

func NewWebSearchTool(endpoint string, client *http.Client) WebSearchTool {
	if client == nil {
		client = http.DefaultClient
	}
	return WebSearchTool{endpoint: endpoint, client: client}
}

func (t WebSearchTool) Name() string {
	return "web_search"
}

func (t WebSearchTool) Description() string {
	return "Searches the web and returns the title, URL and snippet of the top results"
}

func (t WebSearchTool) Schema() map[string]any {
	return generateSchema[WebSearchInput]()
}

func (t WebSearchTool) Call(ctx context.Context, input string) (string, error) {
	var params WebSearchInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return "", errors.Wrap(err, "failed to parse web search input")
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", errors.New("query must not be empty")
	}
	limit := params.MaxResults
	if limit <= 0 {
		limit = defaultSearchResults
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build search request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "search request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "failed to decode search response")
	}

	if len(payload.Results) == 0 {
		return "No results found.", nil
	}
	if len(payload.Results) > limit {
		payload.Results = payload.Results[:limit]
	}

	var sb strings.Builder
	for i, result := range payload.Results {
		fmt.Fprintf(&sb, "%d. %s\n%s\n%s\n\n", i+1, result.Title, result.URL, result.Content)
	}
	return strings.TrimSpace(sb.String()), nil
}

type WebFetchInput struct {
	URL string `json:"url" jsonschema:"required,description=The URL of the page to fetch"`
}

// WebFetchTool retrieves a URL and reduces HTML pages to readable text.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool(client *http.Client) WebFetchTool {
	if client == nil {
		client = http.DefaultClient
	}
	return WebFetchTool{client: client}
}

func (t WebFetchTool) Name() string {
	return "web_fetch"
}

func (t WebFetchTool) Description() string {
	return "Fetches a web page by URL and returns its readable text content"
}

func (t WebFetchTool) Schema() map[string]any {
	return generateSchema[WebFetchInput]()
}

func (t WebFetchTool) Call(ctx context.Context, input string) (string, error) {
	var params WebFetchInput
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return "", errors.Wrap(err, "failed to parse web fetch input")
	}

	parsed, err := url.Parse(params.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", errors.Errorf("invalid URL %q", params.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build fetch request")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetch of %s returned status %d", params.URL, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", errors.Wrap(err, "failed to read fetch response")
		}
		return string(raw), nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse fetched HTML")
	}
	doc.Find("script, style, noscript, iframe").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return collapseWhitespace(text), nil
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	collapsed := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(collapsed)
}
