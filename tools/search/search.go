// Package search provides the internet_search tool backed by a
// Tavily-compatible search API.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	deepagent "github.com/yukot/deepagent"
)

// DefaultBaseURL is the hosted search API endpoint.
const DefaultBaseURL = "https://api.tavily.com"

// Topics accepted by the search API.
const (
	TopicGeneral = "general"
	TopicNews    = "news"
	TopicFinance = "finance"
)

// Tool performs web searches via a Tavily-compatible API.
type Tool struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(t *Tool) { t.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tool) { t.httpClient = c }
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tool) { t.logger = l }
}

// New creates a search Tool with the given API key.
func New(apiKey string, opts ...Option) *Tool {
	t := &Tool{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Definitions() []deepagent.ToolDefinition {
	return []deepagent.ToolDefinition{{
		Name:        "internet_search",
		Description: "Run a web search for current information. Use for recent events, news, prices, or anything that needs up-to-date data.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search query optimized for a search engine"},
				"max_results": {"type": "integer", "default": 5, "description": "Maximum number of results to return"},
				"topic": {"type": "string", "enum": ["general", "news", "finance"], "default": "general"},
				"include_raw_content": {"type": "boolean", "default": false, "description": "Include full readable page text per result"}
			},
			"required": ["query"]
		}`),
	}}
}

// Params are the internet_search arguments.
type Params struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	Topic             string `json:"topic"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (deepagent.ToolResult, error) {
	var params Params
	if err := json.Unmarshal(args, &params); err != nil {
		return deepagent.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if params.Query == "" {
		return deepagent.ToolResult{Error: "query is required"}, nil
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 5
	}
	if params.Topic == "" {
		params.Topic = TopicGeneral
	}

	content, err := t.Search(ctx, params)
	if err != nil {
		return deepagent.ToolResult{Error: err.Error()}, nil
	}
	return deepagent.ToolResult{Content: content}, nil
}

// Result is one search hit.
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

// apiResponse pairs the hits with the API's direct answer, if any.
type apiResponse struct {
	results []Result
	answer  string
}

// Search runs the query and formats the hits for model consumption.
// Transient API failures (429, 503) are retried with backoff.
func (t *Tool) Search(ctx context.Context, params Params) (string, error) {
	resp, err := deepagent.Retry(ctx, t.logger, func() (apiResponse, error) {
		return t.apiSearch(ctx, params)
	})
	if err != nil {
		return "", err
	}
	results, answer := resp.results, resp.answer
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", params.Query), nil
	}

	if params.IncludeRawContent {
		t.fillMissingRawContent(ctx, results)
	}
	return formatResults(params.Query, answer, results, params.IncludeRawContent), nil
}

func (t *Tool) apiSearch(ctx context.Context, params Params) (apiResponse, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":             t.apiKey,
		"query":               params.Query,
		"max_results":         params.MaxResults,
		"topic":               params.Topic,
		"include_raw_content": params.IncludeRawContent,
	})
	if err != nil {
		return apiResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", strings.NewReader(string(body)))
	if err != nil {
		return apiResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apiResponse{}, &deepagent.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(data),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var payload struct {
		Answer  string   `json:"answer"`
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return apiResponse{}, fmt.Errorf("search parse: %w", err)
	}
	if len(payload.Results) > params.MaxResults {
		payload.Results = payload.Results[:params.MaxResults]
	}
	return apiResponse{results: payload.Results, answer: payload.Answer}, nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// fillMissingRawContent fetches pages the API returned without raw content
// and extracts their readable text concurrently.
func (t *Tool) fillMissingRawContent(ctx context.Context, results []Result) {
	var wg sync.WaitGroup
	for i := range results {
		if results[i].RawContent != "" || results[i].URL == "" {
			continue
		}
		wg.Add(1)
		go func(r *Result) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
			defer cancel()
			text, err := t.extractReadable(fetchCtx, r.URL)
			if err != nil {
				t.logger.Warn("raw content fetch failed", "url", r.URL, "err", err)
				return
			}
			r.RawContent = text
		}(&results[i])
	}
	wg.Wait()
}

// extractReadable downloads a page and reduces it to readable text.
func (t *Tool) extractReadable(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; deepagent/1.0)")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", &deepagent.ErrHTTP{Status: resp.StatusCode, Body: pageURL}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, 512<<10), req.URL)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > 8000 {
		text = text[:8000]
	}
	return text, nil
}

// formatResults renders hits as a numbered list the model can cite.
func formatResults(query, answer string, results []Result, includeRaw bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	if answer != "" {
		fmt.Fprintf(&b, "\nAnswer: %s\n", answer)
	}
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Content != "" {
			fmt.Fprintf(&b, "   %s\n", r.Content)
		}
		if includeRaw && r.RawContent != "" {
			fmt.Fprintf(&b, "   ---\n   %s\n", r.RawContent)
		}
	}
	return b.String()
}
