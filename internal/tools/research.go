package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"walletai/internal/trace"

	bravesearch "github.com/cnosuke/go-brave-search"
)

const (
	maxPageBytes       = 100 * 1024
	defaultSearchCount = 5
	maxSearchCount     = 10
)

var (
	scriptRe  = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
)

// TokenSearch is the research_token tool: a Brave web search scoped to a
// token or project the wallet holds.
type TokenSearch struct {
	brave *bravesearch.Client
}

func NewTokenSearch(braveAPIKey string) (*TokenSearch, error) {
	client, err := bravesearch.NewClient(braveAPIKey)
	if err != nil {
		return nil, fmt.Errorf("creating brave client: %w", err)
	}
	return &TokenSearch{brave: client}, nil
}

func (s *TokenSearch) Name() string { return "research_token" }
func (s *TokenSearch) Description() string {
	return "Search the web for news, audits and fundamentals of a token or protocol held by the wallet"
}

func (s *TokenSearch) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"token": map[string]any{
				"type":        "string",
				"description": "Token symbol, name or contract address",
			},
			"chain": map[string]any{
				"type":        "string",
				"description": "Chain the token lives on, empty if unknown",
			},
			"topic": map[string]any{
				"type":        "string",
				"description": "What to look for, e.g. news, audit, tokenomics. Empty for a general search",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results (default 5, max 10)",
			},
		},
		"required":             []string{"token", "chain", "topic", "count"},
		"additionalProperties": false,
	}
}

func (s *TokenSearch) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Token string `json:"token"`
		Chain string `json:"chain"`
		Topic string `json:"topic"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing research_token input: %w", err)
	}
	query := tokenQuery(args.Token, args.Chain, args.Topic)
	if query == "" {
		return "", errors.New("token is required")
	}
	count := args.Count
	if count <= 0 {
		count = defaultSearchCount
	}
	count = min(count, maxSearchCount)

	slog.Debug("research_token: searching", "query", query, "count", count)

	resp, err := s.brave.WebSearch(ctx, query, &bravesearch.WebSearchParams{Count: count})
	if err != nil {
		return "", fmt.Errorf("brave search: %w", err)
	}
	results := resp.GetWebResults()
	if len(results) == 0 {
		return fmt.Sprintf("No results for %q.", query), nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", r.Title, r.URL, htmlTagRe.ReplaceAllString(r.Description, ""))
	}
	return truncate([]byte(b.String())), nil
}

func tokenQuery(token, chain, topic string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	parts := []string{token}
	if chain = strings.TrimSpace(chain); chain != "" {
		parts = append(parts, chain)
	}
	parts = append(parts, "crypto")
	if topic = strings.TrimSpace(topic); topic != "" {
		parts = append(parts, topic)
	}
	return strings.Join(parts, " ")
}

// FetchPage is the fetch_page tool. It returns the visible text of an http(s)
// page, for reading a result of research_token.
type FetchPage struct {
	http *http.Client
}

func NewFetchPage(client *http.Client) *FetchPage {
	if client == nil {
		client = trace.HTTPClient(30 * time.Second)
	}
	return &FetchPage{http: client}
}

func (f *FetchPage) Name() string { return "fetch_page" }
func (f *FetchPage) Description() string {
	return "Fetch a web page and return its text, e.g. a project site or an article found by research_token"
}

func (f *FetchPage) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "http or https URL to fetch",
			},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}

func (f *FetchPage) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing fetch_page input: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(args.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("not an http(s) url: %q", args.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "walletai/1.0")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	text := pageText(string(body))
	slog.Debug("fetch_page: done", "url", u.String(), "bytes", len(text))
	return truncate([]byte(text)), nil
}

func pageText(html string) string {
	html = scriptRe.ReplaceAllString(html, " ")
	html = htmlTagRe.ReplaceAllString(html, " ")
	return strings.Join(strings.Fields(html), " ")
}
