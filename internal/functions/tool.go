package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"walletai/internal/trace"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxOutputBytes = 10_000
	maxBodyBytes   = 1 << 20
)

// HTTPTool exposes a Function to the agent. Arguments arrive as the model's
// JSON, go out as query parameters (GET, DELETE) or a JSON body, and the
// response comes back prefixed with the function's feedback text.
type HTTPTool struct {
	fn     Function
	client *http.Client
}

func NewHTTPTool(fn Function, client *http.Client) *HTTPTool {
	if client == nil {
		client = trace.HTTPClient(30 * time.Second)
	}
	fn.Config.Method = strings.ToUpper(fn.Config.Method)
	return &HTTPTool{fn: fn, client: client}
}

// Tools builds one HTTPTool per function sharing a single traced client.
func Tools(fns []Function, timeout time.Duration) []*HTTPTool {
	client := trace.HTTPClient(timeout)
	out := make([]*HTTPTool, 0, len(fns))
	for _, fn := range fns {
		out = append(out, NewHTTPTool(fn, client))
	}
	return out
}

func (t *HTTPTool) Name() string        { return t.fn.Name }
func (t *HTTPTool) Description() string { return t.fn.Description }

func (t *HTTPTool) SpanAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", t.fn.Config.Method),
		attribute.String("url.template", t.fn.Config.URL),
		attribute.String("walletai.platform", t.fn.Config.Platform),
	}
}

func (t *HTTPTool) InputSchema() any {
	props := make(map[string]any, len(t.fn.Args))
	required := make([]string, 0, len(t.fn.Args))
	for _, a := range t.fn.Args {
		props[a.Name] = argSchema(a)
		required = append(required, a.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func argSchema(a Argument) map[string]any {
	switch a.Type {
	case TypeArray:
		return map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": a.Description,
		}
	case TypeObject:
		// Strict schemas cannot carry free-form objects; the model sends JSON text.
		return map[string]any{
			"type":        "string",
			"description": a.Description + " (JSON object)",
		}
	default:
		return map[string]any{"type": a.Type, "description": a.Description}
	}
}

func (t *HTTPTool) Execute(ctx context.Context, input string) (string, error) {
	var params map[string]any
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return "", t.fail(fmt.Errorf("parsing arguments: %w", err))
	}
	if err := t.checkRequired(params); err != nil {
		return "", t.fail(err)
	}

	req, err := t.request(ctx, params)
	if err != nil {
		return "", t.fail(err)
	}

	slog.Debug("function: calling", "tool", t.fn.Name, "method", req.Method, "url", req.URL.Redacted())

	resp, err := t.client.Do(req)
	if err != nil {
		return "", t.fail(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", t.fail(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("function: non-2xx response", "tool", t.fn.Name, "status", resp.StatusCode)
		return "", t.fail(fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(truncate(body, 200))))
	}

	slog.Debug("function: done", "tool", t.fn.Name, "status", resp.StatusCode, "bytes", len(body))
	return t.fn.Config.SuccessFeedback + "\n" + truncate(body, maxOutputBytes), nil
}

func (t *HTTPTool) fail(cause error) error {
	if t.fn.Config.ErrorFeedback == "" {
		return cause
	}
	return fmt.Errorf("%s (%w)", t.fn.Config.ErrorFeedback, cause)
}

func (t *HTTPTool) checkRequired(params map[string]any) error {
	var missing []string
	for _, a := range t.fn.Args {
		v, ok := params[a.Name]
		if !ok || v == nil {
			missing = append(missing, a.Name)
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			missing = append(missing, a.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (t *HTTPTool) request(ctx context.Context, params map[string]any) (*http.Request, error) {
	method := t.fn.Config.Method
	target := t.fn.Config.URL

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("parsing url: %w", err)
		}
		q := u.Query()
		for _, a := range t.fn.Args {
			q.Set(a.Name, queryValue(params[a.Name]))
		}
		u.RawQuery = q.Encode()
		target = u.String()
	default:
		payload := make(map[string]any, len(params))
		for _, a := range t.fn.Args {
			payload[a.Name] = bodyValue(a, params[a.Name])
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range t.fn.Config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func queryValue(v any) string {
	switch x := v.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

func bodyValue(a Argument, v any) any {
	if a.Type != TypeObject {
		return v
	}
	s, ok := v.(string)
	if !ok || !json.Valid([]byte(s)) {
		return v
	}
	return json.RawMessage(s)
}

func truncate(b []byte, limit int) string {
	if len(b) > limit {
		return string(b[:limit]) + "\n... (truncated)"
	}
	return string(b)
}
