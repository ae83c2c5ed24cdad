// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v3/responses"
)

// Scripted replays canned Responses API payloads in order and records the
// input of every call.
type Scripted struct {
	mu     sync.Mutex
	script []string
	Calls  [][]responses.ResponseInputItemUnionParam
	Tools  [][]responses.ToolUnionParam
}

func New(payloads ...string) *Scripted {
	return &Scripted{script: payloads}
}

func (s *Scripted) ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, input)
	s.Tools = append(s.Tools, tools)

	if len(s.script) == 0 {
		return nil, fmt.Errorf("llmtest: script exhausted after %d calls", len(s.Calls)-1)
	}
	payload := s.script[0]
	s.script = s.script[1:]

	var resp responses.Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("llmtest: bad payload: %w", err)
	}
	return &resp, nil
}

// Text builds a completed response carrying one assistant message.
func Text(text string) string {
	b, _ := json.Marshal(text)
	return fmt.Sprintf(`{"id":"resp_text","object":"response","model":"test-model","status":"completed","output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[{"type":"output_text","text":%s,"annotations":[]}]}]}`, b)
}

// Call is one function call requested by the model.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Calls builds a completed response requesting the given function calls.
func Calls(calls ...Call) string {
	items := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		items = append(items, map[string]any{
			"type":      "function_call",
			"id":        "fc_" + c.ID,
			"call_id":   c.ID,
			"name":      c.Name,
			"arguments": c.Arguments,
			"status":    "completed",
		})
	}
	b, _ := json.Marshal(map[string]any{
		"id":     "resp_calls",
		"object": "response",
		"model":  "test-model",
		"status": "completed",
		"output": items,
	})
	return string(b)
}
