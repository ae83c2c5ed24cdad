// Package llm talks to the model behind the agent.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3/responses"
)

var (
	// ErrIncomplete is returned when a stream ends without a completed response.
	ErrIncomplete = errors.New("llm: stream ended without a completed response")
	ErrEmpty      = errors.New("llm: empty response")
)

// Provider runs one model turn. onToken receives output text deltas as they
// arrive and may be nil.
type Provider interface {
	ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error)
}

// Complete sends a single instruction and prompt without tools and returns
// the answer text.
func Complete(ctx context.Context, p Provider, instructions, prompt string) (string, error) {
	var input []responses.ResponseInputItemUnionParam
	if instructions != "" {
		input = append(input, responses.ResponseInputItemParamOfMessage(instructions, responses.EasyInputMessageRoleDeveloper))
	}
	input = append(input, responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser))

	resp, err := p.ChatStream(ctx, input, nil, nil)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmpty
	}
	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.AsMessage().Content {
			if c.Type == "output_text" {
				b.WriteString(c.AsOutputText().Text)
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w (status %s)", ErrEmpty, resp.Status)
	}
	return text, nil
}
