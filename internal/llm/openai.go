package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"walletai/internal/config"
	"walletai/internal/trace"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIProvider streams turns from an OpenAI-compatible Responses API.
type OpenAIProvider struct {
	client      openai.Client
	model       string
	temperature *float64
}

func NewOpenAI(cfg *config.LLMConfig) *OpenAIProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	opts := []option.RequestOption{
		option.WithHTTPClient(trace.HTTPClient(timeout)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (o *OpenAIProvider) ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
		Tools: tools,
		Store: openai.Bool(false),
	}
	if len(tools) > 0 {
		params.ParallelToolCalls = openai.Bool(true)
	}
	if o.temperature != nil {
		params.Temperature = openai.Float(*o.temperature)
	}

	stream := o.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	var completed *responses.Response
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "response.output_text.delta":
			if onToken != nil && event.Delta != "" {
				onToken(event.Delta)
			}
		case "response.completed":
			completed = &event.Response
		case "response.incomplete":
			// Keep whatever was produced; the caller decides if it is enough.
			slog.Warn("llm: incomplete response", "model", o.model, "reason", event.Response.IncompleteDetails.Reason)
			completed = &event.Response
		case "response.failed":
			return nil, fmt.Errorf("llm: response failed: %s", event.Response.Error.Message)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	if completed == nil {
		return nil, ErrIncomplete
	}
	return completed, nil
}
