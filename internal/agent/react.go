package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"walletai/internal/history"
	"walletai/internal/llm"
	"walletai/internal/memory"
	"walletai/internal/trace"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const DefaultMaxIterations = 12

var ErrMaxIterations = errors.New("agent: iteration limit reached")

type ReactOption func(*ReactRunner)

func WithDescriptor(d Descriptor) ReactOption {
	return func(r *ReactRunner) { r.descriptor = d }
}

func WithMaxIterations(n int) ReactOption {
	return func(r *ReactRunner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

func WithReActCompactor(c *memory.Compactor) ReactOption {
	return func(r *ReactRunner) { r.compactor = c }
}

// ReactRunner implements a ReAct (Reason + Act) agent loop.
// The agent keeps thinking and acting until the LLM returns no more tool
// calls, the iteration limit is hit, or the context is cancelled.
type ReactRunner struct {
	provider      llm.Provider
	store         *history.Store
	memory        memory.Memory
	registry      *Registry
	tools         []responses.ToolUnionParam
	descriptor    Descriptor
	maxIterations int
	compactor     *memory.Compactor
}

func NewReactRunner(provider llm.Provider, store *history.Store, mem memory.Memory, registry *Registry, opts ...ReactOption) *ReactRunner {
	r := &ReactRunner{
		provider:      provider,
		store:         store,
		memory:        mem,
		registry:      registry,
		descriptor:    Default(),
		maxIterations: DefaultMaxIterations,
	}

	for _, opt := range opts {
		opt(r)
	}

	for _, t := range registry.All() {
		schema, _ := t.InputSchema().(map[string]any)
		r.tools = append(r.tools, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  schema,
				Strict:      openai.Bool(true),
			},
		})
	}

	return r
}

func (r *ReactRunner) Descriptor() Descriptor { return r.descriptor }

func (r *ReactRunner) React(ctx context.Context, req Request, emit func(Event)) (*Result, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if req.SessionID == "" {
		req.SessionID = req.TweetID
	}
	if req.World.Task == "" {
		req.World.Task = req.Task
	}

	ctx = ContextWithSessionID(ctx, req.SessionID)
	ctx = ContextWithTweetID(ctx, req.TweetID)
	ctx = ContextWithEmit(ctx, emit)

	ctx, span := trace.Tracer().Start(ctx, "agent.react.run",
		oteltrace.WithAttributes(
			attribute.String("openai.agents.agent.name", r.descriptor.Name),
			attribute.String("session.id", req.SessionID),
			attribute.String("tweet.id", req.TweetID),
			attribute.String("platform", req.Platform),
		),
	)
	defer span.End()

	if err := r.store.EnsureSession(ctx, req.SessionID, channelName(req.Platform)); err != nil {
		slog.Warn("failed to ensure session", "session_id", req.SessionID, "error", err)
	}

	input, err := r.memory.Recall(ctx, req.SessionID)
	if err != nil {
		slog.Warn("failed to recall memory", "session_id", req.SessionID, "error", err)
		input = nil
	}
	slog.Debug("agent.react: memory recalled", "session_id", req.SessionID, "history_items", len(input))

	message := userMessage(req)
	input = append(input,
		responses.ResponseInputItemParamOfMessage(r.descriptor.SystemPrompt(req.World, req.Platform), "developer"),
		responses.ResponseInputItemParamOfMessage(message, "user"),
	)

	res := &Result{SessionID: req.SessionID, TweetID: req.TweetID}
	resp, err := r.loop(ctx, span.SpanContext(), input, res, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	res.Text = history.OutputText(resp.Output)

	r.persist(ctx, req.SessionID, message, resp)

	emit(Event{Type: EventDone, Data: res})
	return res, nil
}

// loop is the core ReAct cycle. Each iteration is a single LLM call where the
// model reasons about the current state and picks actions in one step. Tool
// errors go back into context so the model can adapt on the next iteration.
func (r *ReactRunner) loop(ctx context.Context, parentSC oteltrace.SpanContext, input []responses.ResponseInputItemUnionParam, res *Result, emit func(Event)) (*responses.Response, error) {
	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			emit(Event{Type: EventError, Data: "request cancelled"})
			return nil, err
		}
		if iteration >= r.maxIterations {
			emit(Event{Type: EventError, Data: ErrMaxIterations.Error()})
			return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, r.maxIterations)
		}

		llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.react",
			oteltrace.WithAttributes(attribute.Int("llm.iteration", iteration)),
		)
		slog.Debug("llm.react span started",
			"trace_id", llmSpan.SpanContext().TraceID(),
			"parent_span_id", parentSC.SpanID(),
			"iteration", iteration,
		)

		resp, err := r.provider.ChatStream(llmCtx, input, r.tools, func(token string) {
			emit(Event{Type: EventToken, Data: token})
		})
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			emit(Event{Type: EventError, Data: err.Error()})
			return nil, err
		}

		llmSpan.SetAttributes(
			attribute.String("llm.model", string(resp.Model)),
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
		)
		llmSpan.End()
		res.Iterations = iteration + 1

		// Feed the LLM's output (including its reasoning) back into context.
		input = append(input, history.OutputToInput(resp.Output)...)

		var calls []responses.ResponseOutputItemUnion
		for _, item := range resp.Output {
			if item.Type == "function_call" {
				calls = append(calls, item)
			}
		}

		if len(calls) == 0 {
			return resp, nil
		}

		results, records := r.act(ctx, calls, emit)
		res.ToolCalls = append(res.ToolCalls, records...)
		input = append(input, results...)
	}
}

// act executes tool calls in parallel, emitting events for each, and returns
// the results formatted as input items for the next LLM turn.
func (r *ReactRunner) act(ctx context.Context, calls []responses.ResponseOutputItemUnion, emit func(Event)) ([]responses.ResponseInputItemUnionParam, []ToolCall) {
	for _, call := range calls {
		fc := call.AsFunctionCall()
		emit(Event{Type: EventToolCall, Data: map[string]string{
			"name":      fc.Name,
			"arguments": fc.Arguments,
		}})
	}

	var wg sync.WaitGroup
	results := make([]responses.ResponseInputItemUnionParam, len(calls))
	records := make([]ToolCall, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call responses.ResponseOutputItemUnion) {
			defer wg.Done()
			fc := call.AsFunctionCall()
			records[i] = ToolCall{Name: fc.Name, Arguments: fc.Arguments}

			out, failed := r.execute(ctx, fc.Name, fc.Arguments)
			records[i].Output = out
			records[i].Failed = failed
			results[i] = responses.ResponseInputItemParamOfFunctionCallOutput(fc.CallID, out)
			emit(Event{Type: EventToolResult, Data: map[string]string{
				"name":    fc.Name,
				"content": out,
			}})
		}(i, call)
	}

	wg.Wait()
	return results, records
}

func (r *ReactRunner) execute(ctx context.Context, name, args string) (string, bool) {
	tool, ok := r.registry.Get(name)
	if !ok {
		slog.Warn("unknown tool call", "tool", name)
		return "error: unknown tool", true
	}
	out, err := withTrace(tool).Execute(ctx, args)
	if err != nil {
		slog.Warn("tool execution failed", "tool", name, "session_id", SessionIDFromContext(ctx), "error", err)
		return "error: " + err.Error(), true
	}
	return out, false
}

func (r *ReactRunner) persist(ctx context.Context, sessionID, message string, resp *responses.Response) {
	if err := r.store.SaveTurn(ctx, sessionID, message, resp); err != nil {
		slog.Warn("failed to save turn", "session_id", sessionID, "error", err)
	}

	if r.compactor != nil {
		go r.compactor.MaybeCompact(context.Background(), sessionID)
	}
}

func userMessage(req Request) string {
	msg := req.World.TweetContent
	if req.TweetID != "" {
		msg = fmt.Sprintf("Tweet %s: %s", req.TweetID, req.World.TweetContent)
	}
	if req.Task != "" {
		msg += "\n\nTask:\n" + req.Task
	}
	return msg
}

func channelName(platform string) string {
	if platform == "" {
		return "default"
	}
	return platform
}
