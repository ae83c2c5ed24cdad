package agent

import "context"

type EventType string

const (
	EventToken      EventType = "token"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventReply      EventType = "reply"
	EventDone       EventType = "done"
	EventError      EventType = "error"
)

type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Request is one react invocation. SessionID keys the conversation history;
// TweetID is the post the agent answers on Platform.
type Request struct {
	SessionID string
	Platform  string
	TweetID   string
	Task      string
	World     World
}

// ToolCall records one tool invocation made during a run.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output"`
	Failed    bool   `json:"failed"`
}

// Result is what a react run returns to its caller.
type Result struct {
	SessionID  string     `json:"session_id"`
	TweetID    string     `json:"tweet_id,omitempty"`
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls"`
	Iterations int        `json:"iterations"`
}

type Runner interface {
	React(ctx context.Context, req Request, emit func(Event)) (*Result, error)
}
