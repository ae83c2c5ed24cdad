package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"walletai/internal/db"
	"walletai/internal/history"
	"walletai/internal/llm/llmtest"
	"walletai/internal/memory"
)

type echoTool struct {
	name string
	err  error

	mu      sync.Mutex
	tweetID string
}

func (e *echoTool) Name() string        { return e.name }
func (e *echoTool) Description() string { return "echo " + e.name }
func (e *echoTool) InputSchema() any {
	return map[string]any{"type": "object", "properties": map[string]any{}, "additionalProperties": false}
}

func (e *echoTool) Execute(ctx context.Context, input string) (string, error) {
	e.mu.Lock()
	e.tweetID = TweetIDFromContext(ctx)
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	return e.name + ":" + input, nil
}

func newStore(t *testing.T) *history.Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return history.NewStore(d)
}

func newRunner(t *testing.T, provider *llmtest.Scripted, tools ...Tool) (*ReactRunner, *history.Store) {
	t.Helper()
	store := newStore(t)
	reg := NewRegistry()
	for _, tool := range tools {
		reg.Register(tool)
	}
	return NewReactRunner(provider, store, memory.NewConversationMemory(store, 0), reg), store
}

func TestRenderFillsPlaceholders(t *testing.T) {
	d := Descriptor{WorldInfo: "{{author}}|{{bio}}|{{tweetContent}}|{{conversationHistory}}|{{task}}|{{taskReasoning}}|{{unknown}}"}
	got := d.Render(World{Author: "alice", Bio: "degen", TweetContent: "gm", Task: "analyze"})
	want := "alice|degen|gm||analyze||{{unknown}}"
	if got != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestDefaultDescriptor(t *testing.T) {
	d := Default()
	if d.Name != "WalletAI" || d.Goal == "" || d.Description == "" {
		t.Fatalf("incomplete default descriptor: %+v", d)
	}
	for _, p := range []string{"{{author}}", "{{bio}}", "{{tweetContent}}", "{{conversationHistory}}", "{{task}}", "{{taskReasoning}}"} {
		if !strings.Contains(d.WorldInfo, p) {
			t.Errorf("world info missing %s", p)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{name: "b"})
	reg.Register(&echoTool{name: "a"})
	reg.Register(&echoTool{name: "b", err: errors.New("replaced")})

	if got := strings.Join(reg.Names(), ","); got != "a,b" {
		t.Fatalf("Names = %s", got)
	}
	b, _ := reg.Get("b")
	if b.(*echoTool).err == nil {
		t.Fatal("duplicate registration did not replace the earlier tool")
	}
	if got := reg.Scope([]string{"a", "missing"}).Names(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Scope = %v", got)
	}
	if reg.Scope(nil) != reg {
		t.Fatal("empty scope should keep the registry")
	}
}

func TestReactRunsToolsAndPersists(t *testing.T) {
	provider := llmtest.New(
		llmtest.Calls(
			llmtest.Call{ID: "c1", Name: "analyze", Arguments: `{"wallet":"0xabc"}`},
			llmtest.Call{ID: "c2", Name: "broken", Arguments: `{}`},
		),
		llmtest.Text("done"),
	)
	analyze := &echoTool{name: "analyze"}
	broken := &echoTool{name: "broken", err: errors.New("upstream down")}
	runner, store := newRunner(t, provider, analyze, broken)

	var mu sync.Mutex
	var events []EventType
	res, err := runner.React(context.Background(), Request{
		TweetID:  "1800",
		Platform: "twitter",
		Task:     "analyze the wallet",
		World:    World{Author: "alice", TweetContent: "check 0xabc"},
	}, func(e Event) {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("React: %v", err)
	}

	if res.SessionID != "1800" || res.Text != "done" || res.Iterations != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d", len(res.ToolCalls))
	}
	if res.ToolCalls[0].Output != `analyze:{"wallet":"0xabc"}` || res.ToolCalls[0].Failed {
		t.Fatalf("analyze call = %+v", res.ToolCalls[0])
	}
	if res.ToolCalls[1].Output != "error: upstream down" || !res.ToolCalls[1].Failed {
		t.Fatalf("broken call = %+v", res.ToolCalls[1])
	}
	if analyze.tweetID != "1800" {
		t.Fatalf("tool saw tweet id %q", analyze.tweetID)
	}
	if events[len(events)-1] != EventDone {
		t.Fatalf("last event = %s", events[len(events)-1])
	}

	first, _ := json.Marshal(provider.Calls[0])
	for _, want := range []string{"Author: alice", "Task: analyze the wallet", "reply_tweet"} {
		if !strings.Contains(string(first), want) {
			t.Errorf("first prompt missing %q", want)
		}
	}
	if len(provider.Tools[0]) != 2 {
		t.Fatalf("tools sent = %d", len(provider.Tools[0]))
	}

	_, turns, err := store.Session(context.Background(), "1800")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(turns) != 1 || !strings.Contains(turns[0].UserMessage, "check 0xabc") {
		t.Fatalf("persisted turns = %+v", turns)
	}
}

func TestReactReplaysHistory(t *testing.T) {
	provider := llmtest.New(llmtest.Text("first answer"), llmtest.Text("second answer"))
	runner, _ := newRunner(t, provider)
	ctx := context.Background()

	if _, err := runner.React(ctx, Request{SessionID: "s1", World: World{TweetContent: "hello"}}, nil); err != nil {
		t.Fatalf("first React: %v", err)
	}
	if _, err := runner.React(ctx, Request{SessionID: "s1", World: World{TweetContent: "again"}}, nil); err != nil {
		t.Fatalf("second React: %v", err)
	}
	second, _ := json.Marshal(provider.Calls[1])
	if !strings.Contains(string(second), "first answer") {
		t.Fatalf("second call did not replay history: %s", second)
	}
}

func TestReactIterationLimit(t *testing.T) {
	call := llmtest.Calls(llmtest.Call{ID: "c", Name: "analyze", Arguments: `{}`})
	provider := llmtest.New(call, call, call)
	store := newStore(t)
	reg := NewRegistry()
	reg.Register(&echoTool{name: "analyze"})
	runner := NewReactRunner(provider, store, memory.NewConversationMemory(store, 0), reg, WithMaxIterations(2))

	_, err := runner.React(context.Background(), Request{SessionID: "loop"}, nil)
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("err = %v, want ErrMaxIterations", err)
	}
	if len(provider.Calls) != 2 {
		t.Fatalf("llm calls = %d", len(provider.Calls))
	}
}

func TestReactUnknownTool(t *testing.T) {
	provider := llmtest.New(
		llmtest.Calls(llmtest.Call{ID: "c", Name: "nope", Arguments: `{}`}),
		llmtest.Text("ok"),
	)
	runner, _ := newRunner(t, provider)
	res, err := runner.React(context.Background(), Request{SessionID: "u"}, nil)
	if err != nil {
		t.Fatalf("React: %v", err)
	}
	if res.ToolCalls[0].Output != "error: unknown tool" {
		t.Fatalf("output = %q", res.ToolCalls[0].Output)
	}
}
