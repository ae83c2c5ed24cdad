package simulation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"walletai/internal/agent"
	"walletai/internal/db"
	"walletai/internal/history"
	"walletai/internal/llm/llmtest"
	"walletai/internal/memory"
	"walletai/internal/mention"
	"walletai/internal/tools"
	"walletai/internal/twitter"
)

func TestRunRepliesInThread(t *testing.T) {
	d, err := db.Open(filepath.Join(t.TempDir(), "sim.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	defer d.Close()
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	store := history.NewStore(d)

	api := twitter.NewSimulated(twitter.User{ID: "bot", Username: "WalletAI"})
	reg := agent.NewRegistry()
	reg.Register(tools.NewReply(api))

	provider := llmtest.New(
		llmtest.Calls(llmtest.Call{ID: "c1", Name: "reply_tweet", Arguments: `{"text":"Your wallet is up 3.2% vs ETH this week."}`}),
		llmtest.Text("Replied."),
	)
	runner := agent.NewReactRunner(provider, store, memory.NewConversationMemory(store, 0), reg)
	sim := New(api, mention.NewHandler(api, runner, nil))

	report, err := sim.Run(context.Background(), "", "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.SessionID != SessionID || report.Result.SessionID != SessionID {
		t.Fatalf("session = %s / %s", report.SessionID, report.Result.SessionID)
	}
	if report.Mention.Text != DefaultMention {
		t.Fatalf("mention = %q", report.Mention.Text)
	}
	if len(report.Replies) != 1 || !strings.Contains(report.Replies[0].Text, "3.2%") {
		t.Fatalf("replies = %+v", report.Replies)
	}
	if report.Replies[0].ConversationID != report.Mention.ConversationID {
		t.Fatal("reply is not in the mention's conversation")
	}

	_, turns, err := store.Session(context.Background(), SessionID)
	if err != nil || len(turns) != 1 {
		t.Fatalf("turns = %d, %v", len(turns), err)
	}
}
