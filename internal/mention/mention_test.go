package mention

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"walletai/internal/agent"
	"walletai/internal/db"
	"walletai/internal/twitter"
)

type fakeRunner struct {
	reqs []agent.Request
	err  error
}

func (f *fakeRunner) React(ctx context.Context, req agent.Request, emit func(agent.Event)) (*agent.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Result{SessionID: req.SessionID, TweetID: req.TweetID, Text: "ok"}, nil
}

func openDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "mention.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return d
}

func seed(t *testing.T) (*twitter.Simulated, *twitter.Tweet) {
	t.Helper()
	sim := twitter.NewSimulated(twitter.User{ID: "bot", Username: "WalletAI"})
	sim.AddUser(twitter.User{ID: "u1", Name: "Alice", Username: "alice", Description: "onchain since 2017"})
	root, err := sim.Post("u1", "thinking about rotating out of memecoins", "")
	if err != nil {
		t.Fatal(err)
	}
	tw, err := sim.Post("u1", "@WalletAI analyze 0x52908400098527886e0f7030069857d2e4169ee7 on base", root.ID)
	if err != nil {
		t.Fatal(err)
	}
	return sim, tw
}

func TestHandleMentionBuildsRequest(t *testing.T) {
	sim, tw := seed(t)
	runner := &fakeRunner{}
	h := NewHandler(sim, runner, openDB(t))

	res, err := h.HandleMention(context.Background(), tw.ID)
	if err != nil {
		t.Fatalf("HandleMention: %v", err)
	}
	if res.Text != "ok" || res.SessionID != tw.ID {
		t.Fatalf("result = %+v", res)
	}

	req := runner.reqs[0]
	if req.SessionID != tw.ID || req.TweetID != tw.ID || req.Platform != "twitter" || req.Task != Task {
		t.Fatalf("request = %+v", req)
	}
	w := req.World
	if w.Author != "Alice (@alice)" || w.Bio != "onchain since 2017" || w.TweetContent != tw.Text {
		t.Fatalf("world = %+v", w)
	}
	if w.ConversationHistory != "@alice: thinking about rotating out of memecoins" {
		t.Fatalf("history = %q", w.ConversationHistory)
	}
	if !strings.Contains(w.TaskReasoning, "0x52908400098527886E0F7030069857D2E4169EE7 on base") {
		t.Fatalf("reasoning = %q", w.TaskReasoning)
	}
}

func TestHandleMentionDedupes(t *testing.T) {
	sim, tw := seed(t)
	runner := &fakeRunner{}
	h := NewHandler(sim, runner, openDB(t))
	ctx := context.Background()

	if _, err := h.HandleMention(ctx, tw.ID); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := h.HandleMention(ctx, tw.ID); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("second err = %v", err)
	}
	if len(runner.reqs) != 1 {
		t.Fatalf("runner called %d times", len(runner.reqs))
	}
}

func TestHandleMentionRetriesFailures(t *testing.T) {
	sim, tw := seed(t)
	database := openDB(t)
	runner := &fakeRunner{err: errors.New("llm unavailable")}
	h := NewHandler(sim, runner, database)
	ctx := context.Background()

	if _, err := h.HandleMention(ctx, tw.ID); err == nil {
		t.Fatal("expected error")
	}
	m, err := db.New(database.Conn()).GetMention(ctx, tw.ID)
	if err != nil || m.Status != db.MentionFailed || !strings.Contains(m.Error.String, "llm unavailable") {
		t.Fatalf("mention = %+v, %v", m, err)
	}

	runner.err = nil
	if _, err := h.HandleMention(ctx, tw.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestHandleMentionTakesOverAbandonedRun(t *testing.T) {
	sim, tw := seed(t)
	d := openDB(t)
	runner := &fakeRunner{}
	h := NewHandler(sim, runner, d, WithRunTimeout(10*time.Minute))

	// A run that was killed before finishing leaves its claim pending.
	q := db.New(d.Conn())
	if ok, err := q.ClaimMention(context.Background(), db.ClaimMentionParams{TweetID: tw.ID}); err != nil || !ok {
		t.Fatalf("ClaimMention = %v, %v", ok, err)
	}
	if _, err := h.HandleMention(context.Background(), tw.ID); !errors.Is(err, ErrAlreadyHandled) {
		t.Fatalf("fresh pending claim: err = %v", err)
	}

	if _, err := d.Conn().Exec(`UPDATE mentions SET processed_at = datetime('now', '-1 hour') WHERE tweet_id = ?`, tw.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.HandleMention(context.Background(), tw.ID); err != nil {
		t.Fatalf("abandoned claim not taken over: %v", err)
	}
	if len(runner.reqs) != 1 {
		t.Fatalf("runner called %d times", len(runner.reqs))
	}
	m, err := q.GetMention(context.Background(), tw.ID)
	if err != nil || m.Status != db.MentionDone {
		t.Fatalf("mention = %+v, %v", m, err)
	}
}

func TestHandleMentionWithoutWallet(t *testing.T) {
	sim := twitter.NewSimulated(twitter.User{ID: "bot", Username: "WalletAI"})
	sim.AddUser(twitter.User{ID: "u2", Username: "bob"})
	tw, _ := sim.Post("u2", "@WalletAI how am I doing?", "")
	runner := &fakeRunner{}

	if _, err := NewHandler(sim, runner, nil).HandleMention(context.Background(), tw.ID); err != nil {
		t.Fatalf("HandleMention: %v", err)
	}
	w := runner.reqs[0].World
	if !strings.Contains(w.TaskReasoning, "without a wallet address") || w.ConversationHistory != "none" {
		t.Fatalf("world = %+v", w)
	}
}

func TestHandleMentionUnknownTweet(t *testing.T) {
	sim := twitter.NewSimulated(twitter.User{ID: "bot"})
	_, err := NewHandler(sim, &fakeRunner{}, nil).HandleMention(context.Background(), "404")
	if !errors.Is(err, twitter.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
