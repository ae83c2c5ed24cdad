package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "walletai.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return d
}

func TestMigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	if err := d.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestTurnsAfterCutoff(t *testing.T) {
	ctx := context.Background()
	q := New(openTestDB(t).Conn())

	if err := q.UpsertSession(ctx, UpsertSessionParams{ID: "1800", Channel: "twitter"}); err != nil {
		t.Fatalf("UpsertSession: %v", err)
	}
	for _, msg := range []string{"a", "b", "c"} {
		if err := q.InsertTurn(ctx, InsertTurnParams{SessionID: "1800", UserMessage: msg, ResponseJSON: "{}"}); err != nil {
			t.Fatalf("InsertTurn: %v", err)
		}
	}

	all, err := q.GetTurnsBySession(ctx, "1800")
	if err != nil || len(all) != 3 {
		t.Fatalf("GetTurnsBySession = %d, %v", len(all), err)
	}
	rest, err := q.GetTurnsAfter(ctx, "1800", all[0].ID)
	if err != nil {
		t.Fatalf("GetTurnsAfter: %v", err)
	}
	if len(rest) != 2 || rest[0].UserMessage != "b" {
		t.Fatalf("unexpected turns after cutoff: %+v", rest)
	}
	n, err := q.CountTurnsBySession(ctx, "1800")
	if err != nil || n != 3 {
		t.Fatalf("CountTurnsBySession = %d, %v", n, err)
	}
}

func TestClaimMention(t *testing.T) {
	ctx := context.Background()
	q := New(openTestDB(t).Conn())

	ok, err := q.ClaimMention(ctx, ClaimMentionParams{TweetID: "77"})
	if err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	ok, err = q.ClaimMention(ctx, ClaimMentionParams{TweetID: "77"})
	if err != nil || ok {
		t.Fatalf("pending mention claimed twice: %v, %v", ok, err)
	}

	if err := q.FinishMention(ctx, FinishMentionParams{TweetID: "77", Status: MentionFailed, Error: sql.NullString{String: "boom", Valid: true}}); err != nil {
		t.Fatalf("FinishMention: %v", err)
	}
	ok, err = q.ClaimMention(ctx, ClaimMentionParams{TweetID: "77"})
	if err != nil || !ok {
		t.Fatalf("failed mention should be reclaimable: %v, %v", ok, err)
	}

	if err := q.FinishMention(ctx, FinishMentionParams{TweetID: "77", Status: MentionDone}); err != nil {
		t.Fatalf("FinishMention: %v", err)
	}
	m, err := q.GetMention(ctx, "77")
	if err != nil || m.Status != MentionDone {
		t.Fatalf("GetMention = %+v, %v", m, err)
	}
	if ok, _ := q.ClaimMention(ctx, ClaimMentionParams{TweetID: "77"}); ok {
		t.Fatal("done mention must not be reclaimed")
	}
}

func TestClaimMentionTakesOverStalePending(t *testing.T) {
	ctx := context.Background()
	d := openTestDB(t)
	q := New(d.Conn())

	if ok, err := q.ClaimMention(ctx, ClaimMentionParams{TweetID: "88"}); err != nil || !ok {
		t.Fatalf("first claim = %v, %v", ok, err)
	}
	claim := ClaimMentionParams{TweetID: "88", StaleAfter: 10 * time.Minute}
	if ok, _ := q.ClaimMention(ctx, claim); ok {
		t.Fatal("fresh pending claim was taken over")
	}

	// Simulate a run that died an hour ago.
	if _, err := d.Conn().ExecContext(ctx, `UPDATE mentions SET processed_at = datetime('now', '-1 hour') WHERE tweet_id = '88'`); err != nil {
		t.Fatal(err)
	}
	if ok, _ := q.ClaimMention(ctx, ClaimMentionParams{TweetID: "88"}); ok {
		t.Fatal("stale pending claim taken over without StaleAfter")
	}
	if ok, err := q.ClaimMention(ctx, claim); err != nil || !ok {
		t.Fatalf("stale claim = %v, %v", ok, err)
	}
	if ok, _ := q.ClaimMention(ctx, claim); ok {
		t.Fatal("renewed claim taken over again immediately")
	}
}

func TestCursor(t *testing.T) {
	ctx := context.Background()
	q := New(openTestDB(t).Conn())

	if _, err := q.GetCursor(ctx, "mentions"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing cursor error = %v", err)
	}
	for _, v := range []string{"100", "200"} {
		if err := q.SetCursor(ctx, "mentions", v); err != nil {
			t.Fatalf("SetCursor: %v", err)
		}
	}
	if v, err := q.GetCursor(ctx, "mentions"); err != nil || v != "200" {
		t.Fatalf("GetCursor = %q, %v", v, err)
	}
}
