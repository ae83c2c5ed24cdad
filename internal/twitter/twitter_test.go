package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitThreadShort(t *testing.T) {
	if got := SplitThread("  gm  ", 280); len(got) != 1 || got[0] != "gm" {
		t.Fatalf("SplitThread = %q", got)
	}
	if got := SplitThread("   ", 280); got != nil {
		t.Fatalf("SplitThread(blank) = %q", got)
	}
}

func TestSplitThreadLong(t *testing.T) {
	var b strings.Builder
	b.WriteString("Portfolio report\n\n")
	for i := 0; i < 40; i++ {
		b.WriteString("- token gained some percent this week\n")
	}
	b.WriteString(strings.Repeat("z", 600))

	parts := SplitThread(b.String(), MaxTweetLength)
	if len(parts) < 3 {
		t.Fatalf("expected a thread, got %d parts", len(parts))
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > MaxTweetLength {
			t.Errorf("part %d has %d runes", i, n)
		}
	}
	if !strings.HasSuffix(parts[0], " (1/"+strconv.Itoa(len(parts))+")") {
		t.Fatalf("first part lacks counter: %q", parts[0])
	}
	if !strings.HasPrefix(parts[0], "Portfolio report\n\n- token") {
		t.Fatalf("line structure lost: %q", parts[0])
	}
}

func TestSplitThreadHundredsOfParts(t *testing.T) {
	text := strings.Repeat("wallet ", 6000)
	parts := SplitThread(text, MaxTweetLength)
	if len(parts) < 100 {
		t.Fatalf("expected 100+ parts, got %d", len(parts))
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > MaxTweetLength {
			t.Fatalf("part %d has %d runes", i+1, n)
		}
	}
	last := parts[len(parts)-1]
	if want := " (" + strconv.Itoa(len(parts)) + "/" + strconv.Itoa(len(parts)) + ")"; !strings.HasSuffix(last, want) {
		t.Fatalf("last part = %q", last)
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "app-token", "user-token", WithHTTPClient(srv.Client()))
}

func TestClientTweet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweets/1800" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer app-token" {
			t.Errorf("auth = %s", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("expansions") != "author_id" {
			t.Errorf("missing author expansion")
		}
		io.WriteString(w, `{"data":{"id":"1800","text":"@WalletAI 0xabc","author_id":"42","conversation_id":"1799","created_at":"2024-05-01T10:00:00.000Z"},
			"includes":{"users":[{"id":"42","name":"Alice","username":"alice","description":"onchain degen"}]}}`)
	})

	tw, err := c.Tweet(context.Background(), "1800")
	if err != nil {
		t.Fatalf("Tweet: %v", err)
	}
	if tw.Author == nil || tw.Author.Username != "alice" || tw.ConversationID != "1799" {
		t.Fatalf("tweet = %+v", tw)
	}
	if tw.CreatedAt.IsZero() {
		t.Fatal("created_at not parsed")
	}
}

func TestClientNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/users/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, `{"errors":[{"title":"Not Found Error","detail":"Could not find tweet","type":"https://api.twitter.com/2/problems/resource-not-found"}]}`)
	})
	if _, err := c.Tweet(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Tweet err = %v", err)
	}
	if _, err := c.User(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("User err = %v", err)
	}
}

func TestClientRateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"title":"Too Many Requests","detail":"Too Many Requests"}`)
	})
	_, err := c.Mentions(context.Background(), "7", "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v", err)
	}
}

func TestClientMentionsOldestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/7/mentions" || r.URL.Query().Get("since_id") != "100" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		io.WriteString(w, `{"data":[{"id":"102","text":"b","author_id":"1"},{"id":"101","text":"a","author_id":"1"}],"meta":{"newest_id":"102"}}`)
	})
	tweets, err := c.Mentions(context.Background(), "7", "100")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(tweets) != 2 || tweets[0].ID != "101" {
		t.Fatalf("tweets = %+v", tweets)
	}
}

func TestClientMentionsFollowsPages(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		if q.Get("since_id") != "100" {
			t.Errorf("since_id = %q", q.Get("since_id"))
		}
		switch q.Get("pagination_token") {
		case "":
			io.WriteString(w, `{"data":[{"id":"104","text":"d"},{"id":"103","text":"c"}],"meta":{"next_token":"p2"}}`)
		case "p2":
			io.WriteString(w, `{"data":[{"id":"102","text":"b"},{"id":"101","text":"a"}],"meta":{}}`)
		default:
			t.Errorf("unexpected token %q", q.Get("pagination_token"))
		}
	})
	tweets, err := c.Mentions(context.Background(), "7", "100")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
	var ids []string
	for _, tw := range tweets {
		ids = append(ids, tw.ID)
	}
	if strings.Join(ids, ",") != "101,102,103,104" {
		t.Fatalf("ids = %v", ids)
	}
}

func TestClientMentionsWithoutCursorReadsOnePage(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"data":[{"id":"5","text":"e"}],"meta":{"next_token":"more"}}`)
	})
	if _, err := c.Mentions(context.Background(), "7", ""); err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestClientReply(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tweets" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("reply not sent with user token")
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"1900","text":"hi"}}`)
	})
	tw, err := c.Reply(context.Background(), "1800", "hi")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if tw.ID != "1900" {
		t.Fatalf("tweet = %+v", tw)
	}
	reply, _ := body["reply"].(map[string]any)
	if reply["in_reply_to_tweet_id"] != "1800" {
		t.Fatalf("body = %v", body)
	}
}

func TestSimulatedThread(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulated(User{ID: "bot", Username: "WalletAI"})
	sim.AddUser(User{ID: "u1", Username: "alice"})

	mention, err := sim.Post("u1", "@walletai analyze 0xabc", "")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := sim.Post("u1", "unrelated", ""); err != nil {
		t.Fatalf("Post: %v", err)
	}

	got, err := sim.Mentions(ctx, "bot", "")
	if err != nil || len(got) != 1 || got[0].ID != mention.ID {
		t.Fatalf("Mentions = %+v, %v", got, err)
	}

	posted, err := PostThread(ctx, sim, mention.ID, strings.Repeat("word ", 120))
	if err != nil {
		t.Fatalf("PostThread: %v", err)
	}
	if len(posted) < 2 {
		t.Fatalf("expected a thread, got %d", len(posted))
	}
	conv, _ := sim.Conversation(ctx, mention.ConversationID)
	if len(conv) != 1+len(posted) {
		t.Fatalf("conversation has %d tweets", len(conv))
	}
	if len(sim.Replies()) != len(posted) {
		t.Fatal("replies not recorded")
	}

	if _, err := sim.Reply(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reply err = %v", err)
	}
	later, _ := sim.Mentions(ctx, "bot", mention.ID)
	if len(later) != 0 {
		t.Fatalf("mentions after cursor = %d", len(later))
	}
}
