package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"walletai/internal/agent"
	"walletai/internal/db"
	"walletai/internal/functions"
	"walletai/internal/history"
)

type fakeMentions struct {
	started chan string
	block   bool
}

func (f *fakeMentions) HandleMentionStream(ctx context.Context, tweetID string, emit func(agent.Event)) (*agent.Result, error) {
	if f.started != nil {
		f.started <- tweetID
	}
	if f.block {
		<-ctx.Done()
		emit(agent.Event{Type: agent.EventError, Data: "request cancelled"})
		return nil, ctx.Err()
	}
	emit(agent.Event{Type: agent.EventToolCall, Data: map[string]string{"name": "analyze_wallet"}})
	emit(agent.Event{Type: agent.EventToolResult, Data: map[string]string{"name": "analyze_wallet", "content": "ok"}})
	res := &agent.Result{SessionID: tweetID, Text: "done"}
	emit(agent.Event{Type: agent.EventDone, Data: res})
	return res, nil
}

func newTestServer(t *testing.T, m Mentions, token string) (*httptest.Server, *history.Store) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "gateway.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	store := history.NewStore(d)
	s := NewServer(m, store, Options{
		Token:     token,
		Functions: functions.Defaults("https://api.example.com", "secret-key"),
		Tools:     []string{"analyze_wallet", "reply_tweet"},
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestReactStreamsEvents(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMentions{}, "")

	resp, err := http.Post(srv.URL+"/v1/react", "application/json", strings.NewReader(`{"tweet_id":"1800"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	stream := string(body)
	for _, ev := range []string{"event: run", "event: tool_call", "event: tool_result", "event: done"} {
		if !strings.Contains(stream, ev) {
			t.Errorf("stream missing %q:\n%s", ev, stream)
		}
	}
}

func TestReactRequiresTweetID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMentions{}, "")
	resp, err := http.Post(srv.URL+"/v1/react", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCancelRun(t *testing.T) {
	m := &fakeMentions{started: make(chan string, 1), block: true}
	srv, _ := newTestServer(t, m, "")

	done := make(chan string, 1)
	go func() {
		resp, err := http.Post(srv.URL+"/v1/react", "application/json", strings.NewReader(`{"tweet_id":"1800"}`))
		if err != nil {
			done <- err.Error()
			return
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		done <- string(b)
	}()

	select {
	case <-m.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/v1/sessions/1800/run", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}

	select {
	case stream := <-done:
		if !strings.Contains(stream, "request cancelled") {
			t.Fatalf("stream = %s", stream)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run was not cancelled")
	}

	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second cancel status = %d", resp.StatusCode)
	}
}

func TestFunctionsHidesHeaders(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMentions{}, "")
	resp, err := http.Get(srv.URL + "/v1/functions")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "secret-key") {
		t.Fatal("api key leaked")
	}
	var out struct {
		Functions []functions.Function `json:"functions"`
	}
	json.Unmarshal(body, &out)
	if len(out.Functions) != 4 || out.Functions[0].Name != "analyze_wallet" {
		t.Fatalf("functions = %+v", out.Functions)
	}
}

func TestSessions(t *testing.T) {
	srv, store := newTestServer(t, &fakeMentions{}, "")
	ctx := context.Background()
	if err := store.EnsureSession(ctx, "1800", "twitter"); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/v1/sessions")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Sessions []sessionView `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if len(list.Sessions) != 1 || list.Sessions[0].Channel != "twitter" {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	resp, _ = http.Get(srv.URL + "/v1/sessions/1800")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/v1/sessions/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d", resp.StatusCode)
	}
	resp, _ = http.Get(srv.URL + "/v1/sessions?limit=zero")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d", resp.StatusCode)
	}
}

func TestTokenAuth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeMentions{}, "gw-token")

	resp, _ := http.Get(srv.URL + "/v1/functions")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/functions", nil)
	req.Header.Set("Authorization", "Bearer gw-token")
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}
