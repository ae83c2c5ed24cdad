package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"walletai/internal/trace"
)

const DefaultAPIBase = "https://api.twitter.com/2"

const (
	tweetFields = "author_id,conversation_id,created_at,in_reply_to_user_id"
	userFields  = "description,username,name"

	// maxMentionPages bounds how far one poll walks back through a backlog.
	maxMentionPages = 20
)

// Client is an API v2 client. Reads are made with the app bearer token,
// posts with the bot's OAuth 2.0 user access token.
type Client struct {
	base        string
	bearerToken string
	accessToken string
	http        *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

func NewClient(base, bearerToken, accessToken string, opts ...ClientOption) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	c := &Client{
		base:        strings.TrimRight(base, "/"),
		bearerToken: bearerToken,
		accessToken: accessToken,
		http:        trace.HTTPClient(30 * time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type includes struct {
	Users []User `json:"users"`
}

type tweetEnvelope struct {
	Data     *Tweet       `json:"data"`
	Includes includes     `json:"includes"`
	Errors   []apiProblem `json:"errors"`
}

type tweetsEnvelope struct {
	Data     []Tweet      `json:"data"`
	Includes includes     `json:"includes"`
	Errors   []apiProblem `json:"errors"`
	Meta     struct {
		NewestID  string `json:"newest_id"`
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

type userEnvelope struct {
	Data   *User        `json:"data"`
	Errors []apiProblem `json:"errors"`
}

func (c *Client) Tweet(ctx context.Context, id string) (*Tweet, error) {
	q := url.Values{
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id"},
		"user.fields":  {userFields},
	}
	var env tweetEnvelope
	if err := c.get(ctx, "/tweets/"+url.PathEscape(id), q, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, problemsErr(env.Errors, "tweet "+id)
	}
	attachAuthors([]*Tweet{env.Data}, env.Includes.Users)
	return env.Data, nil
}

func (c *Client) User(ctx context.Context, id string) (*User, error) {
	var env userEnvelope
	if err := c.get(ctx, "/users/"+url.PathEscape(id), url.Values{"user.fields": {userFields}}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, problemsErr(env.Errors, "user "+id)
	}
	return env.Data, nil
}

// Me returns the user the access token belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, http.MethodGet, "/users/me", url.Values{"user.fields": {userFields}}, nil, c.accessToken, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, problemsErr(env.Errors, "me")
	}
	return env.Data, nil
}

// Mentions returns mentions of userID newer than sinceID, oldest first. With
// a sinceID every page is followed so no mention between polls is skipped;
// without one only the newest page is read.
func (c *Client) Mentions(ctx context.Context, userID, sinceID string) ([]Tweet, error) {
	q := url.Values{
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id"},
		"user.fields":  {userFields},
		"max_results":  {"100"},
	}
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}
	path := "/users/" + url.PathEscape(userID) + "/mentions"

	var all []Tweet
	for page := 0; ; page++ {
		tweets, next, err := c.page(ctx, path, q)
		if err != nil {
			return nil, err
		}
		all = append(all, tweets...)
		if sinceID == "" || next == "" {
			break
		}
		if page+1 >= maxMentionPages {
			slog.Warn("twitter: mention backlog truncated", "user_id", userID, "pages", maxMentionPages)
			break
		}
		q.Set("pagination_token", next)
	}
	// Pages run newest to oldest.
	slices.Reverse(all)
	return all, nil
}

// Conversation returns recent tweets of a conversation, oldest first.
func (c *Client) Conversation(ctx context.Context, conversationID string) ([]Tweet, error) {
	q := url.Values{
		"query":        {"conversation_id:" + conversationID},
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id"},
		"user.fields":  {userFields},
		"max_results":  {"50"},
	}
	tweets, err := c.list(ctx, "/tweets/search/recent", q)
	if err != nil {
		return nil, err
	}
	slices.Reverse(tweets)
	return tweets, nil
}

func (c *Client) Reply(ctx context.Context, inReplyTo, text string) (*Tweet, error) {
	body := map[string]any{"text": text}
	if inReplyTo != "" {
		body["reply"] = map[string]string{"in_reply_to_tweet_id": inReplyTo}
	}
	var env tweetEnvelope
	token := c.accessToken
	if token == "" {
		token = c.bearerToken
	}
	if err := c.do(ctx, http.MethodPost, "/tweets", nil, body, token, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, problemsErr(env.Errors, "reply")
	}
	slog.Debug("twitter: posted", "tweet_id", env.Data.ID, "in_reply_to", inReplyTo)
	return env.Data, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) ([]Tweet, error) {
	tweets, _, err := c.page(ctx, path, q)
	return tweets, err
}

func (c *Client) page(ctx context.Context, path string, q url.Values) ([]Tweet, string, error) {
	var env tweetsEnvelope
	if err := c.get(ctx, path, q, &env); err != nil {
		return nil, "", err
	}
	ptrs := make([]*Tweet, len(env.Data))
	for i := range env.Data {
		ptrs[i] = &env.Data[i]
	}
	attachAuthors(ptrs, env.Includes.Users)
	return env.Data, env.Meta.NextToken, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, c.bearerToken, out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, token string, out any) error {
	target := c.base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("twitter %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var p apiProblem
		json.Unmarshal(data, &p)
		if p.Title == "" {
			p.Title = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Title: p.Title, Detail: p.Detail}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func problemsErr(problems []apiProblem, what string) error {
	for _, p := range problems {
		if strings.Contains(p.Type, "resource-not-found") || p.Title == "Not Found Error" {
			return fmt.Errorf("%w: %s", ErrNotFound, what)
		}
	}
	if len(problems) > 0 {
		return &APIError{Status: http.StatusOK, Title: problems[0].Title, Detail: problems[0].Detail}
	}
	return fmt.Errorf("twitter: empty response for %s", what)
}

func attachAuthors(tweets []*Tweet, users []User) {
	byID := make(map[string]*User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, t := range tweets {
		if u, ok := byID[t.AuthorID]; ok {
			t.Author = u
		}
	}
}
