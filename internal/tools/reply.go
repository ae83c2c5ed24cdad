package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"walletai/internal/agent"
	"walletai/internal/twitter"
)

// Reply is the reply_tweet tool. It answers the tweet the current run was
// started for, threading the text when it is too long for one tweet.
type Reply struct {
	api twitter.API
}

func NewReply(api twitter.API) *Reply {
	return &Reply{api: api}
}

func (r *Reply) Name() string { return "reply_tweet" }
func (r *Reply) Description() string {
	return "Reply to the tweet you were mentioned in. Long text is posted as a numbered thread."
}

func (r *Reply) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "Reply text, formatted for Twitter",
			},
		},
		"required":             []string{"text"},
		"additionalProperties": false,
	}
}

func (r *Reply) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing reply_tweet input: %w", err)
	}
	if strings.TrimSpace(args.Text) == "" {
		return "", errors.New("text is empty")
	}

	tweetID := agent.TweetIDFromContext(ctx)
	if tweetID == "" {
		return "", errors.New("no tweet to reply to in this session")
	}

	slog.Debug("reply_tweet: posting", "tweet_id", tweetID, "text_len", len(args.Text))

	posted, err := twitter.PostThread(ctx, r.api, tweetID, args.Text)
	if emit := agent.EmitFromContext(ctx); emit != nil && len(posted) > 0 {
		emit(agent.Event{Type: agent.EventReply, Data: posted})
	}
	if err != nil {
		return "", err
	}

	ids := make([]string, len(posted))
	for i, tw := range posted {
		ids[i] = tw.ID
	}
	return fmt.Sprintf("replied with %d tweet(s): %s", len(posted), strings.Join(ids, ", ")), nil
}
