// Package twitter talks to the Twitter (X) API v2 and provides an in-memory
// stand-in for simulations and tests.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("twitter: not found")

type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Description string `json:"description"`
}

type Tweet struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	AuthorID        string    `json:"author_id"`
	ConversationID  string    `json:"conversation_id"`
	InReplyToUserID string    `json:"in_reply_to_user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Author          *User     `json:"author,omitempty"`
}

// API is what the agent needs from Twitter.
type API interface {
	Tweet(ctx context.Context, id string) (*Tweet, error)
	User(ctx context.Context, id string) (*User, error)
	Mentions(ctx context.Context, userID, sinceID string) ([]Tweet, error)
	Conversation(ctx context.Context, conversationID string) ([]Tweet, error)
	Reply(ctx context.Context, inReplyTo, text string) (*Tweet, error)
}

// APIError is a non-success answer from the API.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("twitter: HTTP %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("twitter: HTTP %d %s", e.Status, e.Title)
}

// PostThread replies to inReplyTo with text, split into a chained thread
// when it exceeds the tweet length limit.
func PostThread(ctx context.Context, api API, inReplyTo, text string) ([]Tweet, error) {
	parts := SplitThread(text, MaxTweetLength)
	if len(parts) == 0 {
		return nil, errors.New("twitter: empty reply")
	}
	posted := make([]Tweet, 0, len(parts))
	parent := inReplyTo
	for i, part := range parts {
		tw, err := api.Reply(ctx, parent, part)
		if err != nil {
			return posted, fmt.Errorf("posting part %d/%d: %w", i+1, len(parts), err)
		}
		posted = append(posted, *tw)
		parent = tw.ID
	}
	return posted, nil
}
