package twitter

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Simulated is an in-memory API. Tweets get random ids and the bot's
// replies are recorded for inspection.
type Simulated struct {
	mu      sync.Mutex
	bot     User
	users   map[string]User
	tweets  map[string]*Tweet
	order   []string
	replies []Tweet
	now     func() time.Time
}

func NewSimulated(bot User) *Simulated {
	return &Simulated{
		bot:    bot,
		users:  map[string]User{bot.ID: bot},
		tweets: make(map[string]*Tweet),
		now:    time.Now,
	}
}

func (s *Simulated) Bot() User { return s.bot }

func (s *Simulated) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Post publishes a tweet by authorID. An empty inReplyTo starts a new
// conversation.
func (s *Simulated) Post(authorID, text, inReplyTo string) (*Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post(authorID, text, inReplyTo)
}

func (s *Simulated) post(authorID, text, inReplyTo string) (*Tweet, error) {
	if _, ok := s.users[authorID]; !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, authorID)
	}
	tw := &Tweet{
		ID:        uuid.NewString(),
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: s.now().UTC(),
	}
	tw.ConversationID = tw.ID
	if inReplyTo != "" {
		parent, ok := s.tweets[inReplyTo]
		if !ok {
			return nil, fmt.Errorf("%w: tweet %s", ErrNotFound, inReplyTo)
		}
		tw.ConversationID = parent.ConversationID
		tw.InReplyToUserID = parent.AuthorID
	}
	s.tweets[tw.ID] = tw
	s.order = append(s.order, tw.ID)
	return s.withAuthor(tw), nil
}

func (s *Simulated) withAuthor(tw *Tweet) *Tweet {
	out := *tw
	if u, ok := s.users[tw.AuthorID]; ok {
		out.Author = &u
	}
	return &out
}

func (s *Simulated) Tweet(ctx context.Context, id string) (*Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tw, ok := s.tweets[id]
	if !ok {
		return nil, fmt.Errorf("%w: tweet %s", ErrNotFound, id)
	}
	return s.withAuthor(tw), nil
}

func (s *Simulated) User(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}
	return &u, nil
}

// Mentions returns tweets by others replying to or naming the bot that were
// posted after sinceID, oldest first.
func (s *Simulated) Mentions(ctx context.Context, userID, sinceID string) ([]Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	start := 0
	if sinceID != "" {
		start = slices.Index(s.order, sinceID) + 1
	}
	var out []Tweet
	for _, id := range s.order[start:] {
		tw := s.tweets[id]
		if tw.AuthorID == userID {
			continue
		}
		if tw.InReplyToUserID == userID || mentions(tw.Text, u.Username) {
			out = append(out, *s.withAuthor(tw))
		}
	}
	return out, nil
}

func (s *Simulated) Conversation(ctx context.Context, conversationID string) ([]Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Tweet
	for _, id := range s.order {
		if tw := s.tweets[id]; tw.ConversationID == conversationID {
			out = append(out, *s.withAuthor(tw))
		}
	}
	return out, nil
}

// Reply posts as the bot.
func (s *Simulated) Reply(ctx context.Context, inReplyTo, text string) (*Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tw, err := s.post(s.bot.ID, text, inReplyTo)
	if err != nil {
		return nil, err
	}
	s.replies = append(s.replies, *tw)
	return tw, nil
}

// Replies returns everything the bot has posted.
func (s *Simulated) Replies() []Tweet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.replies)
}

func mentions(text, username string) bool {
	if username == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(username))
}
