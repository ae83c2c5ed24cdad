// Package mention turns a tweet that tags the bot into an agent run.
package mention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"walletai/internal/agent"
	"walletai/internal/db"
	"walletai/internal/twitter"
	"walletai/internal/wallet"
)

// Task is the fixed instruction given to the agent for every mention.
const Task = `1. Extract wallet address from tweet
2. Analyze wallet performance and holdings
3. Generate performance visualization
4. Provide detailed analysis including:
   - 7-day performance metrics
   - Notable trades
   - Current allocation
   - Actionable recommendations
5. Format response for Twitter with clear sections`

const Platform = "twitter"

var ErrAlreadyHandled = errors.New("mention already handled")

const DefaultRunTimeout = 15 * time.Minute

type Option func(*Handler)

func WithTask(task string) Option {
	return func(h *Handler) {
		if task != "" {
			h.task = task
		}
	}
}

func WithDefaultChain(chain string) Option {
	return func(h *Handler) {
		if chain != "" {
			h.defaultChain = chain
		}
	}
}

// WithHistoryLimit caps how many earlier conversation tweets are shown to
// the agent.
func WithHistoryLimit(n int) Option {
	return func(h *Handler) { h.historyLimit = n }
}

// WithRunTimeout bounds one agent run. A claim older than this is treated as
// abandoned and may be taken over by the next delivery or a manual react.
func WithRunTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.runTimeout = d
		}
	}
}

type Handler struct {
	api          twitter.API
	runner       agent.Runner
	queries      *db.Queries
	task         string
	defaultChain string
	historyLimit int
	runTimeout   time.Duration
}

// NewHandler builds a mention handler. With a nil database every call runs
// the agent; otherwise each tweet is handled at most once unless it failed.
func NewHandler(api twitter.API, runner agent.Runner, database *db.DB, opts ...Option) *Handler {
	h := &Handler{
		api:          api,
		runner:       runner,
		task:         Task,
		defaultChain: "ethereum",
		historyLimit: 10,
		runTimeout:   DefaultRunTimeout,
	}
	if database != nil {
		h.queries = db.New(database.Conn())
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleMention reacts to tweetID. The tweet id doubles as the session id,
// so follow-ups in the same run share history.
func (h *Handler) HandleMention(ctx context.Context, tweetID string) (*agent.Result, error) {
	return h.HandleMentionStream(ctx, tweetID, nil)
}

func (h *Handler) HandleMentionStream(ctx context.Context, tweetID string, emit func(agent.Event)) (*agent.Result, error) {
	return h.HandleInSession(ctx, tweetID, tweetID, emit)
}

// HandleInSession is HandleMentionStream with an explicit history session.
func (h *Handler) HandleInSession(ctx context.Context, sessionID, tweetID string, emit func(agent.Event)) (*agent.Result, error) {
	tweetID = strings.TrimSpace(tweetID)
	if tweetID == "" {
		return nil, errors.New("empty tweet id")
	}

	tw, err := h.api.Tweet(ctx, tweetID)
	if err != nil {
		return nil, fmt.Errorf("loading tweet %s: %w", tweetID, err)
	}

	if h.queries != nil {
		claimed, err := h.queries.ClaimMention(ctx, db.ClaimMentionParams{
			TweetID:    tweetID,
			AuthorID:   sql.NullString{String: tw.AuthorID, Valid: tw.AuthorID != ""},
			StaleAfter: h.runTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("claiming mention: %w", err)
		}
		if !claimed {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyHandled, tweetID)
		}
	}

	// A run must end before its claim turns stale.
	ctx, cancel := context.WithTimeout(ctx, h.runTimeout)
	defer cancel()

	world := h.world(ctx, tw)
	slog.Info("mention: reacting", "tweet_id", tweetID, "author_id", tw.AuthorID)

	res, err := h.runner.React(ctx, agent.Request{
		SessionID: sessionID,
		Platform:  Platform,
		TweetID:   tweetID,
		Task:      h.task,
		World:     world,
	}, emit)

	h.finish(tweetID, err)
	if err != nil {
		return res, fmt.Errorf("reacting to %s: %w", tweetID, err)
	}
	return res, nil
}

func (h *Handler) finish(tweetID string, runErr error) {
	if h.queries == nil {
		return
	}
	p := db.FinishMentionParams{TweetID: tweetID, Status: db.MentionDone}
	if runErr != nil {
		p.Status = db.MentionFailed
		p.Error = sql.NullString{String: runErr.Error(), Valid: true}
	}
	// The run may have been cancelled; the status must still land.
	if err := h.queries.FinishMention(context.Background(), p); err != nil {
		slog.Warn("mention: failed to record status", "tweet_id", tweetID, "error", err)
	}
}

func (h *Handler) world(ctx context.Context, tw *twitter.Tweet) agent.World {
	w := agent.World{
		TweetContent: tw.Text,
		Task:         h.task,
	}

	author := tw.Author
	if author == nil && tw.AuthorID != "" {
		u, err := h.api.User(ctx, tw.AuthorID)
		if err != nil {
			slog.Warn("mention: author lookup failed", "tweet_id", tw.ID, "error", err)
		} else {
			author = u
		}
	}
	if author != nil {
		w.Author = displayName(author)
		w.Bio = author.Description
	}

	var earlier []twitter.Tweet
	if tw.ConversationID != "" {
		conv, err := h.api.Conversation(ctx, tw.ConversationID)
		if err != nil {
			slog.Warn("mention: conversation lookup failed", "tweet_id", tw.ID, "error", err)
		}
		for _, c := range conv {
			if c.ID != tw.ID {
				earlier = append(earlier, c)
			}
		}
		if h.historyLimit > 0 && len(earlier) > h.historyLimit {
			earlier = earlier[len(earlier)-h.historyLimit:]
		}
	}
	w.ConversationHistory = formatConversation(earlier)
	w.TaskReasoning = h.reasoning(tw, author, earlier)
	return w
}

func (h *Handler) reasoning(tw *twitter.Tweet, author *twitter.User, earlier []twitter.Tweet) string {
	who := "The user"
	if author != nil && author.Username != "" {
		who = "@" + author.Username
	}

	source := tw.Text
	addrs := wallet.ExtractAddresses(source)
	if len(addrs) == 0 {
		for i := len(earlier) - 1; i >= 0 && len(addrs) == 0; i-- {
			source = earlier[i].Text
			addrs = wallet.ExtractAddresses(source)
		}
	}
	if len(addrs) == 0 {
		return who + " tagged WalletAI without a wallet address. Reply asking them to share the 0x address they want analyzed."
	}

	chain := wallet.DetectChain(tw.Text, wallet.DetectChain(source, h.defaultChain))
	reason := fmt.Sprintf("%s asked for an analysis of wallet %s on %s.", who, addrs[0], chain)
	if len(addrs) > 1 {
		reason += " Other addresses mentioned: " + strings.Join(addrs[1:], ", ") + "."
	}
	return reason
}

func displayName(u *twitter.User) string {
	switch {
	case u.Username != "" && u.Name != "":
		return fmt.Sprintf("%s (@%s)", u.Name, u.Username)
	case u.Username != "":
		return "@" + u.Username
	default:
		return u.Name
	}
}

func formatConversation(tweets []twitter.Tweet) string {
	if len(tweets) == 0 {
		return "none"
	}
	var b strings.Builder
	for i, t := range tweets {
		if i > 0 {
			b.WriteString("\n")
		}
		name := t.AuthorID
		if t.Author != nil && t.Author.Username != "" {
			name = "@" + t.Author.Username
		}
		fmt.Fprintf(&b, "%s: %s", name, t.Text)
	}
	return b.String()
}
