package channels

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"walletai/internal/agent"
	"walletai/internal/db"
	"walletai/internal/mention"
	"walletai/internal/queue"
	"walletai/internal/twitter"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"
)

const mentionsCursor = "twitter.mentions"

type MentionHandler interface {
	HandleMention(ctx context.Context, tweetID string) (*agent.Result, error)
}

type TwitterOptions struct {
	BotUserID      string
	ConsumerSecret string
	PollInterval   time.Duration
	Workers        int
}

// Twitter receives mentions of the bot from the Account Activity webhook
// and from polling the mentions timeline, queues them, and feeds them to
// the mention handler.
type Twitter struct {
	api     twitter.API
	handler MentionHandler
	queue   queue.Queue
	queries *db.Queries
	opts    TwitterOptions
}

func NewTwitter(api twitter.API, handler MentionHandler, q queue.Queue, database *db.DB, opts TwitterOptions) *Twitter {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Twitter{
		api:     api,
		handler: handler,
		queue:   q,
		queries: db.New(database.Conn()),
		opts:    opts,
	}
}

func (t *Twitter) Name() string { return "twitter" }

func (t *Twitter) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook/twitter", t.handleCRC)
	mux.HandleFunc("POST /webhook/twitter", t.handleWebhook)
}

func (t *Twitter) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := t.queue.Consume(ctx, t.opts.Workers, t.process)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if t.opts.PollInterval > 0 {
		g.Go(func() error { return t.runPoller(ctx) })
	}

	slog.Info("twitter: channel started", "workers", t.opts.Workers, "poll_interval", t.opts.PollInterval)
	return g.Wait()
}

func (t *Twitter) runPoller(ctx context.Context) error {
	s, err := newScheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(t.opts.PollInterval),
		gocron.NewTask(func() {
			if err := t.Poll(ctx); err != nil {
				slog.Warn("twitter: poll failed", "error", err)
			}
		}),
		gocron.WithName("twitter-mentions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("scheduling mention poll: %w", err)
	}
	s.Start()
	<-ctx.Done()
	return s.Shutdown()
}

// Poll queues mentions newer than the stored cursor. The first poll only
// records the newest mention so that history is not answered on startup.
func (t *Twitter) Poll(ctx context.Context) error {
	cursor, err := t.queries.GetCursor(ctx, mentionsCursor)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading cursor: %w", err)
	}
	first := errors.Is(err, sql.ErrNoRows)

	tweets, err := t.api.Mentions(ctx, t.opts.BotUserID, cursor)
	if err != nil {
		return fmt.Errorf("fetching mentions: %w", err)
	}
	if len(tweets) == 0 {
		if first {
			return t.queries.SetCursor(ctx, mentionsCursor, "")
		}
		return nil
	}

	if !first {
		for _, tw := range tweets {
			if tw.AuthorID == t.opts.BotUserID {
				continue
			}
			if err := t.queue.Publish(ctx, tw.ID); err != nil {
				return fmt.Errorf("queueing mention %s: %w", tw.ID, err)
			}
			if err := t.queries.SetCursor(ctx, mentionsCursor, tw.ID); err != nil {
				return fmt.Errorf("saving cursor: %w", err)
			}
		}
		slog.Debug("twitter: mentions queued", "count", len(tweets))
		return nil
	}

	newest := tweets[len(tweets)-1].ID
	slog.Info("twitter: mention cursor initialised", "since_id", newest, "skipped", len(tweets))
	return t.queries.SetCursor(ctx, mentionsCursor, newest)
}

// process is the queue handler. Only cancellation is reported back so the
// id is redelivered; other failures are recorded on the mention itself.
func (t *Twitter) process(ctx context.Context, tweetID string) error {
	res, err := t.handler.HandleMention(ctx, tweetID)
	switch {
	case err == nil:
		slog.Info("twitter: mention handled", "tweet_id", tweetID, "tool_calls", len(res.ToolCalls))
		return nil
	case errors.Is(err, mention.ErrAlreadyHandled):
		slog.Debug("twitter: mention already handled", "tweet_id", tweetID)
		return nil
	case ctx.Err() != nil:
		return err
	default:
		slog.Error("twitter: mention failed", "tweet_id", tweetID, "error", err)
		return nil
	}
}

func (t *Twitter) handleCRC(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("crc_token")
	if token == "" {
		http.Error(w, "missing crc_token", http.StatusBadRequest)
		return
	}
	if t.opts.ConsumerSecret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"response_token": "sha256=" + sign(t.opts.ConsumerSecret, []byte(token)),
	})
}

type activityEvent struct {
	ForUserID         string          `json:"for_user_id"`
	TweetCreateEvents []activityTweet `json:"tweet_create_events"`
}

type activityTweet struct {
	IDStr              string    `json:"id_str"`
	InReplyToUserIDStr string    `json:"in_reply_to_user_id_str"`
	RetweetedStatus    *struct{} `json:"retweeted_status"`
	User               struct {
		IDStr string `json:"id_str"`
	} `json:"user"`
	Entities struct {
		UserMentions []struct {
			IDStr string `json:"id_str"`
		} `json:"user_mentions"`
	} `json:"entities"`
}

func (t *Twitter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	// Without a secret nothing can be verified, so the webhook stays closed.
	if t.opts.ConsumerSecret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}
	want := "sha256=" + sign(t.opts.ConsumerSecret, body)
	if !hmac.Equal([]byte(r.Header.Get("X-Twitter-Webhooks-Signature")), []byte(want)) {
		slog.Warn("twitter: webhook signature mismatch")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var ev activityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		slog.Error("twitter: failed to decode webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	queued := 0
	for _, tw := range ev.TweetCreateEvents {
		if !t.mentionsBot(tw) {
			continue
		}
		if err := t.queue.Publish(r.Context(), tw.IDStr); err != nil {
			slog.Error("twitter: failed to queue mention", "tweet_id", tw.IDStr, "error", err)
			http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
			return
		}
		queued++
	}
	if queued > 0 {
		slog.Info("twitter: webhook mentions queued", "count", queued)
	}
	w.WriteHeader(http.StatusOK)
}

func (t *Twitter) mentionsBot(tw activityTweet) bool {
	if tw.IDStr == "" || tw.User.IDStr == t.opts.BotUserID || tw.RetweetedStatus != nil {
		return false
	}
	if tw.InReplyToUserIDStr == t.opts.BotUserID {
		return true
	}
	for _, m := range tw.Entities.UserMentions {
		if m.IDStr == t.opts.BotUserID {
			return true
		}
	}
	return false
}

func sign(secret string, msg []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(msg)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
