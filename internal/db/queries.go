package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Queries holds the named statements used by the stores.
type Queries struct {
	db *sqlx.DB
}

func New(conn *sqlx.DB) *Queries {
	return &Queries{db: conn}
}

type UpsertSessionParams struct {
	ID      string `db:"id"`
	Channel string `db:"channel"`
}

func (q *Queries) UpsertSession(ctx context.Context, arg UpsertSessionParams) error {
	_, err := q.db.NamedExecContext(ctx, `
		INSERT INTO sessions (id, channel) VALUES (:id, :channel)
		ON CONFLICT(id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, arg)
	return err
}

func (q *Queries) GetSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := q.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = ?`, id)
	return s, err
}

func (q *Queries) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	var out []Session
	err := q.db.SelectContext(ctx, &out, `SELECT * FROM sessions ORDER BY updated_at DESC, id LIMIT ?`, limit)
	return out, err
}

type UpdateSessionSummaryParams struct {
	Summary     sql.NullString `db:"summary"`
	SummaryUpTo sql.NullString `db:"summary_up_to"`
	ID          string         `db:"id"`
}

func (q *Queries) UpdateSessionSummary(ctx context.Context, arg UpdateSessionSummaryParams) error {
	_, err := q.db.NamedExecContext(ctx, `
		UPDATE sessions SET summary = :summary, summary_up_to = :summary_up_to, updated_at = CURRENT_TIMESTAMP
		WHERE id = :id`, arg)
	return err
}

type InsertTurnParams struct {
	SessionID    string         `db:"session_id"`
	UserMessage  string         `db:"user_message"`
	ResponseJSON string         `db:"response_json"`
	Model        sql.NullString `db:"model"`
}

func (q *Queries) InsertTurn(ctx context.Context, arg InsertTurnParams) error {
	_, err := q.db.NamedExecContext(ctx, `
		INSERT INTO turns (session_id, user_message, response_json, model)
		VALUES (:session_id, :user_message, :response_json, :model)`, arg)
	return err
}

func (q *Queries) GetTurnsBySession(ctx context.Context, sessionID string) ([]Turn, error) {
	var out []Turn
	err := q.db.SelectContext(ctx, &out, `SELECT * FROM turns WHERE session_id = ? ORDER BY id`, sessionID)
	return out, err
}

// GetTurnsAfter returns the turns of a session with id greater than afterID.
func (q *Queries) GetTurnsAfter(ctx context.Context, sessionID string, afterID int64) ([]Turn, error) {
	var out []Turn
	err := q.db.SelectContext(ctx, &out, `SELECT * FROM turns WHERE session_id = ? AND id > ? ORDER BY id`, sessionID, afterID)
	return out, err
}

func (q *Queries) CountTurnsBySession(ctx context.Context, sessionID string) (int64, error) {
	var n int64
	err := q.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID)
	return n, err
}

type ClaimMentionParams struct {
	TweetID  string         `db:"tweet_id"`
	AuthorID sql.NullString `db:"author_id"`
	// StaleAfter lets a pending claim older than this be taken over, for runs
	// that died without finishing. Zero keeps pending claims forever.
	StaleAfter time.Duration `db:"-"`
}

// ClaimMention records a pending mention. It reports false when the mention
// was already finished or is pending and not yet stale.
func (q *Queries) ClaimMention(ctx context.Context, arg ClaimMentionParams) (bool, error) {
	stale := ""
	if arg.StaleAfter > 0 {
		stale = fmt.Sprintf("-%d seconds", int64(arg.StaleAfter/time.Second))
	}
	res, err := q.db.NamedExecContext(ctx, `
		INSERT INTO mentions (tweet_id, author_id, status) VALUES (:tweet_id, :author_id, 'pending')
		ON CONFLICT(tweet_id) DO UPDATE SET status = 'pending', error = NULL, processed_at = CURRENT_TIMESTAMP
		WHERE mentions.status = 'failed'
		   OR (mentions.status = 'pending' AND :stale <> '' AND mentions.processed_at <= datetime('now', :stale))`,
		map[string]any{
			"tweet_id":  arg.TweetID,
			"author_id": arg.AuthorID,
			"stale":     stale,
		})
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type FinishMentionParams struct {
	TweetID string         `db:"tweet_id"`
	Status  string         `db:"status"`
	Error   sql.NullString `db:"error"`
}

func (q *Queries) FinishMention(ctx context.Context, arg FinishMentionParams) error {
	_, err := q.db.NamedExecContext(ctx, `
		UPDATE mentions SET status = :status, error = :error, processed_at = CURRENT_TIMESTAMP
		WHERE tweet_id = :tweet_id`, arg)
	return err
}

func (q *Queries) GetMention(ctx context.Context, tweetID string) (Mention, error) {
	var m Mention
	err := q.db.GetContext(ctx, &m, `SELECT * FROM mentions WHERE tweet_id = ?`, tweetID)
	return m, err
}

func (q *Queries) GetCursor(ctx context.Context, name string) (string, error) {
	var v string
	err := q.db.GetContext(ctx, &v, `SELECT value FROM cursors WHERE name = ?`, name)
	return v, err
}

func (q *Queries) SetCursor(ctx context.Context, name, value string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO cursors (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, name, value)
	return err
}
