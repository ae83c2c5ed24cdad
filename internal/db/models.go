package db

import (
	"database/sql"
	"time"
)

type Session struct {
	ID          string         `db:"id"`
	Channel     string         `db:"channel"`
	Summary     sql.NullString `db:"summary"`
	SummaryUpTo sql.NullString `db:"summary_up_to"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type Turn struct {
	ID           int64          `db:"id"`
	SessionID    string         `db:"session_id"`
	UserMessage  string         `db:"user_message"`
	ResponseJSON string         `db:"response_json"`
	Model        sql.NullString `db:"model"`
	CreatedAt    time.Time      `db:"created_at"`
}

type Mention struct {
	TweetID     string         `db:"tweet_id"`
	AuthorID    sql.NullString `db:"author_id"`
	Status      string         `db:"status"`
	Error       sql.NullString `db:"error"`
	ProcessedAt time.Time      `db:"processed_at"`
}

// Mention statuses.
const (
	MentionPending = "pending"
	MentionDone    = "done"
	MentionFailed  = "failed"
)
