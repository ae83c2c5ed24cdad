package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"walletai/internal/config"
	"walletai/internal/db"
	"walletai/internal/history"
	"walletai/internal/llm"

	"github.com/openai/openai-go/v3/responses"
)

const summaryInstructions = "Summarize the following wallet-analysis conversation concisely. Keep wallet addresses, chains, token symbols, figures and recommendations already given. Output only the summary, no preamble."

// Compactor summarizes older conversation turns to keep context windows manageable.
type Compactor struct {
	queries  *db.Queries
	provider llm.Provider
	cfg      config.CompactionConfig
}

func NewCompactor(database *db.DB, provider llm.Provider, cfg config.CompactionConfig) *Compactor {
	return &Compactor{
		queries:  db.New(database.Conn()),
		provider: provider,
		cfg:      cfg,
	}
}

// MaybeCompact checks if the turns not yet folded into the session summary
// have reached the threshold and summarizes the older ones if so. It reports whether a summary was written.
func (c *Compactor) MaybeCompact(ctx context.Context, sessionID string) bool {
	count, err := c.queries.CountTurnsBySession(ctx, sessionID)
	if err != nil {
		slog.Debug("compaction: count error", "session_id", sessionID, "error", err)
		return false
	}

	// Cheap early exit; the unsummarized count below is what decides.
	if int(count) < c.cfg.TurnThreshold {
		return false
	}

	session, err := c.queries.GetSession(ctx, sessionID)
	if err != nil {
		slog.Debug("compaction: get session error", "session_id", sessionID, "error", err)
		return false
	}

	var after int64
	if session.SummaryUpTo.Valid {
		fmt.Sscan(session.SummaryUpTo.String, &after)
	}

	turns, err := c.queries.GetTurnsAfter(ctx, sessionID, after)
	if err != nil {
		slog.Debug("compaction: get turns error", "session_id", sessionID, "error", err)
		return false
	}

	if len(turns) < c.cfg.TurnThreshold || len(turns) <= c.cfg.KeepRecent {
		return false
	}

	toSummarize := turns[:len(turns)-c.cfg.KeepRecent]
	cutoffID := toSummarize[len(toSummarize)-1].ID

	var b strings.Builder
	if session.Summary.Valid && session.Summary.String != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", session.Summary.String)
	}
	b.WriteString("New turns to incorporate:\n")
	for _, turn := range toSummarize {
		fmt.Fprintf(&b, "User: %s\n", turn.UserMessage)
		var resp responses.Response
		if err := json.Unmarshal([]byte(turn.ResponseJSON), &resp); err == nil {
			if text := history.OutputText(resp.Output); text != "" {
				fmt.Fprintf(&b, "Assistant: %s\n", text)
			}
		}
	}

	summary, err := c.summarize(ctx, b.String())
	if err != nil {
		slog.Debug("compaction: summarize error", "session_id", sessionID, "error", err)
		return false
	}

	err = c.queries.UpdateSessionSummary(ctx, db.UpdateSessionSummaryParams{
		Summary:     sql.NullString{String: summary, Valid: true},
		SummaryUpTo: sql.NullString{String: fmt.Sprintf("%d", cutoffID), Valid: true},
		ID:          sessionID,
	})
	if err != nil {
		slog.Debug("compaction: update summary error", "session_id", sessionID, "error", err)
		return false
	}

	slog.Info("compaction: summarized turns",
		"session_id", sessionID,
		"turns_summarized", len(toSummarize),
		"cutoff_id", cutoffID,
	)
	return true
}

func (c *Compactor) summarize(ctx context.Context, text string) (string, error) {
	summary, err := llm.Complete(ctx, c.provider, summaryInstructions, text)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return summary, nil
}
