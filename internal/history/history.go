package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"walletai/internal/db"

	"github.com/openai/openai-go/v3/responses"
)

type Store struct {
	q *db.Queries
}

func NewStore(database *db.DB) *Store {
	return &Store{q: db.New(database.Conn())}
}

func (s *Store) EnsureSession(ctx context.Context, sessionID, channel string) error {
	return s.q.UpsertSession(ctx, db.UpsertSessionParams{
		ID:      sessionID,
		Channel: channel,
	})
}

func (s *Store) SaveTurn(ctx context.Context, sessionID, userMessage string, resp *responses.Response) error {
	raw := resp.RawJSON()
	if raw == "" {
		b, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	return s.q.InsertTurn(ctx, db.InsertTurnParams{
		SessionID:    sessionID,
		UserMessage:  userMessage,
		ResponseJSON: raw,
		Model:        sql.NullString{String: resp.Model, Valid: resp.Model != ""},
	})
}

// Sessions lists the most recently active sessions.
func (s *Store) Sessions(ctx context.Context, limit int) ([]db.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.q.ListSessions(ctx, limit)
}

// Session returns one session and its turns.
func (s *Store) Session(ctx context.Context, sessionID string) (db.Session, []db.Turn, error) {
	session, err := s.q.GetSession(ctx, sessionID)
	if err != nil {
		return db.Session{}, nil, err
	}
	turns, err := s.q.GetTurnsBySession(ctx, sessionID)
	if err != nil {
		return db.Session{}, nil, err
	}
	return session, turns, nil
}

// LoadInputHistory rebuilds the model input for a session. Turns already
// folded into the session summary are replaced by the summary itself.
func (s *Store) LoadInputHistory(ctx context.Context, sessionID string) ([]responses.ResponseInputItemUnionParam, error) {
	var (
		items   []responses.ResponseInputItemUnionParam
		afterID int64
	)

	session, err := s.q.GetSession(ctx, sessionID)
	switch {
	case err == nil:
		if session.Summary.Valid && session.Summary.String != "" {
			items = append(items, responses.ResponseInputItemParamOfMessage("[Earlier conversation summary]\n"+session.Summary.String, "developer"))
			if id, err := strconv.ParseInt(session.SummaryUpTo.String, 10, 64); err == nil {
				afterID = id
			}
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	turns, err := s.q.GetTurnsAfter(ctx, sessionID, afterID)
	if err != nil {
		return nil, err
	}

	for _, turn := range turns {
		items = append(items, responses.ResponseInputItemParamOfMessage(turn.UserMessage, "user"))

		var resp responses.Response
		if err := json.Unmarshal([]byte(turn.ResponseJSON), &resp); err != nil {
			slog.Warn("skipping turn with invalid response JSON", "turn_id", turn.ID, "error", err)
			continue
		}

		// Only the visible assistant text is replayed; tool calls from earlier
		// turns would need their outputs alongside them.
		if text := OutputText(resp.Output); text != "" {
			items = append(items, responses.ResponseInputItemParamOfMessage(text, "assistant"))
		}
	}

	return items, nil
}

// OutputText concatenates the output_text parts of all message items.
func OutputText(output []responses.ResponseOutputItemUnion) string {
	var b strings.Builder
	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.AsMessage().Content {
			if c.Type == "output_text" {
				b.WriteString(c.AsOutputText().Text)
			}
		}
	}
	return b.String()
}

// OutputToInput converts response output items into input item params
// for the next API call. Each output type's ToParam() does a lossless
// round-trip via RawJSON.
func OutputToInput(output []responses.ResponseOutputItemUnion) []responses.ResponseInputItemUnionParam {
	var items []responses.ResponseInputItemUnionParam
	for _, item := range output {
		switch item.Type {
		case "message":
			v := item.AsMessage().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfOutputMessage: &v})
		case "function_call":
			v := item.AsFunctionCall().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfFunctionCall: &v})
		case "reasoning":
			v := item.AsReasoning().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfReasoning: &v})
		case "web_search_call":
			v := item.AsWebSearchCall().ToParam()
			items = append(items, responses.ResponseInputItemUnionParam{OfWebSearchCall: &v})
		default:
			slog.Debug("skipping unknown output item type", "type", item.Type)
		}
	}
	return items
}
