package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"walletai/internal/agent"
	"walletai/internal/db"
)

type reactRequest struct {
	TweetID string `json:"tweet_id"`
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.TweetID == "" {
		writeError(w, http.StatusBadRequest, "tweet_id is required")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	runID, done := s.runs.start(req.TweetID, cancel)
	defer done()

	sse := NewSSEWriter(w)
	sse.Send("run", map[string]string{"run_id": runID, "session_id": req.TweetID})
	pinging := make(chan struct{})
	go func() {
		defer close(pinging)
		sse.KeepAlive(ctx, keepAliveInterval)
	}()
	defer func() {
		cancel()
		<-pinging
	}()

	var sentError bool
	_, err := s.mentions.HandleMentionStream(ctx, req.TweetID, func(ev agent.Event) {
		switch ev.Type {
		case agent.EventToken:
			sse.Send("token", map[string]any{"content": ev.Data})
		case agent.EventError:
			sentError = true
			sse.Send("error", map[string]any{"error": ev.Data})
		default:
			sse.Send(string(ev.Type), ev.Data)
		}
	})

	if err != nil && !sentError {
		sse.Send("error", map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"functions": s.opts.Functions,
		"tools":     s.opts.Tools,
	})
}

type sessionView struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type turnView struct {
	ID          int64           `json:"id"`
	UserMessage string          `json:"user_message"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toSessionView(sess db.Session) sessionView {
	return sessionView{
		ID:        sess.ID,
		Channel:   sess.Channel,
		Summary:   sess.Summary.String,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	sessions, err := s.store.Sessions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toSessionView(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, turns, err := s.store.Session(r.Context(), r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	views := make([]turnView, 0, len(turns))
	for _, t := range turns {
		resp := json.RawMessage(t.ResponseJSON)
		if !json.Valid(resp) {
			resp = json.RawMessage("null")
		}
		views = append(views, turnView{ID: t.ID, UserMessage: t.UserMessage, Response: resp, CreatedAt: t.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": toSessionView(sess),
		"turns":   views,
	})
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	n := s.runs.cancel(r.PathValue("id"))
	if n == 0 {
		writeError(w, http.StatusNotFound, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": n})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
