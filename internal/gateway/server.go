package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"walletai/internal/agent"
	"walletai/internal/channels"
	"walletai/internal/functions"
	"walletai/internal/history"
)

// Mentions runs the agent for one tweet, streaming events to emit.
type Mentions interface {
	HandleMentionStream(ctx context.Context, tweetID string, emit func(agent.Event)) (*agent.Result, error)
}

type Options struct {
	// Token, when set, is required as a bearer token on /v1 routes.
	Token     string
	Functions []functions.Function
	Tools     []string
}

type Server struct {
	mentions Mentions
	store    *history.Store
	opts     Options
	mux      *http.ServeMux
	runs     *runs
}

func NewServer(mentions Mentions, store *history.Store, opts Options, chs ...channels.Channel) *Server {
	s := &Server{
		mentions: mentions,
		store:    store,
		opts:     opts,
		mux:      http.NewServeMux(),
		runs:     newRuns(),
	}
	s.routes()
	for _, ch := range chs {
		ch.RegisterRoutes(s.mux)
	}
	return s
}

func (s *Server) routes() {
	s.mux.Handle("POST /v1/react", s.auth(s.handleReact))
	s.mux.Handle("GET /v1/functions", s.auth(s.handleFunctions))
	s.mux.Handle("GET /v1/sessions", s.auth(s.handleListSessions))
	s.mux.Handle("GET /v1/sessions/{id}", s.auth(s.handleGetSession))
	s.mux.Handle("DELETE /v1/sessions/{id}/run", s.auth(s.handleCancelRun))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) auth(next http.HandlerFunc) http.Handler {
	if s.opts.Token == "" {
		return next
	}
	want := "Bearer " + s.opts.Token
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != want {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
