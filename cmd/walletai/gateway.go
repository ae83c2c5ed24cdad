package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"walletai/internal/channels"
	"walletai/internal/config"
	"walletai/internal/gateway"
	"walletai/internal/queue"
	"walletai/internal/trace"
	"walletai/internal/twitter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var gatewayAddr string

var gatewayCmd = &cobra.Command{
	Use:     "gateway",
	Aliases: []string{"deploy"},
	Short:   "Answer mentions on the live Twitter account and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if gatewayAddr != "" {
			cfg.Gateway.Addr = gatewayAddr
		}
		if !cfg.Twitter.Enabled {
			return errors.New("twitter is not enabled; run `walletai setup` or set [twitter] enabled = true")
		}

		api := twitterClient(cfg.Twitter)
		if cfg.Twitter.BotUsername == "" {
			me, err := api.Me(ctx)
			if err != nil {
				return fmt.Errorf("looking up bot account: %w", err)
			}
			cfg.Twitter.BotUsername = me.Username
		}

		rt, err := newRuntime(ctx, cfg, api)
		if err != nil {
			return err
		}
		defer rt.Close()

		q, err := queue.New(cfg.Queue)
		if err != nil {
			return fmt.Errorf("opening queue: %w", err)
		}
		defer q.Close()

		ch := channels.NewTwitter(api, rt.handler, q, rt.database, channels.TwitterOptions{
			BotUserID:      cfg.Twitter.BotUserID,
			ConsumerSecret: cfg.Twitter.ConsumerSecret,
			PollInterval:   time.Duration(cfg.Twitter.PollIntervalSeconds) * time.Second,
			Workers:        cfg.Twitter.Workers,
		})

		srv := gateway.NewServer(rt.handler, rt.store, gateway.Options{
			Token:     cfg.Gateway.Token,
			Functions: rt.functions,
			Tools:     rt.registry.Names(),
		}, ch)

		slog.Info("gateway starting", "addr", cfg.Gateway.Addr, "bot", cfg.Twitter.BotUsername, "queue", cfg.Queue.Type)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return ch.Start(gctx) })
		g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Gateway.Addr) })
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	gatewayCmd.Flags().StringVar(&gatewayAddr, "addr", "", "listen address (overrides config)")
}

func twitterClient(cfg config.TwitterConfig) *twitter.Client {
	return twitter.NewClient(cfg.APIBase, cfg.BearerToken, cfg.AccessToken,
		twitter.WithHTTPClient(trace.HTTPClient(30*time.Second)))
}
