package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walletai/internal/config"

	"github.com/spf13/cobra"
)

var reactCmd = &cobra.Command{
	Use:   "react <tweet_id>",
	Short: "Answer a single mention on the live Twitter account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if !cfg.Twitter.Enabled {
			return errors.New("twitter is not enabled; use `walletai simulate` to try the agent offline")
		}

		rt, err := newRuntime(ctx, cfg, twitterClient(cfg.Twitter))
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.handler.HandleMentionStream(ctx, args[0], printEvent)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
