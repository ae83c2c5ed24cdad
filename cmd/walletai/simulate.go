package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walletai/internal/agent"
	"walletai/internal/config"
	"walletai/internal/simulation"
	"walletai/internal/twitter"

	"github.com/spf13/cobra"
)

var (
	simulateText    string
	simulateSession string
	simulateJSON    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the agent against a simulated Twitter mention",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		bot := twitter.User{ID: "walletai-bot", Username: cfg.Twitter.BotUsername, Name: "WalletAI"}
		if bot.Username == "" {
			bot.Username = "WalletAI"
		}
		api := twitter.NewSimulated(bot)

		rt, err := newRuntime(ctx, cfg, api)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := simulation.New(api, rt.handler).Run(ctx, simulateSession, simulateText, printEvent)
		if err != nil {
			return fmt.Errorf("simulation: %w", err)
		}

		if simulateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Println()
		fmt.Println("Simulation response:")
		fmt.Println(report.Result.Text)
		for i, r := range report.Replies {
			fmt.Printf("\nreply %d (%s):\n%s\n", i+1, r.ID, r.Text)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateText, "text", "", "mention text (default: a sample wallet analysis request)")
	simulateCmd.Flags().StringVar(&simulateSession, "session", simulation.SessionID, "session id")
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "print the full report as JSON")
}

// printEvent streams tool activity to stderr so stdout stays clean.
func printEvent(ev agent.Event) {
	switch ev.Type {
	case agent.EventToken:
		fmt.Fprint(os.Stderr, ev.Data)
	case agent.EventToolCall, agent.EventToolResult, agent.EventReply:
		fmt.Fprintf(os.Stderr, "\n[%s] %v\n", ev.Type, ev.Data)
	}
}
