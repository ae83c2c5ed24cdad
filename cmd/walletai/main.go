package main

import (
	"os"

	"walletai/internal/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	// version is set at build time with -ldflags "-X main.version=...".
	version = "dev"
)

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:          "walletai",
		Short:        "WalletAI analyzes crypto wallets for people who tag it on Twitter",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $WALLETAI_CONFIG or the user config dir)")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(reactCmd)
	rootCmd.AddCommand(functionsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
