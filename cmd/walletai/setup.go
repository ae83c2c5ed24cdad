package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"walletai/internal/config"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively write the walletai config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.Path()
		}

		cfg, err := config.Load(path)
		if err != nil {
			// Start over from defaults rather than refusing to fix a broken file.
			cfg = config.Default()
		}
		llmCfg := cfg.LLM()

		if llmCfg.BaseURL, err = ask("LLM base URL (empty for OpenAI)", llmCfg.BaseURL, optionalURL); err != nil {
			return err
		}
		if llmCfg.Model, err = ask("Model", llmCfg.Model, required); err != nil {
			return err
		}
		if llmCfg.APIKey, err = askSecret("LLM API key (empty to use OPENAI_API_KEY / VIRTUALS_API_KEY)"); err != nil {
			return err
		}
		if cfg.Functions.APIBase, err = ask("Wallet analysis API base", cfg.Functions.APIBase, requiredURL); err != nil {
			return err
		}

		sel := promptui.Select{
			Label:        "Connect to the live Twitter account?",
			Items:        []string{"no", "yes"},
			HideSelected: true,
		}
		_, choice, err := sel.Run()
		if err != nil {
			return err
		}
		cfg.Twitter.Enabled = choice == "yes"
		if cfg.Twitter.Enabled {
			if cfg.Twitter.BotUserID, err = ask("Bot user id", cfg.Twitter.BotUserID, required); err != nil {
				return err
			}
			if cfg.Twitter.BotUsername, err = ask("Bot username (without @)", cfg.Twitter.BotUsername, nil); err != nil {
				return err
			}
			cfg.Twitter.BotUsername = strings.TrimPrefix(cfg.Twitter.BotUsername, "@")
			fmt.Println("Twitter tokens are read from TWITTER_BEARER_TOKEN, TWITTER_ACCESS_TOKEN and TWITTER_CONSUMER_SECRET.")
		}

		if cfg.Gateway.Addr, err = ask("Gateway listen address", cfg.Gateway.Addr, required); err != nil {
			return err
		}

		if err := config.Save(path, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Config written to %s\n", path)
		return nil
	},
}

func ask(label, def string, validate promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{Label: label, Default: def, AllowEdit: true, Validate: validate}
	v, err := p.Run()
	return strings.TrimSpace(v), err
}

func askSecret(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	return p.Run()
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func requiredURL(s string) error {
	if err := required(s); err != nil {
		return err
	}
	return optionalURL(s)
}

func optionalURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("not a valid URL")
	}
	return nil
}
