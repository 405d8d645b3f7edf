package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"deplostatus/internal/ghauth"
	"deplostatus/internal/githubapi"
	"deplostatus/internal/security"

	"github.com/spf13/cobra"
)

var (
	hookRepo  string
	hookURL   string
	hookToken string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Register the webhook on a repository",
	Long: `Register the workflow_run and issues webhook on a repository using a token.

The webhook secret comes from the configuration. Running the command again
for the same URL does nothing.`,
	Example: `  deplostatus hook --repo acme/shop --url https://deplostatus.example.com`,
	RunE:    runHook,
}

func init() {
	hookCmd.Flags().StringVar(&hookRepo, "repo", "", "Repository in owner/name form")
	hookCmd.Flags().StringVar(&hookURL, "url", "", "Public base URL of the bot (https)")
	hookCmd.Flags().StringVar(&hookToken, "token", "", "GitHub token with admin:repo_hook scope (overrides github.token)")
	_ = hookCmd.MarkFlagRequired("repo")
	_ = hookCmd.MarkFlagRequired("url")
}

// webhookURL appends the /webhook path when only a base URL is given
func webhookURL(base string) (string, error) {
	if err := security.ValidateWebhookURL(base); err != nil {
		return "", err
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = "/webhook"
	}
	return u.String(), nil
}

func runHook(cmd *cobra.Command, args []string) error {
	owner, repo, err := security.SplitFullName(hookRepo)
	if err != nil {
		return err
	}

	target, err := webhookURL(hookURL)
	if err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := security.ValidateSecret(cfg.WebhookSecret); err != nil {
		return fmt.Errorf("webhook_secret: %w", err)
	}

	token := cfg.GitHub.Token
	if cmd.Flags().Changed("token") {
		token = hookToken
	}
	if token == "" {
		return fmt.Errorf("a GitHub token is required (--token or github.token)")
	}

	provider, err := ghauth.NewStaticProvider(token, cfg.GitHub.APIURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	gh, err := provider.Client(ctx, 0)
	if err != nil {
		return err
	}

	created, err := githubapi.EnsureWebhook(ctx, gh, owner, repo, target, cfg.WebhookSecret)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "Created webhook %s on %s/%s\n", target, owner, repo)
	} else {
		fmt.Fprintf(out, "Webhook %s already exists on %s/%s\n", target, owner, repo)
	}
	return nil
}
