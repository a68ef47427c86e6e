package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronpaddy/slack-mcp-server/internal/config"
	"github.com/aaronpaddy/slack-mcp-server/internal/creds"
	"github.com/aaronpaddy/slack-mcp-server/internal/oauth"
	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

var authorizeOpts struct {
	timeout time.Duration
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Obtain a Slack token through the browser-based OAuth flow",
	Long: `authorize opens the Slack consent screen in your browser, receives the
redirect on a local listener, exchanges the authorization code for a bot
token, and stores it for later runs.

Requires SLACK_CLIENT_ID, SLACK_CLIENT_SECRET and SLACK_SIGNING_SECRET to be
set (a .env file in the working directory is honoured).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAuthorize(cmd)
	},
}

func init() {
	authorizeCmd.Flags().DurationVar(&authorizeOpts.timeout, "timeout", oauth.DefaultTimeout, "how long to wait for the browser redirect")
	rootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command) error {
	lg, err := newLogger(rootOpts.logLevel)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if rootOpts.credsFile != "" {
		cfg.CredsFile = rootOpts.credsFile
	}
	if err := cfg.ValidateOAuth(); err != nil {
		return err
	}

	store := creds.NewStore()
	client := slackclient.New(store, slackclient.WithLogger(lg))
	flow := oauth.NewFlow(cfg, store, client,
		oauth.WithLogger(lg),
		oauth.WithTimeout(authorizeOpts.timeout),
	)

	cmd.Printf("Opening %s in your browser...\n", fmt.Sprintf("http://%s/", cfg.Addr()))
	cred, err := flow.Run(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("Authorized with workspace %s (%s).\n", cred.TeamName, cred.TeamID)
	if cfg.CredsFile != "" {
		if err := creds.SaveFile(cfg.CredsFile, cred); err != nil {
			return err
		}
		cmd.Printf("Credential saved to %s.\n", cfg.CredsFile)
	} else {
		cmd.Println("No credentials file configured; set SLACK_CREDS_FILE or pass --creds-file to persist the token.")
	}
	cmd.Println("Start the server with: slack-mcp-server")
	return nil
}
