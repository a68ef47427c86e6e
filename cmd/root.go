// Package cmd wires the command-line interface. The root command runs the
// MCP server; the authorize subcommand drives the browser-based token
// handshake.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aaronpaddy/slack-mcp-server/internal/config"
	"github.com/aaronpaddy/slack-mcp-server/internal/creds"
	"github.com/aaronpaddy/slack-mcp-server/internal/server"
	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

var rootOpts struct {
	transport string
	addr      string
	token     string
	credsFile string
	logLevel  string
}

var rootCmd = &cobra.Command{
	Use:   "slack-mcp-server",
	Short: "MCP server exposing a Slack workspace to AI agents",
	Long: `slack-mcp-server bridges a Slack workspace to MCP clients.

It exposes tools for posting messages, reading channel history and looking up
channels and users, plus read-only workspace:// resources. A token can come
from the --token flag, the SLACK_BOT_TOKEN environment variable, or a
credentials file written by "slack-mcp-server authorize".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the CLI.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootOpts.token, "token", "", "Slack bot token (overrides SLACK_BOT_TOKEN)")
	pf.StringVar(&rootOpts.credsFile, "creds-file", "", "path to the credentials file (overrides SLACK_CREDS_FILE)")
	pf.StringVar(&rootOpts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&rootOpts.transport, "transport", string(server.TransportStdio), "MCP transport (stdio or http)")
	rootCmd.Flags().StringVar(&rootOpts.addr, "addr", "localhost:8080", "listen address for the http transport")
}

func runServe(ctx context.Context) error {
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

	store := creds.NewStore()
	if err := resolveToken(cfg, store); err != nil {
		return err
	}

	client := slackclient.New(store, slackclient.WithLogger(lg))

	// Fail fast on a dead token rather than surfacing auth errors one tool
	// call at a time.
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	info, err := client.AuthTest(checkCtx)
	if err != nil {
		return fmt.Errorf("token check failed: %w", err)
	}
	lg.Info("authenticated", "team", info.Team, "user", info.User)

	srv := server.New(client, server.WithLogger(lg))
	switch server.Transport(rootOpts.transport) {
	case server.TransportStdio:
		return srv.ServeStdio(ctx)
	case server.TransportHTTP:
		return srv.ServeHTTP(ctx, rootOpts.addr)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or http)", rootOpts.transport)
	}
}

// resolveToken seeds the store from the first available source: the --token
// flag, the environment, then the credentials file.
func resolveToken(cfg *config.Config, store *creds.Store) error {
	if rootOpts.token != "" {
		store.Set(creds.Credential{AccessToken: rootOpts.token, ObtainedAt: time.Now().UTC()})
		return nil
	}
	if cfg.BotToken != "" {
		store.Set(creds.Credential{AccessToken: cfg.BotToken, ObtainedAt: time.Now().UTC()})
		return nil
	}
	if cfg.CredsFile != "" {
		cred, err := creds.LoadFile(cfg.CredsFile)
		if err != nil {
			if errors.Is(err, creds.ErrNotAuthenticated) {
				return fmt.Errorf("%w: credentials file %s holds no token; run \"slack-mcp-server authorize\"", config.ErrNoToken, cfg.CredsFile)
			}
			return err
		}
		store.Set(cred)
		return nil
	}
	return fmt.Errorf("%w: set SLACK_BOT_TOKEN, pass --token, or run \"slack-mcp-server authorize\"", config.ErrNoToken)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	// Logs go to stderr; stdout belongs to the stdio transport.
	lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(lg)
	return lg, nil
}
