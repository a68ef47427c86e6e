// Package config loads server settings from the environment.
//
// A .env file in the working directory is honoured if present. Environment
// variables always win over .env values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names recognised by the server.
const (
	EnvBotToken      = "SLACK_BOT_TOKEN"
	EnvClientID      = "SLACK_CLIENT_ID"
	EnvClientSecret  = "SLACK_CLIENT_SECRET"
	EnvSigningSecret = "SLACK_SIGNING_SECRET"
	EnvHost          = "HOST"
	EnvPort          = "PORT"
	EnvCredsFile     = "SLACK_CREDS_FILE"
)

// Defaults for the OAuth callback listener.
const (
	DefaultHost = "localhost"
	DefaultPort = 8000
)

// Config holds all settings the server reads from its environment.
type Config struct {
	// BotToken is a pre-issued bot token. When set, the OAuth flow is not
	// needed and the server can start serving immediately.
	BotToken string

	// OAuth application credentials, required only for the authorize flow.
	ClientID      string
	ClientSecret  string
	SigningSecret string

	// Host and Port describe where the OAuth callback listener binds.
	Host string
	Port int

	// CredsFile is an optional path where an issued credential is persisted.
	CredsFile string
}

// Load reads the configuration from the environment, consulting a .env file
// first if one exists.
func Load() (*Config, error) {
	// Missing .env is the normal case; only a malformed file is an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := &Config{
		BotToken:      os.Getenv(EnvBotToken),
		ClientID:      os.Getenv(EnvClientID),
		ClientSecret:  os.Getenv(EnvClientSecret),
		SigningSecret: os.Getenv(EnvSigningSecret),
		Host:          DefaultHost,
		Port:          DefaultPort,
		CredsFile:     os.Getenv(EnvCredsFile),
	}
	if h := os.Getenv(EnvHost); h != "" {
		c.Host = h
	}
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid %s value %q", EnvPort, p)
		}
		c.Port = port
	}
	return c, nil
}

// Addr returns the host:port the callback listener binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RedirectURI returns the OAuth redirect URI registered with the Slack app.
func (c *Config) RedirectURI() string {
	return fmt.Sprintf("http://%s/auth/slack/callback", c.Addr())
}

// ValidateOAuth checks that all settings needed to drive the delegated
// authorization flow are present.
func (c *Config) ValidateOAuth() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.SigningSecret == "" {
		missing = append(missing, EnvSigningSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("oauth configuration incomplete: %v must be set", missing)
	}
	return nil
}

// ErrNoToken is returned by ResolveToken when no token source is available.
var ErrNoToken = errors.New("no Slack token configured")
