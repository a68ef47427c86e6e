// Package slackclient is the call layer between the MCP dispatcher and the
// Slack Web API. It reads the current credential as a snapshot per call,
// applies the retry policy from network.go, and returns normalized models or
// typed failures.
package slackclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/aaronpaddy/slack-mcp-server/internal/creds"
)

// MaxListItems is the hard cap on items returned by any listing or history
// call. Requests above the cap are clamped, not rejected.
const MaxListItems = 1000

// exchangeFunc performs the oauth.v2.access code exchange. A variable so
// tests can intercept it; the default is the SDK implementation.
type exchangeFunc func(ctx context.Context, httpc *http.Client, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error)

func sdkExchange(ctx context.Context, httpc *http.Client, clientID, clientSecret, code, redirectURI string) (*slack.OAuthV2Response, error) {
	return slack.GetOAuthV2ResponseContext(ctx, httpc, clientID, clientSecret, code, redirectURI)
}

// Client turns (method, params) pairs into authenticated Slack Web API calls.
type Client struct {
	store       *creds.Store
	lim         *rate.Limiter
	lg          *slog.Logger
	maxAttempts int
	apiURL      string
	httpc       *http.Client
	exchange    exchangeFunc
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL points the client at an alternative API base URL. The URL must
// end with a slash. Used by tests and self-hosted proxies.
func WithAPIURL(u string) Option {
	return func(c *Client) { c.apiURL = u }
}

// WithLimiter replaces the default client-side throttle.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.lim = l }
}

// WithMaxAttempts bounds the rate-limit retry budget.
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithLogger sets the client logger.
func WithLogger(lg *slog.Logger) Option {
	return func(c *Client) { c.lg = lg }
}

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// New creates a Client reading tokens from store.
func New(store *creds.Store, opts ...Option) *Client {
	c := &Client{
		store:       store,
		lim:         NewLimiter(),
		lg:          slog.Default(),
		maxAttempts: defMaxAttempts,
		httpc:       &http.Client{Timeout: 30 * time.Second},
		exchange:    sdkExchange,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// api returns an SDK client bound to the current token snapshot. No network
// traffic happens here; a missing credential fails before any call is made.
func (c *Client) api() (*slack.Client, error) {
	cred, err := c.store.Get()
	if err != nil {
		return nil, AuthRequired()
	}
	opts := []slack.Option{slack.OptionHTTPClient(c.httpc)}
	if c.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(c.apiURL))
	}
	return slack.New(cred.AccessToken, opts...), nil
}

// AuthTest verifies the current credential against auth.test and returns the
// identity it belongs to.
func (c *Client) AuthTest(ctx context.Context) (*AuthInfo, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	var resp *slack.AuthTestResponse
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "auth.test", func() error {
		var err error
		resp, err = api.AuthTestContext(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AuthInfo{User: resp.User, UserID: resp.UserID, Team: resp.Team, TeamID: resp.TeamID}, nil
}

// ListChannels returns up to limit channels (clamped to MaxListItems),
// following cursor pagination across pages. The second return value reports
// whether more channels exist beyond the returned page.
func (c *Client) ListChannels(ctx context.Context, limit int) ([]Channel, bool, error) {
	api, err := c.api()
	if err != nil {
		return nil, false, err
	}
	limit = clampLimit(limit, MaxListItems)

	var (
		channels []Channel
		cursor   string
	)
	for {
		params := &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Limit:           pageSize(limit - len(channels)),
			Cursor:          cursor,
		}
		var (
			page []slack.Channel
			next string
		)
		err := withRetry(ctx, c.lim, c.maxAttempts, c.lg, "conversations.list", func() error {
			var err error
			page, next, err = api.GetConversationsContext(ctx, params)
			return err
		})
		if err != nil {
			return nil, false, err
		}
		for i, ch := range page {
			channels = append(channels, toChannel(ch))
			if len(channels) >= limit {
				return channels, next != "" || i < len(page)-1, nil
			}
		}
		if next == "" {
			return channels, false, nil
		}
		cursor = next
	}
}

// GetChannelHistory returns the most recent messages of a channel. The
// channel may be given as an ID or a #name. Limit is clamped to MaxListItems.
func (c *Client) GetChannelHistory(ctx context.Context, channel string, limit int, oldest, latest string) (*History, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	id, err := c.resolveChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	params := &slack.GetConversationHistoryParameters{
		ChannelID: id,
		Limit:     clampLimit(limit, MaxListItems),
		Oldest:    oldest,
		Latest:    latest,
	}
	var resp *slack.GetConversationHistoryResponse
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "conversations.history", func() error {
		var err error
		resp, err = api.GetConversationHistoryContext(ctx, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	h := &History{
		Messages: make([]Message, 0, len(resp.Messages)),
		HasMore:  resp.HasMore,
	}
	for _, m := range resp.Messages {
		h.Messages = append(h.Messages, Message{
			TS:         m.Timestamp,
			Channel:    id,
			User:       m.User,
			Text:       m.Text,
			ThreadTS:   m.ThreadTimestamp,
			ReplyCount: m.ReplyCount,
		})
	}
	return h, nil
}

// GetChannel returns a single channel by ID or #name.
func (c *Client) GetChannel(ctx context.Context, channel string) (*Channel, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	id, err := c.resolveChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	var ch *slack.Channel
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "conversations.info", func() error {
		var err error
		ch, err = api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
			ChannelID: id,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := toChannel(*ch)
	return &out, nil
}

// PostMessage posts text to a channel (ID or #name), optionally as a thread
// reply.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (*PostedMessage, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	id, err := c.resolveChannel(ctx, channel)
	if err != nil {
		return nil, err
	}
	msgOpts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		msgOpts = append(msgOpts, slack.MsgOptionTS(threadTS))
	}
	var respChannel, respTS string
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "chat.postMessage", func() error {
		var err error
		respChannel, respTS, err = api.PostMessageContext(ctx, id, msgOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &PostedMessage{Channel: respChannel, TS: respTS, Text: text}, nil
}

// GetUserInfo returns a single workspace member by ID.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (*User, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	var u *slack.User
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "users.info", func() error {
		var err error
		u, err = api.GetUserInfoContext(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	user := toUser(*u)
	return &user, nil
}

// ListUsers returns up to limit active workspace members (clamped to
// MaxListItems). Deleted accounts are skipped. The second return value
// reports whether more members exist beyond the returned page.
func (c *Client) ListUsers(ctx context.Context, limit int) ([]User, bool, error) {
	api, err := c.api()
	if err != nil {
		return nil, false, err
	}
	limit = clampLimit(limit, MaxListItems)

	var members []slack.User
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "users.list", func() error {
		var err error
		members, err = api.GetUsersContext(ctx)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	users := make([]User, 0, min(limit, len(members)))
	hasMore := false
	for _, m := range members {
		if m.Deleted {
			continue
		}
		if len(users) >= limit {
			hasMore = true
			break
		}
		users = append(users, toUser(m))
	}
	return users, hasMore, nil
}

// WorkspaceInfo returns team-level metadata for the workspace.
func (c *Client) WorkspaceInfo(ctx context.Context) (*Workspace, error) {
	api, err := c.api()
	if err != nil {
		return nil, err
	}
	var info *slack.TeamInfo
	err = withRetry(ctx, c.lim, c.maxAttempts, c.lg, "team.info", func() error {
		var err error
		info, err = api.GetTeamInfoContext(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Workspace{ID: info.ID, Name: info.Name, Domain: info.Domain, EmailDomain: info.EmailDomain}, nil
}

// ExchangeCode trades an authorization code for an access token via
// oauth.v2.access. Exchange rejections surface as authorization_failed; the
// handshake does not retry a rejected code.
func (c *Client) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (creds.Credential, error) {
	var resp *slack.OAuthV2Response
	err := withRetry(ctx, c.lim, c.maxAttempts, c.lg, "oauth.v2.access", func() error {
		var err error
		resp, err = c.exchange(ctx, c.httpc, clientID, clientSecret, code, redirectURI)
		return err
	})
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) && (typed.Code == CodeRateLimited || typed.Code == CodeUnavailable) {
			return creds.Credential{}, err
		}
		return creds.Credential{}, AuthFailed("authorization code exchange rejected", err)
	}
	if resp.AccessToken == "" {
		return creds.Credential{}, AuthFailed("authorization response carried no access token", nil)
	}
	cred := creds.Credential{
		AccessToken: resp.AccessToken,
		ObtainedAt:  time.Now().UTC(),
		TeamID:      resp.Team.ID,
		TeamName:    resp.Team.Name,
	}
	if resp.Scope != "" {
		cred.Scopes = strings.Split(resp.Scope, ",")
	}
	return cred, nil
}

// resolveChannel maps a "#name" reference to a channel ID. Plain IDs pass
// through untouched.
func (c *Client) resolveChannel(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, "#") {
		return ref, nil
	}
	name := strings.TrimPrefix(ref, "#")
	channels, _, err := c.ListChannels(ctx, MaxListItems)
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return "", NotFound("channel %q not found", ref)
}

func toChannel(ch slack.Channel) Channel {
	return Channel{
		ID:          ch.ID,
		Name:        ch.Name,
		IsPrivate:   ch.IsPrivate,
		IsArchived:  ch.IsArchived,
		IsGeneral:   ch.IsGeneral,
		Topic:       ch.Topic.Value,
		Purpose:     ch.Purpose.Value,
		MemberCount: ch.NumMembers,
	}
}

func toUser(u slack.User) User {
	return User{
		ID:          u.ID,
		Name:        u.Name,
		RealName:    u.RealName,
		DisplayName: u.Profile.DisplayName,
		Email:       u.Profile.Email,
		IsBot:       u.IsBot,
		IsAdmin:     u.IsAdmin,
		TZ:          u.TZ,
	}
}

// clampLimit applies the default and the hard cap.
func clampLimit(limit, cap int) int {
	if limit <= 0 {
		return cap
	}
	if limit > cap {
		return cap
	}
	return limit
}

// pageSize bounds a single conversations.list page. Slack caps pages at 1000
// but recommends 200.
func pageSize(remaining int) int {
	const recommended = 200
	if remaining < recommended {
		return remaining
	}
	return recommended
}
