// Package oauth drives the delegated-authorization handshake with Slack.
//
// The handshake is modelled as an explicit state machine so that waiting for
// the browser redirect and timing out are first-class transitions:
//
//	Idle → AwaitingCallback → Exchanging → Complete
//	                        ↘ Failed
//
// The anti-forgery state token is single-use: it is consumed atomically by
// the first callback that presents it, and any replay fails regardless of
// the first attempt's outcome.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/aaronpaddy/slack-mcp-server/internal/config"
	"github.com/aaronpaddy/slack-mcp-server/internal/creds"
	"github.com/aaronpaddy/slack-mcp-server/internal/slackclient"
)

// authorizeURL is Slack's OAuth 2.0 authorization endpoint.
const authorizeURL = "https://slack.com/oauth/v2/authorize"

// DefaultScopes are the bot scopes requested for the workspace. They cover
// every tool and resource this server exposes.
var DefaultScopes = []string{
	"channels:read",
	"groups:read",
	"channels:history",
	"groups:history",
	"chat:write",
	"users:read",
	"team:read",
}

// DefaultTimeout bounds how long the flow waits for the browser redirect.
const DefaultTimeout = 5 * time.Minute

// State is a handshake phase.
type State int

const (
	StateIdle State = iota
	StateAwaitingCallback
	StateExchanging
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateExchanging:
		return "exchanging"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CodeExchanger trades an authorization code for a credential. Implemented by
// the Slack API client.
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (creds.Credential, error)
}

// result is what the handshake resolves to.
type result struct {
	cred creds.Credential
	err  error
}

// Flow is a single-attempt delegated-authorization handshake. A Flow is not
// reusable; create a new one per attempt.
type Flow struct {
	cfg     *config.Config
	store   *creds.Store
	client  CodeExchanger
	lg      *slog.Logger
	timeout time.Duration
	scopes  []string

	mu      sync.Mutex
	state   State
	nonce   string // anti-forgery token; empty once consumed
	started time.Time

	resultCh chan result
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithTimeout overrides the callback wait window.
func WithTimeout(d time.Duration) FlowOption {
	return func(f *Flow) { f.timeout = d }
}

// WithScopes overrides the requested scopes.
func WithScopes(scopes []string) FlowOption {
	return func(f *Flow) { f.scopes = scopes }
}

// WithLogger sets the flow logger.
func WithLogger(lg *slog.Logger) FlowOption {
	return func(f *Flow) { f.lg = lg }
}

// NewFlow creates a handshake attempt that will write its credential into
// store on success.
func NewFlow(cfg *config.Config, store *creds.Store, client CodeExchanger, opts ...FlowOption) *Flow {
	f := &Flow{
		cfg:      cfg,
		store:    store,
		client:   client,
		lg:       slog.Default(),
		timeout:  DefaultTimeout,
		scopes:   DefaultScopes,
		state:    StateIdle,
		resultCh: make(chan result, 1),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// CurrentState returns the handshake phase.
func (f *Flow) CurrentState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Begin transitions Idle → AwaitingCallback: it generates a fresh
// anti-forgery token and returns the authorization URL to present to the
// user.
func (f *Flow) Begin() (string, error) {
	if err := f.cfg.ValidateOAuth(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateIdle {
		return "", fmt.Errorf("authorization flow already started (state %s)", f.state)
	}

	nonce, err := newNonce()
	if err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	f.nonce = nonce
	f.state = StateAwaitingCallback
	f.started = time.Now()

	return buildAuthorizeURL(f.cfg, f.scopes, nonce), nil
}

// buildAuthorizeURL constructs Slack's consent URL for one handshake attempt.
func buildAuthorizeURL(cfg *config.Config, scopes []string, nonce string) string {
	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("scope", strings.Join(scopes, ","))
	q.Set("redirect_uri", cfg.RedirectURI())
	q.Set("state", nonce)
	q.Set("response_type", "code")
	return authorizeURL + "?" + q.Encode()
}

// consumeNonce is the single compare-and-clear step of the handshake. The
// first presentation of the correct token transitions to Exchanging and
// clears it; every other presentation fails.
func (f *Flow) consumeNonce(got string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateAwaitingCallback:
		// fall through to the token check
	case StateExchanging, StateComplete:
		return slackclient.AuthFailed("state already consumed", nil)
	case StateFailed:
		return slackclient.AuthFailed("authorization attempt is no longer active", nil)
	default:
		return slackclient.AuthFailed("no authorization attempt in progress", nil)
	}

	if f.nonce == "" || subtle.ConstantTimeCompare([]byte(got), []byte(f.nonce)) != 1 {
		f.nonce = ""
		f.state = StateFailed
		return slackclient.AuthFailed("state parameter mismatch", nil)
	}
	f.nonce = ""
	f.state = StateExchanging
	return nil
}

// fail records a terminal failure and resolves the handshake, if it has not
// resolved already. A completed handshake stays completed: a rejected replay
// never disturbs the credential written by the first exchange.
func (f *Flow) fail(err error) {
	f.mu.Lock()
	if f.state == StateComplete {
		f.mu.Unlock()
		return
	}
	f.state = StateFailed
	f.nonce = ""
	f.mu.Unlock()
	select {
	case f.resultCh <- result{err: err}:
	default:
	}
}

// complete records the terminal success and resolves the handshake.
func (f *Flow) complete(cred creds.Credential) {
	f.mu.Lock()
	f.state = StateComplete
	f.mu.Unlock()
	select {
	case f.resultCh <- result{cred: cred}:
	default:
	}
}

// Run executes the whole handshake: it starts the callback listener, opens
// the browser, and waits for the redirect or the timeout. On success the
// credential has already been written into the store.
func (f *Flow) Run(ctx context.Context) (creds.Credential, error) {
	_, err := f.Begin()
	if err != nil {
		return creds.Credential{}, err
	}

	srv := &http.Server{
		Addr:         f.cfg.Addr(),
		Handler:      f.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	// The listener is released whichever way the handshake ends; a late
	// callback then finds no endpoint.
	defer srv.Shutdown(context.Background()) //nolint:errcheck

	f.lg.Info("authorization started", "url", localRootURL(f.cfg))
	if err := browser.OpenURL(localRootURL(f.cfg)); err != nil {
		f.lg.Warn("could not open browser; visit the URL manually", "err", err)
	}

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()
	select {
	case res := <-f.resultCh:
		return res.cred, res.err
	case err := <-serveErr:
		f.fail(err)
		return creds.Credential{}, fmt.Errorf("callback listener: %w", err)
	case <-timer.C:
		err := slackclient.AuthFailed("authorization timed out waiting for the callback", nil)
		f.fail(err)
		return creds.Credential{}, err
	case <-ctx.Done():
		f.fail(ctx.Err())
		return creds.Credential{}, ctx.Err()
	}
}

func localRootURL(cfg *config.Config) string {
	return fmt.Sprintf("http://%s/", cfg.Addr())
}

func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
