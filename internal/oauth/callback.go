package oauth

// In this file: the HTTP surface of the handshake — the landing page with the
// "Add to Slack" link and the redirect callback endpoint.

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CallbackPath is the redirect endpoint registered with the Slack app.
const CallbackPath = "/auth/slack/callback"

// Handler returns the router serving the handshake's HTTP surface.
func (f *Flow) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", f.handleRoot)
	r.Get(CallbackPath, f.handleCallback)
	return r
}

// handleRoot serves a landing page pointing the user at Slack's consent
// screen. The authorization URL embeds the current anti-forgery token, so
// the page is only useful while the flow is awaiting its callback.
func (f *Flow) handleRoot(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	state := f.state
	nonce := f.nonce
	f.mu.Unlock()
	if state != StateAwaitingCallback || nonce == "" {
		http.Error(w, "no authorization attempt in progress", http.StatusGone)
		return
	}
	authURL, err := f.authorizationURL(nonce)
	if err != nil {
		http.Error(w, "authorization misconfigured", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, landingPage, authURL)
}

// handleCallback receives the browser redirect from Slack. The anti-forgery
// check happens before anything else; only then is the code exchanged.
func (f *Flow) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		f.lg.Error("authorization denied by Slack", "reason", errParam)
		err := fmt.Errorf("authorization denied: %s", errParam)
		f.fail(err)
		writeErrorPage(w, http.StatusBadRequest, "Authorization was denied.")
		return
	}

	code := q.Get("code")
	if code == "" {
		f.lg.Error("callback carried no authorization code")
		f.fail(fmt.Errorf("callback carried no authorization code"))
		writeErrorPage(w, http.StatusBadRequest, "No authorization code received.")
		return
	}

	if err := f.consumeNonce(q.Get("state")); err != nil {
		f.lg.Error("anti-forgery check failed", "err", err)
		f.fail(err)
		writeErrorPage(w, http.StatusBadRequest, "Invalid or already used state parameter.")
		return
	}

	cred, err := f.client.ExchangeCode(r.Context(), f.cfg.ClientID, f.cfg.ClientSecret, code, f.cfg.RedirectURI())
	if err != nil {
		f.lg.Error("code exchange failed", "err", err)
		f.fail(err)
		writeErrorPage(w, http.StatusBadGateway, "Token exchange failed.")
		return
	}

	f.store.Set(cred)
	f.complete(cred)
	f.lg.Info("authorization complete", "team", cred.TeamName, "scopes", len(cred.Scopes))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

// authorizationURL rebuilds the consent URL for the given nonce. Used by the
// landing page; Begin returns the same URL to the caller.
func (f *Flow) authorizationURL(nonce string) (string, error) {
	if err := f.cfg.ValidateOAuth(); err != nil {
		return "", err
	}
	return buildAuthorizeURL(f.cfg, f.scopes, nonce), nil
}

func writeErrorPage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, errorPage, msg)
}

const landingPage = `<!DOCTYPE html>
<html>
<head><title>Slack MCP Server</title></head>
<body>
  <h1>Slack MCP Server</h1>
  <p>Authorize this server with your Slack workspace:</p>
  <p><a href="%s">Add to Slack</a></p>
</body>
</html>
`

const successPage = `<!DOCTYPE html>
<html>
<head><title>Authorized</title></head>
<body>
  <h1>Authorization successful</h1>
  <p>You can close this window and return to your terminal.</p>
</body>
</html>
`

const errorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization error</title></head>
<body>
  <h1>Authorization error</h1>
  <p>%s</p>
</body>
</html>
`
