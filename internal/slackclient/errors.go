package slackclient

// In this file: the typed failure taxonomy surfaced by the API client. Every
// error that crosses the client boundary is an *Error so the MCP layer can
// translate it into a stable protocol error code. Token values never appear
// in error messages.

import (
	"errors"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// Code identifies a failure class. Codes are part of the protocol surface
// and must stay stable.
type Code string

const (
	CodeAuthenticationRequired Code = "authentication_required"
	CodeAuthorizationFailed    Code = "authorization_failed"
	CodeRateLimited            Code = "rate_limited"
	CodeUnavailable            Code = "remote_unavailable"
	CodeInvalidArguments       Code = "invalid_arguments"
	CodeNotFound               Code = "not_found"
	CodeProtocolMismatch       Code = "protocol_mismatch"

	// CodeInternal is the fallback for failures outside the taxonomy. It is
	// only ever produced at the dispatch boundary.
	CodeInternal Code = "internal_error"
)

// Error is a typed failure returned by the API client.
type Error struct {
	Code Code
	Msg  string
	// RetryAfter carries the platform-advised wait for rate_limited failures.
	RetryAfter time.Duration
	// Param names the offending parameter for invalid_arguments failures.
	Param string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf extracts the failure code from err, or CodeInternal if err carries
// no typed failure.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AuthRequired reports that no live credential is present.
func AuthRequired() *Error {
	return &Error{Code: CodeAuthenticationRequired, Msg: "no Slack credential is present; run the authorize flow first"}
}

// AuthFailed reports a failed delegated-authorization handshake step.
func AuthFailed(msg string, err error) *Error {
	return &Error{Code: CodeAuthorizationFailed, Msg: msg, Err: err}
}

// RateLimited reports an exhausted retry budget, carrying the last
// platform-advised wait.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Msg:        fmt.Sprintf("Slack rate limit not lifted within the retry budget (advised wait %s)", retryAfter),
		RetryAfter: retryAfter,
	}
}

// Unavailable reports a network-level failure that survived the single retry.
func Unavailable(err error) *Error {
	return &Error{Code: CodeUnavailable, Msg: "Slack API unreachable", Err: err}
}

// InvalidArgument reports a parameter that failed validation, naming it.
func InvalidArgument(param, msg string) *Error {
	return &Error{Code: CodeInvalidArguments, Msg: fmt.Sprintf("parameter %q: %s", param, msg), Param: param}
}

// NotFound reports a missing remote entity or route.
func NotFound(format string, a ...any) *Error {
	return &Error{Code: CodeNotFound, Msg: fmt.Sprintf(format, a...)}
}

// Mismatch reports a response shape the client could not interpret.
func Mismatch(context string, err error) *Error {
	return &Error{Code: CodeProtocolMismatch, Msg: context, Err: err}
}

// notFoundAPIErrors are Slack API error strings that mean the addressed
// entity does not exist or is out of reach.
var notFoundAPIErrors = map[string]bool{
	"channel_not_found": true,
	"user_not_found":    true,
	"thread_not_found":  true,
	"not_in_channel":    true,
	"is_archived":       true,
}

// authAPIErrors are Slack API error strings that mean the current token is
// no longer usable. Token revocation is detected lazily, at call time.
var authAPIErrors = map[string]bool{
	"not_authed":       true,
	"invalid_auth":     true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
}

// classify maps an error returned by the Slack SDK onto the taxonomy.
// Rate-limit and transient network errors are handled by the retry loop
// before classify is reached.
func classify(op string, err error) error {
	var ser slack.SlackErrorResponse
	if errors.As(err, &ser) {
		switch {
		case notFoundAPIErrors[ser.Err]:
			return &Error{Code: CodeNotFound, Msg: fmt.Sprintf("%s: %s", op, ser.Err), Err: err}
		case authAPIErrors[ser.Err]:
			return &Error{Code: CodeAuthenticationRequired, Msg: fmt.Sprintf("%s: %s", op, ser.Err), Err: err}
		default:
			// A well-formed API rejection we have no dedicated bucket for.
			return &Error{Code: CodeInvalidArguments, Msg: fmt.Sprintf("%s: Slack rejected the request: %s", op, ser.Err), Err: err}
		}
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	// Anything else is a shape we could not interpret.
	return Mismatch(fmt.Sprintf("%s: unexpected Slack response", op), err)
}
