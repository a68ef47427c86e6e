package slackclient

// In this file: the retry wrapper around individual Slack API calls. The wait
// after a rate-limit signal is dictated by the platform's Retry-After, not by
// a fixed schedule; transient network failures get exactly one retry with a
// short fixed delay.

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

const (
	// defMaxAttempts bounds the number of calls made while the platform
	// keeps signalling rate limits.
	defMaxAttempts = 3

	// netRetryDelay is the fixed pause before the single network-error retry.
	netRetryDelay = 2 * time.Second
)

// Slack applies per-method rate limit tiers; tier 3 (50/min) covers the
// conversation and user methods this server calls.
// https://api.slack.com/docs/rate-limits
const tier3PerMinute = 50

// NewLimiter returns the client-side throttle applied in front of every
// attempt.
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/tier3PerMinute), 5)
}

// withRetry runs fn, honouring the limiter before every attempt. On a
// rate-limit signal it sleeps the advertised duration and retries up to
// maxAttempts calls, then surfaces RateLimited. On a transient network
// failure it retries once after netRetryDelay, then surfaces Unavailable.
// All other failures are surfaced immediately.
func withRetry(ctx context.Context, lim *rate.Limiter, maxAttempts int, lg *slog.Logger, op string, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defMaxAttempts
	}
	netRetried := false
	for attempt := 1; ; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}

		cbErr := fn()
		if cbErr == nil {
			return nil
		}

		var rle *slack.RateLimitedError
		switch {
		case errors.As(cbErr, &rle):
			if attempt >= maxAttempts {
				lg.WarnContext(ctx, "rate limit retry budget exhausted", "op", op, "attempts", attempt, "retry_after", rle.RetryAfter)
				return RateLimited(rle.RetryAfter)
			}
			lg.DebugContext(ctx, "rate limited, honouring advised wait", "op", op, "attempt", attempt, "retry_after", rle.RetryAfter)
			if err := sleepCtx(ctx, rle.RetryAfter); err != nil {
				return err
			}
			continue

		case isTransient(cbErr):
			if netRetried {
				lg.WarnContext(ctx, "network failure persisted after retry", "op", op)
				return Unavailable(cbErr)
			}
			netRetried = true
			lg.DebugContext(ctx, "transient network failure, retrying once", "op", op)
			if err := sleepCtx(ctx, netRetryDelay); err != nil {
				return err
			}
			continue
		}

		return classify(op, cbErr)
	}
}

// isTransient reports whether err looks like a network-level failure worth a
// single retry: timeouts, refused connections, dropped reads and writes, and
// 5xx responses from the platform edge.
func isTransient(err error) bool {
	var sce slack.StatusCodeError
	if errors.As(err, &sce) {
		return sce.Code == http.StatusRequestTimeout ||
			(sce.Code >= http.StatusInternalServerError && sce.Code <= 599 && sce.Code != http.StatusNotImplemented)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
