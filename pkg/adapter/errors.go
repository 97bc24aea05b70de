package adapter

import (
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Remote errors carry exactly one of these tags. The orchestrator's
// retry policy is driven by the tag, never by status codes or error
// strings.
var (
	// TagUnauthorized marks a bad or expired credential. Never retried.
	TagUnauthorized = goerr.NewTag("unauthorized")
	// TagRateLimited marks a server throttle. Retried after backoff,
	// honoring any server-supplied delay hint.
	TagRateLimited = goerr.NewTag("rate_limited")
	// TagTransient marks network failures, timeouts and 5xx responses.
	// Retried with bounded exponential backoff.
	TagTransient = goerr.NewTag("transient")
	// TagMalformed marks a response that violates the API contract.
	// Never retried.
	TagMalformed = goerr.NewTag("malformed")
)

const retryAfterKey = "retry_after"

func IsUnauthorized(err error) bool { return goerr.HasTag(err, TagUnauthorized) }
func IsRateLimited(err error) bool  { return goerr.HasTag(err, TagRateLimited) }
func IsTransient(err error) bool    { return goerr.HasTag(err, TagTransient) }
func IsMalformed(err error) bool    { return goerr.HasTag(err, TagMalformed) }

// Retryable reports whether the error class is worth another attempt
func Retryable(err error) bool {
	return IsRateLimited(err) || IsTransient(err)
}

// RetryAfterHint returns the server-supplied delay attached to a
// rate-limit error, or 0 when the server gave none.
func RetryAfterHint(err error) time.Duration {
	var goErr *goerr.Error
	if !errors.As(err, &goErr) {
		return 0
	}
	if d, ok := goErr.Values()[retryAfterKey].(time.Duration); ok {
		return d
	}
	return 0
}
