package aierr

import (
	"errors"
	"strings"
)

// classification rules, checked in priority order against the lower-cased
// message. First match wins.
var rules = []struct {
	patterns  []string
	code      Code
	retryable bool
}{
	{[]string{"rate limit", "429", "too many requests"}, CodeRateLimitExceeded, true},
	{[]string{"auth", "unauthorized", "401", "403", "api key"}, CodeAuthenticationFailed, false},
	{[]string{"timeout", "timed out"}, CodeTimeout, true},
	{[]string{"invalid", "bad request", "400"}, CodeInvalidRequest, false},
	{[]string{"unavailable", "502", "503", "504"}, CodeProviderUnavailable, true},
	{[]string{"model not found", "404"}, CodeModelNotFound, false},
	{[]string{"quota", "insufficient"}, CodeInsufficientQuota, false},
	{[]string{"content filter"}, CodeContentFilter, false},
}

// Classify maps an arbitrary failure to a classified Error.
//
// Already-classified errors pass through unchanged, so the function is
// idempotent. Unknown failures default to retryable: transient network
// conditions are far more common than permanent ones, and a bounded retry
// of a truly permanent failure only costs a few attempts.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	code, retryable := classifyMessage(err.Error())
	return &Error{
		Code:      code,
		Message:   err.Error(),
		Retryable: retryable,
		Cause:     err,
	}
}

// IsRetryable reports whether the error is safe to retry, classifying it
// first if necessary.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

func classifyMessage(msg string) (Code, bool) {
	lower := strings.ToLower(msg)
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(lower, p) {
				return r.code, r.retryable
			}
		}
	}
	return CodeUnknown, true
}
