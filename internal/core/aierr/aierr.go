// Package aierr defines the classified error taxonomy for AI provider calls.
//
// Every failure that crosses a provider boundary is mapped to a typed Error
// carrying an error code and a retryability flag. Retry and failover
// decisions downstream are driven by that flag, never by re-parsing
// message text.
package aierr

import "fmt"

// Code identifies a class of provider failure.
type Code string

const (
	CodeProviderUnavailable  Code = "PROVIDER_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	CodeInvalidRequest       Code = "INVALID_REQUEST"
	CodeTimeout              Code = "TIMEOUT"
	CodeModelNotFound        Code = "MODEL_NOT_FOUND"
	CodeInsufficientQuota    Code = "INSUFFICIENT_QUOTA"
	CodeContentFilter        Code = "CONTENT_FILTER"
	CodeUnknown              Code = "UNKNOWN"
)

// Error is a classified provider failure. Immutable once constructed.
type Error struct {
	Code      Code
	Message   string
	Retryable bool
	Provider  string // optional context
	Model     string // optional context
	Cause     error  // wrapped original error, diagnostics only
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error with an explicit code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: retryableByDefault(code)}
}

// Unavailable builds a PROVIDER_UNAVAILABLE error for the given provider.
func Unavailable(provider, message string) *Error {
	return &Error{
		Code:      CodeProviderUnavailable,
		Message:   message,
		Retryable: true,
		Provider:  provider,
	}
}

// WithContext returns a copy of the error annotated with provider and
// model context. The receiver is never mutated.
func (e *Error) WithContext(provider, model string) *Error {
	clone := *e
	clone.Provider = provider
	clone.Model = model
	return &clone
}

func retryableByDefault(code Code) bool {
	switch code {
	case CodeProviderUnavailable, CodeRateLimitExceeded, CodeTimeout, CodeUnknown:
		return true
	default:
		return false
	}
}
