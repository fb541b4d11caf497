package internal

import (
	"errors"
	"fmt"
	"time"
)

// ErrReauthRequired means the stored credential is beyond repair: it is
// expired and either has no refresh token or the provider rejected it.
// Recovering requires the interactive authorization flow, so this error is
// surfaced to the operator and never retried automatically.
var ErrReauthRequired = errors.New("re-authorization required")

// AuthError is a failure in the token lifecycle for one provider.
type AuthError struct {
	Provider ProviderRole
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: auth: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewReauthRequired builds an AuthError wrapping ErrReauthRequired so that
// errors.Is(err, ErrReauthRequired) holds.
func NewReauthRequired(provider ProviderRole, cause error) *AuthError {
	if cause == nil {
		return &AuthError{Provider: provider, Err: ErrReauthRequired}
	}
	return &AuthError{Provider: provider, Err: fmt.Errorf("%w: %v", ErrReauthRequired, cause)}
}

// RateLimitError is returned when a provider throttles a call. RetryAfter is
// how long the provider asked us to wait; zero means it did not say.
type RateLimitError struct {
	Provider   ProviderRole
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// NetworkError is a transient transport or server-side failure. Callers may
// retry it with backoff.
type NetworkError struct {
	Provider ProviderRole
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a malformed configuration. It excludes the
// configuration from scheduling; it is never fatal to other configurations.
type ValidationError struct {
	ConfigID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.ConfigID, e.Reason)
}

// Retryable reports whether err is worth retrying with backoff: transient
// network failures and rate limits, but never auth or validation failures.
func Retryable(err error) bool {
	var netErr *NetworkError
	var rlErr *RateLimitError
	return errors.As(err, &netErr) || errors.As(err, &rlErr)
}

// RetryAfter extracts the provider-requested wait from a rate-limit error,
// or zero when err carries none.
func RetryAfter(err error) time.Duration {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.RetryAfter
	}
	return 0
}
