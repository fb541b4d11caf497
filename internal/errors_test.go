package internal

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReauthRequired(t *testing.T) {
	err := NewReauthRequired(RoleFeishu, fmt.Errorf("http 401"))
	assert.True(t, errors.Is(err, ErrReauthRequired))

	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.Equal(t, RoleFeishu, authErr.Provider)

	// Wrapping must not lose the sentinel.
	wrapped := fmt.Errorf("obtaining token: %w", err)
	assert.True(t, errors.Is(wrapped, ErrReauthRequired))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&NetworkError{Provider: RoleOutlook, Err: errors.New("eof")}))
	assert.True(t, Retryable(&RateLimitError{Provider: RoleFeishu}))
	assert.True(t, Retryable(fmt.Errorf("listing: %w", &NetworkError{Err: errors.New("eof")})))
	assert.False(t, Retryable(NewReauthRequired(RoleFeishu, nil)))
	assert.False(t, Retryable(&ValidationError{ConfigID: "x", Reason: "bad"}))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("creating: %w", &RateLimitError{Provider: RoleOutlook, RetryAfter: 30 * time.Second})
	assert.Equal(t, 30*time.Second, RetryAfter(err))
	assert.Zero(t, RetryAfter(&NetworkError{Err: errors.New("eof")}))
}
