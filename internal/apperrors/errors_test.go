package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":"token expired"}`,
			check: func(t *testing.T, err error) {
				var target *AuthenticationError
				assert.ErrorAs(t, err, &target)
				assert.Equal(t, "token expired", target.Message)
			},
		},
		{
			name:   "csrf code",
			status: http.StatusForbidden,
			body:   `{"error":"forbidden","code":"CSRF_INVALID"}`,
			check: func(t *testing.T, err error) {
				var target *SecurityTokenError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:   "csrf message",
			status: http.StatusForbidden,
			body:   `{"message":"Invalid CSRF token"}`,
			check: func(t *testing.T, err error) {
				var target *SecurityTokenError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:   "plain forbidden",
			status: http.StatusForbidden,
			body:   `{"error":"not your order"}`,
			check: func(t *testing.T, err error) {
				var target *HardFailure
				assert.ErrorAs(t, err, &target)
				assert.Equal(t, "not your order", target.Message)
			},
		},
		{
			name:   "server error without body",
			status: http.StatusInternalServerError,
			body:   ``,
			check: func(t *testing.T, err error) {
				var target *HardFailure
				assert.ErrorAs(t, err, &target)
				assert.Equal(t, http.StatusInternalServerError, target.Status)
				assert.Empty(t, target.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Classify(tt.status, []byte(tt.body)))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "card number must be 16 digits", UserMessage(Invalid("cardNumber", "card number must be 16 digits")))
	assert.Contains(t, UserMessage(&SecurityTokenError{}), "refresh the page")
	assert.Contains(t, UserMessage(fmt.Errorf("wrapped: %w", &AuthenticationError{LoggedOut: true})), "sign in")
	assert.Equal(t, "Out of stock", UserMessage(&HardFailure{Status: 422, Message: "Out of stock"}))
	assert.Equal(t, genericFailureMessage, UserMessage(&HardFailure{Status: 500}))
	assert.Equal(t, genericFailureMessage, UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(&HardFailure{Status: 500}))
	assert.True(t, Retryable(&AmbiguousOutcomeError{Op: "create order", Cause: errors.New("timeout")}))
	assert.False(t, Retryable(Invalid("items", "cart is empty")))
}
