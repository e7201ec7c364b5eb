// Package apperrors holds the failure taxonomy shared by the checkout,
// payment and order administration flows.
package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError blocks a submission before anything is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// SecurityTokenError means the anti-forgery token was missing or rejected
// even after a refresh-and-replay.
type SecurityTokenError struct {
	Message string
}

func (e *SecurityTokenError) Error() string {
	if e.Message == "" {
		return "security token rejected"
	}
	return "security token rejected: " + e.Message
}

// AuthenticationError is a 401-class failure that survived the session
// guard's refresh and replay.
type AuthenticationError struct {
	Message   string
	LoggedOut bool
	Throttled bool
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.LoggedOut:
		return "authentication failed: session ended"
	case e.Throttled:
		return "authentication failed: refresh throttled"
	case e.Message != "":
		return "authentication failed: " + e.Message
	default:
		return "authentication failed"
	}
}

// AmbiguousOutcomeError means the call may have succeeded server-side but the
// client cannot prove it.
type AmbiguousOutcomeError struct {
	Op    string
	Cause error
}

func (e *AmbiguousOutcomeError) Error() string {
	return fmt.Sprintf("%s: outcome unknown: %v", e.Op, e.Cause)
}

func (e *AmbiguousOutcomeError) Unwrap() error { return e.Cause }

// HardFailure is a definite rejection.
type HardFailure struct {
	Status  int
	Message string
}

func (e *HardFailure) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

const genericFailureMessage = "Something went wrong while processing your order. Please try again."

// UserMessage renders the text shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validation *ValidationError
	var security *SecurityTokenError
	var auth *AuthenticationError
	var hard *HardFailure
	var ambiguous *AmbiguousOutcomeError

	switch {
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &security):
		return "Your security session has expired. Please refresh the page and try again."
	case errors.As(err, &auth):
		return "Your session has expired. Please sign in again."
	case errors.As(err, &hard):
		if hard.Message != "" {
			return hard.Message
		}
		return genericFailureMessage
	case errors.As(err, &ambiguous):
		return "We could not confirm your request. Please check your orders before trying again."
	default:
		return genericFailureMessage
	}
}

// Retryable reports whether the user should be offered another attempt.
func Retryable(err error) bool {
	var hard *HardFailure
	var ambiguous *AmbiguousOutcomeError
	return errors.As(err, &hard) || errors.As(err, &ambiguous)
}

// errorBody is the error payload shape the backend uses.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ServerMessage extracts the human readable message from an error payload.
func ServerMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	if eb.Message != "" {
		return eb.Message
	}
	return eb.Error
}

// IsCSRFRejection reports whether a response is the backend refusing the
// anti-forgery token.
func IsCSRFRejection(status int, body []byte) bool {
	if status != http.StatusForbidden && status != 419 {
		return false
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return status == 419
	}
	if strings.EqualFold(eb.Code, "CSRF_INVALID") || strings.EqualFold(eb.Code, "EBADCSRFTOKEN") {
		return true
	}
	text := strings.ToLower(eb.Error + " " + eb.Message)
	return strings.Contains(text, "csrf") || strings.Contains(text, "xsrf") || status == 419
}

// Classify maps a completed non-2xx response to the taxonomy.
func Classify(status int, body []byte) error {
	message := ServerMessage(body)
	switch {
	case status == http.StatusUnauthorized:
		return &AuthenticationError{Message: message}
	case IsCSRFRejection(status, body):
		return &SecurityTokenError{Message: message}
	default:
		return &HardFailure{Status: status, Message: message}
	}
}
