package chatads

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes returned in normalized results. Upstream-defined codes (auth,
// quota, rate limiting) pass through verbatim next to these local ones.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeMessageTooShort     = "MESSAGE_TOO_SHORT"
	CodeMessageTooManyWords = "MESSAGE_TOO_MANY_WORDS"
	CodeMessageTooLong      = "MESSAGE_TOO_LONG"
	CodeConfigurationError  = "CONFIGURATION_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeUpstreamError       = "UPSTREAM_ERROR"
)

// RedactedErrorText replaces any error message that could carry credential
// material. The whole message is swapped, never partially masked.
const RedactedErrorText = "Request error (details redacted for security)"

// MissingCredentialText is the guidance returned when no API key can be resolved.
const MissingCredentialText = "ChatAds API key is not configured. Set the " +
	"CHATADS_API_KEY environment variable or pass an explicit API key."

// APIError is the typed failure crossing the client boundary. The orchestrator
// converts it into an error result; it never reaches the caller as a raw error.
type APIError struct {
	// Code is one of the Code* constants or an upstream-defined code.
	Code string

	// Message is the sanitized, user-visible description.
	Message string

	// StatusCode is the associated HTTP status (502 for locally raised failures).
	StatusCode int

	// Attempts is how many network attempts were made before giving up.
	Attempts int

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// NewAPIError creates a locally raised upstream-class error.
func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: 502}
}

// newValidationError carries no HTTP status: these failures are resolved
// locally before any exchange happens, so the result's status_code stays unset.
func newValidationError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func newUnavailableError(message string, attempts int, cause error) *APIError {
	return &APIError{
		Code:       CodeUpstreamUnavailable,
		Message:    message,
		StatusCode: 502,
		Attempts:   attempts,
		cause:      cause,
	}
}

// AsAPIError unwraps err into an *APIError when possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// SanitizeErrorText scans text for the literal credential and for
// credential-carrying header names. Any hit replaces the entire message with
// RedactedErrorText; the message is never partially masked.
func SanitizeErrorText(text, credential string) string {
	if text == "" {
		return text
	}
	if credential != "" && strings.Contains(text, credential) {
		return RedactedErrorText
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "x-api-key") || strings.Contains(lower, "authorization") {
		return RedactedErrorText
	}
	return text
}
