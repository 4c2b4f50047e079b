// Package apperr defines the coded error taxonomy shared across the
// pipeline and the HTTP boundary. Every failure that crosses a component
// boundary is wrapped in an *Error so the server can map it to a status
// and the logs carry a stable code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a failure category.
type Code string

const (
	CodeSentryAPI         Code = "SENTRY_001"
	CodeGitHubAPI         Code = "GITHUB_001"
	CodeLLMAPI            Code = "LLM_001"
	CodeLLMParse          Code = "LLM_002"
	CodeWebhookValidation Code = "WEBHOOK_001"
	CodeWebhookParse      Code = "WEBHOOK_002"
	CodeDuplicate         Code = "PROCESS_001"
	CodeNotFound          Code = "RESOURCE_001"
	CodeConfiguration     Code = "CONFIG_001"
	CodeInternal          Code = "INTERNAL_001"
)

// Error is a coded application error. Cause may be nil.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a coded error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error's code to the status reported at the system
// boundary. Uncoded errors are treated as internal.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeWebhookValidation:
		return http.StatusUnauthorized
	case CodeWebhookParse:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeDuplicate:
		return http.StatusConflict
	case CodeSentryAPI, CodeGitHubAPI, CodeLLMAPI, CodeLLMParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
