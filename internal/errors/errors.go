package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes. These are the machine-readable kinds surfaced to callers of the
// command surface; the presentation layer branches on them.
const (
	ErrAuthFailed          = "AUTH_FAILED"
	ErrHostUnreachable     = "HOST_UNREACHABLE"
	ErrNotConnected        = "NOT_CONNECTED"
	ErrTransportLost       = "TRANSPORT_LOST"
	ErrSessionFailed       = "SESSION_FAILED"
	ErrCommandTimeout      = "COMMAND_TIMEOUT"
	ErrCanceled            = "CANCELED"
	ErrExec                = "EXEC"
	ErrPathNotFound        = "PATH_NOT_FOUND"
	ErrPermissionDenied    = "PERMISSION_DENIED"
	ErrAlreadyExists       = "ALREADY_EXISTS"
	ErrInvalidMode         = "INVALID_MODE"
	ErrTransferInterrupted = "TRANSFER_INTERRUPTED"
	ErrParseFailure        = "PARSE_FAILURE"
	ErrRemoteFailure       = "REMOTE_FAILURE"
	ErrConfig              = "CONFIG"
	ErrInvalidArgument     = "INVALID_ARGUMENT"
	ErrStore               = "STORE"
	ErrUnknownCommand      = "UNKNOWN_COMMAND"
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Newf is New with a formatted message and no suggestion.
func Newf(code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrRemoteFailure code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrRemoteFailure,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var myErr *Error
	if errors.As(err, &myErr) {
		return myErr.Code == code
	}
	return false
}

// Kind returns the code of the outermost structured error in err's chain,
// or "" when err carries none.
func Kind(err error) string {
	var myErr *Error
	if errors.As(err, &myErr) {
		return myErr.Code
	}
	return ""
}

// Detail returns the one-line message of a structured error, falling back to
// err.Error() for plain errors.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var myErr *Error
	if errors.As(err, &myErr) {
		if myErr.Cause != nil {
			return myErr.Message + ": " + firstLine(myErr.Cause)
		}
		return myErr.Message
	}
	return err.Error()
}

// SuggestionOf returns the suggestion of the outermost structured error.
func SuggestionOf(err error) string {
	var myErr *Error
	if errors.As(err, &myErr) {
		return myErr.Suggestion
	}
	return ""
}

// Retryable reports whether a failure with this code is cured by reconnecting.
func Retryable(code string) bool {
	switch code {
	case ErrTransportLost, ErrNotConnected, ErrSessionFailed:
		return true
	}
	return false
}

func firstLine(err error) string {
	var myErr *Error
	if errors.As(err, &myErr) {
		return myErr.Message
	}
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Is, As and Join re-export the standard library helpers so callers importing
// this package under the name "errors" keep access to them.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)
