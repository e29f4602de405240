// Package errors provides the structured error taxonomy shared by the document, layout and
// rendering layers.
//
// Every failure carries a machine-readable Code so callers can tell a parse failure from a layout
// precondition violation without matching on message text:
//
//	_, err := layout.NewDocument(data, layout.DocumentOptions{})
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // no backend understood the data
//	}
//
// Is walks the whole wrap chain, so an error wrapped with a second code still reports the first.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input errors
	ErrCodeInvalidArgument Code = "INVALID_ARGUMENT" // malformed constructor input
	ErrCodeParse           Code = "PARSE_ERROR"      // backend rejected or failed to parse data
	ErrCodeInvalidIR       Code = "INVALID_IR"       // score model violates a structural rule

	// Layout errors
	ErrCodeMethodNotImplemented Code = "METHOD_NOT_IMPLEMENTED" // layout policy missing
	ErrCodeFormatting           Code = "FORMATTING_ERROR"       // geometry requested out of order

	// Ambient errors
	ErrCodeRender Code = "RENDER_ERROR"
	ErrCodeConfig Code = "INVALID_CONFIG"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain carries the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
