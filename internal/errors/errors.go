package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Error is the error type every handler and domain package returns. It
// carries a machine-readable Code alongside a human message, and preserves
// the original cause so an outer observability layer can log the full
// chain even though intermediate callers only see this exported type.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a leaf Error with no wrapped cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an ErrorCode and message to an existing error, preserving
// its cause chain via github.com/pkg/errors so a Sentry-style reporter at
// the edge can print a full stack-annotated trace.
func Wrap(code ErrorCode, message string, cause error) *Error {
	if cause == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, cause: pkgerrors.Wrap(cause, message)}
}

// WithDetails attaches structured context (resource ids, field names) that
// the HTTP layer will serialize under "details".
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from any error in err's chain, matching the
// standard library errors.As contract.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
