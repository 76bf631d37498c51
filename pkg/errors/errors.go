// Package errors is the storefront's typed error. Services return *Error values carrying a
// Code; the HTTP layer maps the code to a status and decides which text reaches the
// shopper.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code behaves at the HTTP edge. PublicMessage is the fallback text
// when an error carries no message of its own, and the only text shown for internal and
// dependency failures.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, false, "Please check the highlighted fields.", true},
	CodeUnauthorized:  {http.StatusUnauthorized, false, "Please log in to continue.", false},
	CodeForbidden:     {http.StatusForbidden, false, "You do not have permission to do that.", false},
	CodeNotFound:      {http.StatusNotFound, false, "We could not find what you were looking for.", false},
	CodeConflict:      {http.StatusConflict, false, "That conflicts with something that already exists.", true},
	CodeStateConflict: {http.StatusUnprocessableEntity, false, "That action is no longer possible.", true},
	CodeIdempotency:   {http.StatusConflict, false, "This request was already submitted with different data.", true},
	CodeRateLimit:     {http.StatusTooManyRequests, true, "Too many attempts. Please wait a moment and try again.", false},
	CodeInternal:      {http.StatusInternalServerError, true, "Something went wrong on our side. Please try again.", false},
	CodeDependency:    {http.StatusServiceUnavailable, true, "The store is temporarily unavailable. Please try again shortly.", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// StatusCode is the HTTP status for err; untyped errors are 500.
func StatusCode(err error) int {
	if typed := As(err); typed != nil {
		return MetadataFor(typed.code).HTTPStatus
	}
	return http.StatusInternalServerError
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause for logging; message is what the shopper may see.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error with the same code, so errors.Is(err, New(CodeNotFound, ""))
// works as a code test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err is a typed error carrying code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// PublicMessage returns the text safe to show a shopper for err.
func PublicMessage(err error) string {
	typed := As(err)
	if typed == nil {
		return MetadataFor(CodeInternal).PublicMessage
	}
	if typed.code == CodeInternal || typed.code == CodeDependency || typed.message == "" {
		return MetadataFor(typed.code).PublicMessage
	}
	return typed.message
}

// LinesDetail is the details key holding one user-facing message per failing line item.
const LinesDetail = "lines"

// UserMessages expands err into the messages shown to a form user, one per failing line when
// the error carries line details.
func UserMessages(err error) []string {
	if typed := As(err); typed != nil {
		if details, ok := typed.details.(map[string]any); ok {
			if lines, ok := details[LinesDetail].([]string); ok && len(lines) > 0 {
				return lines
			}
		}
	}
	return []string{PublicMessage(err)}
}
