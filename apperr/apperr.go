// Package apperr defines the coded error type shared by Stockly's services
// and HTTP handlers.
//
// Handlers never inspect error strings: they ask for the Code of an error
// chain and map it to a status with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes.
const (
	EInternal        = "internal error"
	ENotFound        = "not found"
	EConflict        = "conflict"
	EInvalid         = "invalid"
	EUnauthorized    = "unauthorized"
	EForbidden       = "forbidden"
	EUnavailable     = "unavailable"
	ETooManyRequests = "too many requests"
)

// Error carries a code for automated handling, a message that is safe to show
// to the user, and optionally the operation and the underlying error.
//
// Fields holds per-field validation messages keyed by field or parameter
// name.
type Error struct {
	Code   string
	Msg    string
	Op     string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		fmt.Fprintf(&b, "%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error with the given code and message.
func New(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Newf is New with a format string.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err. A nil err returns nil.
func Wrap(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// Invalid returns an EInvalid error with per-field messages.
func Invalid(msg string, fields map[string]string) *Error {
	return &Error{Code: EInvalid, Msg: msg, Fields: fields}
}

// NotFound returns an ENotFound error naming the missing entity.
func NotFound(entity string) *Error {
	return &Error{Code: ENotFound, Msg: entity + " not found"}
}

// ErrorCode returns the code of the first coded error in the chain.
// Errors without a code are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code != "" {
			return e.Code
		}
		if e.Err == nil {
			break
		}
		err = e.Err
	}
	return EInternal
}

// ErrorMessage returns the user facing message of err. Internal errors get a
// generic message so driver details never reach the client.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if ErrorCode(err) == EInternal {
		return "an internal error has occurred"
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}

// ErrorFields returns the field messages of the first coded error carrying
// any.
func ErrorFields(err error) map[string]string {
	var e *Error
	for errors.As(err, &e) {
		if len(e.Fields) > 0 {
			return e.Fields
		}
		if e.Err == nil {
			return nil
		}
		err = e.Err
	}
	return nil
}

var statusCodes = map[string]int{
	EInternal:        http.StatusInternalServerError,
	ENotFound:        http.StatusNotFound,
	EConflict:        http.StatusConflict,
	EInvalid:         http.StatusBadRequest,
	EUnauthorized:    http.StatusUnauthorized,
	EForbidden:       http.StatusForbidden,
	EUnavailable:     http.StatusServiceUnavailable,
	ETooManyRequests: http.StatusTooManyRequests,
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code string) int {
	if s, ok := statusCodes[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
