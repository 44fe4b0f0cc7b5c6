package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindPayloadTooLarge
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}

// Status is the HTTP status a kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error returned by every service in this module.
// Code refines Kind (e.g. INACTIVE is a validation error); empty means Kind.String().
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind, and on Code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.code()
}

func (e *Error) code() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

const CodeInactive = "INACTIVE"

var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrInactive        = &Error{Kind: KindValidation, Code: CodeInactive}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrRateLimited     = &Error{Kind: KindRateLimited}
	ErrInternal        = &Error{Kind: KindInternal}
)

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(resource string, id any) error {
	msg := resource + " not found"
	details := map[string]any{"resource": resource}
	if id != nil && fmt.Sprint(id) != "" {
		msg = fmt.Sprintf("%s with id '%v' not found", resource, id)
		details["id"] = id
	}
	return &Error{Kind: KindNotFound, Message: msg, Details: details}
}

func Conflict(msg string, details map[string]any) error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

func Validation(msg string, details map[string]any) error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func Inactive(resource string, id any) error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeInactive,
		Message: fmt.Sprintf("%s '%v' is inactive", resource, id),
		Details: map[string]any{"resource": resource, "id": id},
	}
}

func PayloadTooLarge(field string, size, max int) error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Message: fmt.Sprintf("%s is too large (%d bytes, max %d)", field, size, max),
		Details: map[string]any{"field": field, "size": size, "max": max},
	}
}

func RateLimited(retryAfterSeconds int) error {
	return &Error{
		Kind:    KindRateLimited,
		Message: "rate limit exceeded",
		Details: map[string]any{"retry_after": strconv.Itoa(retryAfterSeconds)},
	}
}

// Internal wraps a storage or infrastructure failure.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// From returns the structured form of err; unknown errors become internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Kind.Status()
}

func Code(err error) string {
	if err == nil {
		return ""
	}
	return From(err).code()
}
