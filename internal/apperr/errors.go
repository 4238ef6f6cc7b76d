// Package apperr is the error taxonomy shared by the services and the HTTP
// layer. Services return *Error values; handlers turn them into status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindStore Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindGone
	KindUnauthenticated
	KindForbidden
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindGone:
		return "GONE"
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindTooManyRequests:
		return "TOO_MANY_REQUESTS"
	default:
		return "STORE"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Messages shared by several services.
const (
	MsgCartEmpty         = "cart is empty"
	MsgCodeExpired       = "code expired"
	MsgInvalidCode       = "invalid or expired code"
	MsgTooManyAttempts   = "too many attempts, try again later"
	MsgAuthRequired      = "authentication required"
	MsgInsufficientRole  = "insufficient role for this store"
	MsgActorMismatch     = "actor does not match the authenticated user"
	MsgInternal          = "internal error"
	MsgAlreadyProcessedF = "already %s"
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Required builds the validation error for a missing field.
func Required(field string) *Error {
	return &Error{Kind: KindValidation, Message: field + " is required"}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// AlreadyProcessed reports a code that left its usable state.
func AlreadyProcessed(status string) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(MsgAlreadyProcessedF, status)}
}

func Gone(message string) *Error {
	return &Error{Kind: KindGone, Message: message}
}

func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func TooManyRequests() *Error {
	return &Error{Kind: KindTooManyRequests, Message: MsgTooManyAttempts}
}

// Store wraps a relational store failure with the operation that failed.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Unknown errors
// are store errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to its response status. Conflicts share 400 with
// validation failures; expired codes are 410.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindGone:
		return http.StatusGone
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to return to a client. Store failures never
// leak their cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStore {
		return e.Message
	}
	return MsgInternal
}
