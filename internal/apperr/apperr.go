package apperr

import (
	"errors"
	"net/http"
)

// Kind tags the failure variant returned by the flow services.
type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindMissingField          Kind = "missing_field"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindInvalidOrExpiredToken Kind = "invalid_or_expired_token"
	KindUnauthenticated       Kind = "unauthenticated"
	KindUserNotFound          Kind = "user_not_found"
	KindStalePassword         Kind = "stale_password"
	KindNotFound              Kind = "not_found"
	KindDeliveryFailure       Kind = "delivery_failure"
	KindForbiddenFieldUpdate  Kind = "forbidden_field_update"
	KindInternal              Kind = "internal_error"
)

// Status maps a kind onto the HTTP status the transport answers with.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindMissingField, KindInvalidOrExpiredToken:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated, KindUserNotFound, KindStalePassword, KindForbiddenFieldUpdate:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	// Details carries structured context for clients, e.g. per-field validation errors.
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func WithDetails(kind Kind, message string, details interface{}) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "Something went wrong, please try again later.", err)
}

// KindOf reports the kind of err, or KindInternal for errors that are not *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
