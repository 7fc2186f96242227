package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. Handlers map kinds to HTTP
// statuses; services pick the kind closest to what actually went wrong.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindRemoteService       Kind = "remote_service"
	KindMalformedResponse   Kind = "malformed_response"
	KindNoAudioData         Kind = "no_audio_data"
	KindNoImageData         Kind = "no_image_data"
	KindInvalidAudioData    Kind = "invalid_audio_data"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindConfig              Kind = "config"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
)

type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the kind from err, unwrapping as needed.
// Errors that are not AppErrors report KindRemoteService when they come
// out of a call chain — callers that care should wrap at the boundary.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// HTTPStatus maps an error kind to the status the API surfaces it with.
// Backend/parse failures are 502 — the remote service misbehaved, not us.
func HTTPStatus(err error) int {
	kind, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRemoteService, KindMalformedResponse, KindNoAudioData,
		KindNoImageData, KindInvalidAudioData:
		return http.StatusBadGateway
	case KindInsufficientBalance:
		return http.StatusPaymentRequired
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err. AppError messages are
// written to be shown; anything else gets a generic line so internal
// details never leak into a response body.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
