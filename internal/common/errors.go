package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced by the chat core.
type ErrorKind string

const (
	KindNotMember        ErrorKind = "NotMember"
	KindEmptyMessage     ErrorKind = "EmptyMessage"
	KindNotOwner         ErrorKind = "NotOwner"
	KindInvalidTarget    ErrorKind = "InvalidTarget"
	KindNotFound         ErrorKind = "NotFound"
	KindValidation       ErrorKind = "Validation"
	KindEditNotSupported ErrorKind = "EditNotSupported"
	KindInternal         ErrorKind = "Internal"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind so wrapped copies of a sentinel still compare equal.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func WrapError(err error, kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

var (
	ErrNotMember        = NewError(KindNotMember, "user is not a member of this conversation")
	ErrEmptyMessage     = NewError(KindEmptyMessage, "message needs a body, an attachment or a forward source")
	ErrNotOwner         = NewError(KindNotOwner, "only the sender can change this message")
	ErrInvalidTarget    = NewError(KindInvalidTarget, "target not found or not accessible")
	ErrNotFound         = NewError(KindNotFound, "resource not found")
	ErrValidation       = NewError(KindValidation, "validation failed")
	ErrEditNotSupported = NewError(KindEditNotSupported, "editing is only supported for group messages")
)

// Validationf builds a validation error with a specific message.
func Validationf(format string, args ...any) *AppError {
	return NewError(KindValidation, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of err, or KindInternal for anything unclassified.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindNotMember, KindNotOwner:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindEmptyMessage, KindInvalidTarget, KindEditNotSupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
