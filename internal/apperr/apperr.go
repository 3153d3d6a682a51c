package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies a domain error for HTTP status mapping at the boundary
type Kind int

const (
	KindValidation Kind = iota + 1
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a domain error carrying a kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string

	// ExistingID is set on conflict errors when the conflicting record is
	// known, so callers can reuse it instead of treating this as fatal
	// (duplicate direct conversation).
	ExistingID uuid.UUID
}

func (e *Error) Error() string {
	return e.Message
}

// Validation reports malformed or empty input
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an actor not authorized for the requested mutation
func Forbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown entity id
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation; existingID may be uuid.Nil when
// the winning record is unknown
func Conflict(existingID uuid.UUID, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), ExistingID: existingID}
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// As unwraps err into a domain error, or nil if it is not one
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
