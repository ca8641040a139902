// Package apperr holds the error taxonomy shared by the services and the
// HTTP layer. Services return errors built here; handlers map the kind to
// a status code and the message to the response body.
package apperr

import "errors"

// Error kinds. Match with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// Error is a kinded error with a message that is safe to show to users.
type Error struct {
	kind    error
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.kind }

// New returns an error of the given kind carrying msg.
func New(kind error, msg string) error {
	return &Error{kind: kind, Message: msg}
}

// NotFound reports a missing entity, e.g. NotFound("Staff") -> "Staff not found".
func NotFound(entity string) error {
	return &Error{kind: ErrNotFound, Message: entity + " not found"}
}

// Invalid reports a single field validation failure.
func Invalid(field, msg string) error {
	return &Error{kind: ErrValidation, Message: msg, Fields: map[string]string{field: msg}}
}

// Validation reports several field failures at once; msg summarises them.
func Validation(msg string, fields map[string]string) error {
	return &Error{kind: ErrValidation, Message: msg, Fields: fields}
}

// Message returns the user-facing message for err. Errors outside the
// taxonomy are reported generically so internals never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrValidation} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "Something went wrong"
}

// Fields returns per-field validation messages, if any.
func Fields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsKnown reports whether err belongs to the taxonomy.
func IsKnown(err error) bool {
	for _, kind := range []error{ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrValidation} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
