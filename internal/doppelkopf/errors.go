package doppelkopf

import "errors"

// ErrorKind classifies a rejected request so handlers can route it.
// All kinds are local, recoverable, per-request failures: they are
// reported to the originating connection only and never mutate state.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindState
	KindAuthorization
	KindNotFound
	KindCapacity
)

type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func NewValidationError(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func NewStateError(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}

func NewAuthorizationError(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func NewNotFoundError(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func NewCapacityError(code, message string) *Error {
	return &Error{Kind: KindCapacity, Code: code, Message: message}
}

// KindOf reports the kind of a rejection, or false for unexpected
// internal faults.
func KindOf(err error) (ErrorKind, bool) {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Kind, true
	}
	return 0, false
}
