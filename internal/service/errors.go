package service

import (
	"errors"
)

// Kind classifies a marketplace rule violation so the API layer can map
// it to a status code without matching on message text.
type Kind string

const (
	KindInvalidInput Kind = "INVALID_INPUT"
	KindNotFound     Kind = "NOT_FOUND"
	KindForbidden    Kind = "FORBIDDEN"
	KindInvalidState Kind = "INVALID_STATE"
	KindConflict     Kind = "CONFLICT"
)

// Error is a terminal rule violation. Every Error aborts its operation
// with no partial effect; the caller may correct the request and retry.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the Kind of err, or "" for errors that did not come
// from the rule engine.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

func invalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func notFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func forbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func invalidState(msg string) error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

func conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}
