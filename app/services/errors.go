package services

import (
	"errors"
	"fmt"

	"memories/app/repositories"
)

// Kind classifies service failures for the HTTP boundary.
type Kind int

const (
	// KindNotFound covers missing or malformed ids and failed reads, updates and deletes.
	KindNotFound Kind = iota + 1
	// KindConflict covers a post that could not be created.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is returned by every service operation that fails. Message is
// safe to hand back to the client as is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnauthenticated is returned when liking a post without a caller identity.
var ErrUnauthenticated = errors.New("Unauthenticated")

// KindOf returns the Kind of err, or 0 if err is not a service error.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return 0
}

// IsNotFound reports whether err is a KindNotFound service error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func notFound(err error) *Error {
	return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
}

func conflict(err error) *Error {
	return &Error{Kind: KindConflict, Message: err.Error(), Err: err}
}

func noPostWithID(id string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("No post with id: %s", id), Err: err}
}

// noPostWithIDIfMissing returns a not found error naming id when err is a
// missing record, and nil otherwise.
func noPostWithIDIfMissing(id string, err error) *Error {
	if errors.Is(err, repositories.ErrNotFound) {
		return noPostWithID(id, err)
	}
	return nil
}
