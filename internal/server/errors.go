package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/npinheiro/converse/internal/store"
)

type ErrorCode string

const (
	// CodeUnauthenticated is reserved for the admission boundary; a
	// connection that fails authentication is rejected at the HTTP
	// upgrade before a session exists, so routed events in any
	// non-admitted state report CodeInvalidState instead.
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeInvalidRequest  ErrorCode = "INVALID_REQUEST"
	CodeNotAMember      ErrorCode = "NOT_A_MEMBER"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeStorageFailure  ErrorCode = "STORAGE_FAILURE"
	CodeNotFound        ErrorCode = "NOT_FOUND"
)

// Error is reported only to the originating connection as an "error"
// event. No failure here terminates the session or the process.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func ErrInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

func ErrNotAMember() *Error {
	return &Error{Code: CodeNotAMember, Message: "not a member of this channel"}
}

func ErrInvalidState() *Error {
	return &Error{Code: CodeInvalidState, Message: "session is not admitted"}
}

func ErrStorageFailure() *Error {
	return &Error{Code: CodeStorageFailure, Message: "storage failure"}
}

func ErrNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// storageError maps a store failure onto the wire taxonomy.
func storageError(err error) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound("not found")
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeStorageFailure, Message: "storage timeout"}
	default:
		return ErrStorageFailure()
	}
}
