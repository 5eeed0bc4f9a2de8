// Package apperr holds the error taxonomy shared by the engines and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-sql-driver/mysql"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidInput
	Unauthorized
	Forbidden
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified error. Message is safe to show to clients; Err is not.
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

// Is matches two *Error values by kind and message, so wrapped sentinels
// still compare equal with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err, keeping it as the cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Invalid is shorthand for an InvalidInput error with a formatted message.
func Invalid(format string, args ...interface{}) *Error {
	return New(InvalidInput, fmt.Sprintf(format, args...))
}

var (
	ErrTrackNotFound     = New(NotFound, "track not found")
	ErrReleaseNotFound   = New(NotFound, "release not found")
	ErrAccountNotFound   = New(NotFound, "account not found")
	ErrInvalidCategory   = New(InvalidInput, "invalid category")
	ErrNoPreferredGenres = New(InvalidInput, "no preferred genres set")
	ErrNotArtist         = New(Forbidden, "only artists can access this resource")
	ErrInvalidPage       = New(InvalidInput, "invalid pagination parameters")
	ErrUnauthorized      = New(Unauthorized, "authentication required")
	ErrStoreTimeout      = New(Internal, "store timeout")
	ErrRequestInProgress = New(Conflict, "a request with this idempotency key is still in progress")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// KindOf returns the kind of the first *Error in err's chain. Duplicate-key
// errors from MySQL are Conflict; anything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if IsDuplicateKey(err) {
		return Conflict
	}
	return Internal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if IsDuplicateKey(err) {
		return "resource already exists"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout.Message
	}
	return "internal server error"
}

// IsDuplicateKey reports whether err is a MySQL unique-constraint violation.
func IsDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// FromStore classifies an error returned by the store layer.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Internal, ErrStoreTimeout.Message, err)
	}
	if IsDuplicateKey(err) {
		return Wrap(Conflict, "resource already exists", err)
	}
	return err
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NotFound:
		return http.StatusNotFound
	case InvalidInput:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
