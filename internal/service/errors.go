package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies domain failures so handlers can map them to status codes.
type ErrorKind string

// Domain error kinds.
const (
	KindAlreadyExists       ErrorKind = "already_exists"
	KindMissingRoom         ErrorKind = "missing_room"
	KindInvalidSpec         ErrorKind = "invalid_spec"
	KindInvalidSeat         ErrorKind = "invalid_seat"
	KindDuplicateSeat       ErrorKind = "duplicate_seat"
	KindUnknownSeat         ErrorKind = "unknown_seat"
	KindUnknownStudent      ErrorKind = "unknown_student"
	KindStudentNotOnRoster  ErrorKind = "student_not_on_roster"
	KindSeatConflict        ErrorKind = "seat_conflict"
	KindAlreadyCheckedIn    ErrorKind = "already_checked_in"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindVerifierUnavailable ErrorKind = "verifier_unavailable"
	KindNotFound            ErrorKind = "not_found"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindInvalidPhoto        ErrorKind = "invalid_photo"
)

// Sentinels for errors.Is comparisons. Any *Error of the same kind matches.
var (
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists, Message: "resource already exists"}
	ErrMissingRoom         = &Error{Kind: KindMissingRoom, Message: "exam has no room assigned"}
	ErrInvalidSpec         = &Error{Kind: KindInvalidSpec, Message: "invalid seating specification"}
	ErrInvalidSeat         = &Error{Kind: KindInvalidSeat, Message: "invalid seat code"}
	ErrDuplicateSeat       = &Error{Kind: KindDuplicateSeat, Message: "duplicate seat code"}
	ErrUnknownSeat         = &Error{Kind: KindUnknownSeat, Message: "seat not found in seating plan"}
	ErrUnknownStudent      = &Error{Kind: KindUnknownStudent, Message: "student not found"}
	ErrStudentNotOnRoster  = &Error{Kind: KindStudentNotOnRoster, Message: "student not registered for exam"}
	ErrSeatConflict        = &Error{Kind: KindSeatConflict, Message: "seat already assigned"}
	ErrAlreadyCheckedIn    = &Error{Kind: KindAlreadyCheckedIn, Message: "student already checked in"}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation, Message: "constraint violation"}
	ErrVerifierUnavailable = &Error{Kind: KindVerifierUnavailable, Message: "face verifier unavailable"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrInvalidPhoto        = &Error{Kind: KindInvalidPhoto, Message: "invalid photo"}
)

// FieldError points at one offending input. Index is -1 for request level fields.
type FieldError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error is the domain error returned by every service in this package.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, field := range e.Fields {
			if field.Index >= 0 {
				parts = append(parts, fmt.Sprintf("[%d].%s: %s", field.Index, field.Field, field.Message))
			} else {
				parts = append(parts, fmt.Sprintf("%s: %s", field.Field, field.Message))
			}
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind ErrorKind, message string, fields ...FieldError) *Error {
	return &Error{Kind: kind, Message: message, Fields: fields}
}

func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func notFound(entity string, id uint) *Error {
	return newError(KindNotFound, fmt.Sprintf("%s %d not found", entity, id))
}

// KindOf returns the kind of a domain error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}
