package profile

import (
	"errors"
	"fmt"
)

var (
	ErrProfileNotFound   = errors.New("profile not found")
	ErrSelfReference     = errors.New("profile cannot reference itself")
	ErrInconsistentState = errors.New("relationship pair left inconsistent")
	ErrAlreadyMarried    = errors.New("profile already married")
	ErrProfileExists     = errors.New("profile already exists for user")
	ErrInvalidRole       = errors.New("invalid parent role")
	ErrInvalidInput      = errors.New("invalid profile input")
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindSelfReference     ErrorKind = "self_reference"
	KindInconsistentState ErrorKind = "inconsistent_state"
	KindAlreadyMarried    ErrorKind = "already_married"
	KindConflict          ErrorKind = "conflict"
	KindInvalid           ErrorKind = "invalid"
	KindInternal          ErrorKind = "internal"
)

func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProfileNotFound):
		return KindNotFound
	case errors.Is(err, ErrSelfReference):
		return KindSelfReference
	case errors.Is(err, ErrInconsistentState):
		return KindInconsistentState
	case errors.Is(err, ErrAlreadyMarried):
		return KindAlreadyMarried
	case errors.Is(err, ErrProfileExists):
		return KindConflict
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidInput):
		return KindInvalid
	default:
		return KindInternal
	}
}

// FieldError ties a failure to the edit-form field that caused it.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// FieldOf returns the form field attached to err, if any.
func FieldOf(err error) (string, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field, true
	}
	return "", false
}
