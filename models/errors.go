package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind distinguishes the classes of input failure a caller must be
// able to tell apart when building a message.
type ValidationKind string

const (
	KindFormat    ValidationKind = "format"
	KindDuplicate ValidationKind = "duplicate"
	KindLimit     ValidationKind = "limit"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("operation not permitted for this user")
)

// ValidationError reports malformed input. It is always raised before any write.
type ValidationError struct {
	Kind   ValidationKind
	Field  string
	Values []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Values) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Values, ", "))
}

// ConflictError reports values already owned by another record of the tenant.
type ConflictError struct {
	Field  string
	Values []string
	Msg    string
}

func (e *ConflictError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = fmt.Sprintf("%s already in use", e.Field)
	}
	if len(e.Values) == 0 {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, strings.Join(e.Values, ", "))
}

// StoreError wraps a failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewValidation is shorthand for a ValidationError.
func NewValidation(kind ValidationKind, field, msg string, values ...string) error {
	return &ValidationError{Kind: kind, Field: field, Msg: msg, Values: values}
}

// WrapStore tags err as a store failure unless it already carries a domain meaning.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	var ce *ConflictError
	var se *StoreError
	switch {
	case errors.As(err, &ve), errors.As(err, &ce), errors.As(err, &se),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// ErrorKind classifies err for transport layers.
func ErrorKind(err error) string {
	var ve *ValidationError
	var ce *ConflictError
	switch {
	case errors.As(err, &ve):
		if ve.Kind == KindLimit {
			return "limit"
		}
		if ve.Kind == KindDuplicate {
			return "duplicate"
		}
		return "validation"
	case errors.As(err, &ce):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return "store"
}
