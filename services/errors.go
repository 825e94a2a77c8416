package services

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure of a core operation.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidState   Kind = "invalid_state"
	KindValidation     Kind = "validation_error"
	KindConflict       Kind = "conflict"
	KindMismatch       Kind = "reconciliation_mismatch"
	KindPartialFailure Kind = "partial_failure"
)

// Error is the failure returned by every core operation for expected failure modes.
// Anything that is not an *Error is an unexpected fault (storage unavailable, ...).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, message string, fields map[string]interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Fields: fields}
}

func notFound(code, message string, fields map[string]interface{}) *Error {
	return newError(KindNotFound, code, message, fields)
}

func invalidState(code, message string, fields map[string]interface{}) *Error {
	return newError(KindInvalidState, code, message, fields)
}

func validation(code, message string, fields map[string]interface{}) *Error {
	return newError(KindValidation, code, message, fields)
}

func conflict(code, message string, fields map[string]interface{}) *Error {
	return newError(KindConflict, code, message, fields)
}

// KindOf returns the kind of err, or "" when err is a fault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the operation-specific code of err, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
