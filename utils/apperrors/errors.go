package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindDuplicateIdentity Kind = "DUPLICATE_IDENTITY"
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindInvalidAttachment Kind = "INVALID_ATTACHMENT"
	KindStorageFailure    Kind = "STORAGE_FAILURE"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrDuplicateIdentity = &Error{Kind: KindDuplicateIdentity, Message: "duplicate identity"}
	ErrValidationFailed  = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrInvalidAttachment = &Error{Kind: KindInvalidAttachment, Message: "invalid attachment"}
	ErrStorageFailure    = &Error{Kind: KindStorageFailure, Message: "storage failure"}
)

// Error is the single error type returned by the services package.
type Error struct {
	Kind    Kind
	Message string
	// Fields maps a field name to a message; set for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
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

// Is matches on Kind so errors.Is(err, ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound reports that an entity lookup did not resolve.
func NotFound(entity string, key interface{}) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %v", entity, key),
	}
}

// Duplicate reports a unique constraint violation on field.
func Duplicate(field string) *Error {
	return &Error{
		Kind:    KindDuplicateIdentity,
		Message: fmt.Sprintf("%s is already in use", field),
		Fields:  map[string]string{field: "already in use"},
	}
}

// Validation reports field constraint violations.
func Validation(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: "validation failed",
		Fields:  fields,
	}
}

// ValidationField is a shorthand for a single failing field.
func ValidationField(field, message string) *Error {
	return Validation(map[string]string{field: message})
}

// InvalidAttachment reports an attachment payload that was rejected.
func InvalidAttachment(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInvalidAttachment,
		Message: fmt.Sprintf(format, args...),
	}
}

// Storage wraps a persistence or file-system error.
func Storage(op string, err error) *Error {
	return &Error{
		Kind:    KindStorageFailure,
		Message: op,
		Err:     err,
	}
}

// KindOf returns the Kind of err, or StorageFailure for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorageFailure
}

// FieldsOf returns the validation field map carried by err, if any.
func FieldsOf(err error) map[string]string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
