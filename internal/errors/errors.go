// Package errors provides structured error types for the fieldtables engine.
// All errors include a category, code, message, and retryable flag so callers
// can tell schema construction failures from rule evaluation failures.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by engine component.
type ErrorCategory string

const (
	ErrCategorySchema   ErrorCategory = "SCHEMA"
	ErrCategoryRule     ErrorCategory = "RULE"
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryArchive  ErrorCategory = "ARCHIVE"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Schema codes
	CodeInvalidName               = "INVALID_NAME"
	CodeUnknownType               = "UNKNOWN_TYPE"
	CodeDuplicateKey              = "DUPLICATE_KEY"
	CodeUnknownChild              = "UNKNOWN_CHILD"
	CodeMultipleParents           = "MULTIPLE_PARENTS"
	CodeChildCountMismatch        = "CHILD_COUNT_MISMATCH"
	CodeArrayArity                = "ARRAY_ARITY"
	CodeNamingConventionViolation = "NAMING_CONVENTION_VIOLATION"
	CodeNotFound                  = "NOT_FOUND"
	CodeEmptyTableName            = "EMPTY_TABLE_NAME"
	CodeNoColumns                 = "NO_COLUMNS"
	CodeStorageFailure            = "STORAGE_FAILURE"

	// Rule codes
	CodeUnknownColumn       = "UNKNOWN_COLUMN"
	CodeTypeCoercionFailure = "TYPE_COERCION_FAILURE"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Archive codes
	CodeCorruptArchive = "CORRUPT_ARCHIVE"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the engine.
type Error struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// HasCode reports whether err carries the given category and code.
func HasCode(err error, category ErrorCategory, code string) bool {
	return errors.Is(err, New(category, code, ""))
}

// A storage failure always rolls its transaction back, so the whole
// operation can be attempted again against unchanged state.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySchema && code == CodeStorageFailure:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSchemaError(code, message string) *Error {
	return New(ErrCategorySchema, code, message)
}

func NewStorageFailure(message string, cause error) *Error {
	return Wrap(ErrCategorySchema, CodeStorageFailure, message, cause)
}

func NewRuleError(code, message string) *Error {
	return New(ErrCategoryRule, code, message)
}

func NewConfigError(message string) *Error {
	return New(ErrCategoryConfig, CodeInvalidConfig, message)
}

func NewArchiveError(message string, cause error) *Error {
	return Wrap(ErrCategoryArchive, CodeCorruptArchive, message, cause)
}

func NewInternalError(message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// IsSchemaError reports whether err is a schema construction or migration error.
func IsSchemaError(err error) bool {
	return GetCategory(err) == ErrCategorySchema
}

// IsRuleError reports whether err is a color rule evaluation error.
func IsRuleError(err error) bool {
	return GetCategory(err) == ErrCategoryRule
}
