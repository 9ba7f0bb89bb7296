// Package errors provides structured error types for isobench.
// All errors include a category, code, message, and fatal flag so that
// the CLI can map them to exit codes and workers can report them uniformly.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryConfig   ErrorCategory = "CONFIG"
	ErrCategoryStore    ErrorCategory = "STORE"
	ErrCategoryWorkload ErrorCategory = "WORKLOAD"
	ErrCategoryResults  ErrorCategory = "RESULTS"
	ErrCategoryInternal ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidSpec = "INVALID_SPEC"

	// Store codes
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodePrepareFailed    = "PREPARE_FAILED"
	CodeExecuteFailed    = "EXECUTE_FAILED"
	CodeFetchFailed      = "FETCH_FAILED"
	CodeCommitFailed     = "COMMIT_FAILED"
	CodeCloseFailed      = "CLOSE_FAILED"

	// Workload codes
	CodeTransactionFailed = "TRANSACTION_FAILED"

	// Results codes
	CodeReportFailed  = "REPORT_FAILED"
	CodePublishFailed = "PUBLISH_FAILED"
	CodeAlreadyExists = "ALREADY_EXISTS"

	// Internal codes
	CodeColumnLengthMismatch = "COLUMN_LENGTH_MISMATCH"
	CodeUnexpected           = "UNEXPECTED"
)

// BenchError is the structured error type used throughout the system.
type BenchError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
	Fatal    bool
}

// Error returns a formatted error string.
func (e *BenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BenchError) Is(target error) bool {
	var t *BenchError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BenchError.
func New(category ErrorCategory, code, message string) *BenchError {
	return &BenchError{
		Category: category,
		Code:     code,
		Message:  message,
		Fatal:    isFatal(category, code),
	}
}

// Wrap creates a new BenchError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BenchError {
	return &BenchError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Fatal:    isFatal(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BenchError) WithDetails(details map[string]interface{}) *BenchError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsFatal checks whether an error (or its chain) should abort the run.
// Errors outside the taxonomy are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BenchError
	if errors.As(err, &be) {
		return be.Fatal
	}
	return true
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCategory(err error) ErrorCategory {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCode(err error) string {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsConfigError reports whether err was caused by invalid input rather than a runtime failure.
func IsConfigError(err error) bool {
	return GetCategory(err) == ErrCategoryConfig
}

// isFatal: only a failed close is tolerated.
func isFatal(category ErrorCategory, code string) bool {
	return !(category == ErrCategoryStore && code == CodeCloseFailed)
}

// Convenience constructors for common errors.

func InvalidSpec(format string, args ...interface{}) *BenchError {
	return New(ErrCategoryConfig, CodeInvalidSpec, fmt.Sprintf(format, args...))
}

func ColumnLengthMismatch(column, got, want int) *BenchError {
	return New(ErrCategoryInternal, CodeColumnLengthMismatch,
		fmt.Sprintf("column %d has %d values, want %d", column, got, want)).
		WithDetails(map[string]interface{}{"column": column, "got": got, "want": want})
}

func ConnectionFailure(message string, cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodeConnectionFailed, message, cause)
}

func PrepareFailure(statement string, cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodePrepareFailed, "prepare failed", cause).
		WithDetails(map[string]interface{}{"statement": statement})
}

func ExecuteFailure(message string, cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodeExecuteFailed, message, cause)
}

func FetchFailure(message string, cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodeFetchFailed, message, cause)
}

func CommitFailure(cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodeCommitFailed, "commit failed", cause)
}

func CloseFailure(cause error) *BenchError {
	return Wrap(ErrCategoryStore, CodeCloseFailed, "close failed", cause)
}

// TransactionFailure marks a failed unit of work inside a worker.
func TransactionFailure(worker int, cause error) *BenchError {
	return Wrap(ErrCategoryWorkload, CodeTransactionFailed,
		fmt.Sprintf("worker %d transaction failed", worker), cause).
		WithDetails(map[string]interface{}{"worker": worker})
}

func NewResultsError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryResults, code, message, cause)
}

func NewInternalError(message string, cause error) *BenchError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
