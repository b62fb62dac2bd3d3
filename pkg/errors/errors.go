// Package errors provides the coded errors used by gedixr.
// Every error carries a code that classifies it as fatal for a run or
// recoverable for a single file.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes for programmatic handling
type Code string

const (
	// Input errors (1xx)
	CodeNoFiles            Code = "E101"
	CodeFileOpen           Code = "E102"
	CodeInvalidProduct     Code = "E103"
	CodeInvalidRegion      Code = "E104"
	CodeInvalidAcquisition Code = "E105"
	CodeArchive            Code = "E106"

	// Per-file processing errors (2xx)
	CodeExtractFailed  Code = "E201"
	CodeFilterFailed   Code = "E202"
	CodeGeometryFailed Code = "E203"
	CodeSubsetFailed   Code = "E204"

	// Output errors (3xx)
	CodeWriteFailed   Code = "E301"
	CodePublishFailed Code = "E302"
	CodeMergeFailed   Code = "E303"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodePanic           Code = "E403"

	// Unknown
	CodeUnknown Code = "E999"
)

// Error is the base error type for all gedixr errors.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new Error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{Code: code, Message: message, Cause: err}
}

// --- Convenience constructors ---

// NoFiles reports that discovery found nothing to process.
func NoFiles(product, root string) *Error {
	return New(CodeNoFiles, "no matching files found").
		WithContext("product", product).
		WithContext("root", root)
}

// WriteFailed wraps an output write failure.
func WriteFailed(path string, err error) *Error {
	return Wrap(err, CodeWriteFailed, "failed to write output").WithContext("path", path)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string, cause error) *Error {
	e := New(CodeContextCanceled, "operation canceled").WithContext("operation", operation)
	e.Cause = cause
	return e
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var gErr *Error
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	return CodeUnknown
}

// IsFatal returns true if the error must abort a whole run.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeNoFiles, CodeInvalidProduct, CodeInvalidRegion, CodeWriteFailed,
		CodePublishFailed, CodeContextCanceled, CodeArchive:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
