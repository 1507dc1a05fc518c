// Package errors provides a lightweight structured error type (AssetError)
// for category-based classification across the export engine and CLI.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an asset pipeline error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Export engine errors
	CategoryUnknownKind    ErrorCategory = "unknown_kind"
	CategorySourceMissing  ErrorCategory = "source_missing"
	CategoryFilterContract ErrorCategory = "filter_contract"

	// Runtime and infrastructure errors
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryDaemon     ErrorCategory = "daemon"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// AssetError is a structured error with category and context
type AssetError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for AssetError
type ContextFields map[string]any

// Error implements the error interface
func (e *AssetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *AssetError) WithContext(key string, value any) *AssetError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new AssetError
func New(category ErrorCategory, severity ErrorSeverity, message string) *AssetError {
	return &AssetError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new AssetError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *AssetError {
	return &AssetError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not an AssetError
func GetCategory(err error) ErrorCategory {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}

// WrapError wraps an existing error with a new AssetError
func WrapError(err error, category ErrorCategory, message string) *AssetError {
	return &AssetError{
		Category: category,
		Severity: SeverityError,
		Message:  message,
		Cause:    err,
	}
}
