package errors

import (
	"errors"
	"fmt"
)

// SrchError is the structured error type for srch.
// It carries enough context for logging and for the CLI to print a hint.
type SrchError struct {
	// Code is the unique error code (e.g., "ERR_301_STORAGE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Storage, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SrchError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SrchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *SrchError) Is(target error) bool {
	if t, ok := target.(*SrchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SrchError) WithDetail(key, value string) *SrchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SrchError) WithSuggestion(suggestion string) *SrchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SrchError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SrchError {
	return &SrchError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a SrchError from an existing error.
// The error's message becomes the SrchError message.
func Wrap(code string, err error) *SrchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SrchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// SourceReadError creates an error for an unreadable document source.
func SourceReadError(message string, cause error) *SrchError {
	return New(ErrCodeSourceRead, message, cause)
}

// StorageError creates an error for a failed schema setup or transaction.
func StorageError(message string, cause error) *SrchError {
	return New(ErrCodeStorage, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SrchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SrchError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var se *SrchError
	if errors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first SrchError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var se *SrchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from the first SrchError in the chain.
func GetCategory(err error) Category {
	var se *SrchError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
