// Package errors provides structured error handling for srch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Source and index file errors
//   - 3XX: Storage errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document source and index file errors.
	CategoryIO Category = "IO"
	// CategoryStorage indicates database and transaction errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Source and index file errors (200-299)
	ErrCodeSourceRead     = "ERR_201_SOURCE_READ"
	ErrCodeSourceNotFound = "ERR_202_SOURCE_NOT_FOUND"
	ErrCodeIndexNotFound  = "ERR_203_INDEX_NOT_FOUND"
	ErrCodeIndexLocked    = "ERR_204_INDEX_LOCKED"

	// Storage errors (300-399)
	ErrCodeStorage       = "ERR_301_STORAGE"
	ErrCodeStorageSchema = "ERR_302_STORAGE_SCHEMA"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStorage
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageSchema, ErrCodeIndexLocked:
		return SeverityFatal
	case ErrCodeSourceRead:
		// a single unreadable document does not poison the index
		return SeverityWarning
	}
	return SeverityError
}
