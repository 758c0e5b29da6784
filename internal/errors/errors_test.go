package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSrchError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk I/O error")

	// When: wrapping with SrchError
	srchErr := StorageError("add document failed", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, srchErr)
	assert.Equal(t, originalErr, errors.Unwrap(srchErr))
	assert.True(t, errors.Is(srchErr, originalErr))
}

func TestSrchError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *SrchError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeConfigInvalid, "unknown backend", nil),
			expected: "[ERR_102_CONFIG_INVALID] unknown backend",
		},
		{
			name:     "with cause",
			err:      New(ErrCodeStorage, "commit failed", errors.New("database is locked")),
			expected: "[ERR_301_STORAGE] commit failed: database is locked",
		},
		{
			name:     "wrapped message not repeated",
			err:      Wrap(ErrCodeSourceRead, errors.New("open a.txt: no such file")),
			expected: "[ERR_201_SOURCE_READ] open a.txt: no such file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSrchError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeStorage, "insert failed", nil)
	err2 := New(ErrCodeStorage, "select failed", nil)
	err3 := New(ErrCodeSourceRead, "read failed", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeSourceRead, CategoryIO, SeverityWarning},
		{ErrCodeIndexLocked, CategoryIO, SeverityFatal},
		{ErrCodeStorage, CategoryStorage, SeverityError},
		{ErrCodeStorageSchema, CategoryStorage, SeverityFatal},
		{ErrCodeInvalidInput, CategoryValidation, SeverityError},
		{ErrCodeInternal, CategoryInternal, SeverityError},
		{"bogus", CategoryInternal, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	// Given: a SrchError wrapped by fmt.Errorf
	inner := New(ErrCodeIndexLocked, "index is locked", nil)
	outer := fmt.Errorf("open index: %w", inner)

	// Then: helpers find it in the chain
	assert.Equal(t, ErrCodeIndexLocked, GetCode(outer))
	assert.Equal(t, CategoryIO, GetCategory(outer))
	assert.True(t, IsFatal(outer))

	assert.Empty(t, GetCode(errors.New("plain")))
	assert.False(t, IsFatal(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeStorage, nil))
}

func TestFormatForCLI(t *testing.T) {
	err := New(ErrCodeIndexNotFound, "no index found", nil).
		WithSuggestion("run 'srch index <path>' first")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: no index found")
	assert.Contains(t, out, "Hint: run 'srch index <path>' first")
	assert.Contains(t, out, "Code: ERR_203_INDEX_NOT_FOUND")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForCLI_PlainErrorIsInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
}

func TestFormatForLog(t *testing.T) {
	err := StorageError("commit failed", errors.New("locked")).
		WithDetail("document", "Go (programming language)")

	fields := FormatForLog(err)

	assert.Equal(t, ErrCodeStorage, fields["error_code"])
	assert.Equal(t, "STORAGE", fields["category"])
	assert.Equal(t, "locked", fields["cause"])
	assert.Equal(t, "Go (programming language)", fields["detail_document"])

	plain := FormatForLog(errors.New("boom"))
	assert.Equal(t, "boom", plain["error"])
	assert.Nil(t, FormatForLog(nil))
}
