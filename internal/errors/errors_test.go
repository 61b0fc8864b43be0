package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("bm25 index closed")

	// When: wrapping with CheckError
	ce := New(ErrCodeBackendUnavailable, "sparse lookup failed", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ce)
	assert.Equal(t, originalErr, errors.Unwrap(ce))
	assert.True(t, errors.Is(ce, originalErr))
}

func TestCheckError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "weights error",
			code:     ErrCodeWeightsInvalid,
			message:  "dense and sparse weights must sum to 1",
			expected: "[ERR_103_WEIGHTS_INVALID] dense and sparse weights must sum to 1",
		},
		{
			name:     "backend timeout",
			code:     ErrCodeBackendTimeout,
			message:  "dense body lookup timed out",
			expected: "[ERR_301_BACKEND_TIMEOUT] dense body lookup timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestCheckError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with the same code and different messages
	err1 := New(ErrCodeMalformedQuery, "sub-item 0 is empty", nil)
	err2 := New(ErrCodeMalformedQuery, "sub-item 3 is empty", nil)
	other := New(ErrCodeTopKInvalid, "negative top-k", nil)

	// Then: they match by code only
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, other))
}

func TestNew_DerivesCategorySeverityAndRetryable(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeWeightsInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeTopKInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeStoreFailed, CategoryIO, SeverityError, false},
		{ErrCodeBackendTimeout, CategoryBackend, SeverityWarning, true},
		{ErrCodeBackendUnavailable, CategoryBackend, SeverityWarning, true},
		{ErrCodeMalformedQuery, CategoryValidation, SeverityWarning, false},
		{ErrCodeIndexBuildFailed, CategoryInternal, SeverityWarning, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, SeverityWarning, true},
		{ErrCodeRegistryFrozen, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestBackendError_MapsDeadlineToTimeout(t *testing.T) {
	// Given: a deadline error wrapped by a backend
	cause := fmt.Errorf("hnsw search: %w", context.DeadlineExceeded)

	// When: classified
	timeout := BackendError("dense lookup", cause)
	unavailable := BackendError("dense lookup", errors.New("closed"))

	// Then: deadline maps to timeout, anything else to unavailable
	assert.Equal(t, ErrCodeBackendTimeout, timeout.Code)
	assert.Equal(t, ErrCodeBackendUnavailable, unavailable.Code)
	assert.True(t, IsRetryable(timeout))
}

func TestHelpers_SeeThroughWrapping(t *testing.T) {
	// Given: a CheckError wrapped by fmt.Errorf
	err := fmt.Errorf("load config: %w", New(ErrCodeWeightsInvalid, "bad weights", nil))

	// Then: helpers find it in the chain
	assert.Equal(t, ErrCodeWeightsInvalid, GetCode(err))
	assert.Equal(t, CategoryConfig, GetCategory(err))
	assert.True(t, IsFatal(err))
	assert.False(t, IsRetryable(err))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: an error with a suggestion
	err := ConfigError("score_threshold out of range", nil).
		WithSuggestion("use a value between 0 and 1")

	// When: formatted
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: score_threshold out of range")
	assert.Contains(t, out, "Hint: use a value between 0 and 1")
	assert.Contains(t, out, "Code: ERR_102_CONFIG_INVALID")
}

func TestLogAttrs_IncludesSortedDetails(t *testing.T) {
	err := New(ErrCodeBackendUnavailable, "sparse lookup failed", errors.New("closed")).
		WithDetail("field", "title").
		WithDetail("backend", "bleve")

	attrs := LogAttrs(err)

	require.Len(t, attrs, 7)
	assert.Equal(t, "detail_backend", attrs[5].(slog.Attr).Key)
	assert.Equal(t, "detail_field", attrs[6].(slog.Attr).Key)
}
