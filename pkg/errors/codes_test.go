package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
	assert.Equal(t, "ISS_001", CodeIssueNotFound.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeConflict, 409},
		{ErrCodeValidation, 422},
		{ErrCodeIssueNotFound, 404},
		{ErrCodeIssueArchived, 409},
		{ErrCodeTopicBusy, 409},
		{ErrCodeInvalidWindow, 400},
		{ErrorCode("UNKNOWN"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), tt.code)
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeBadRequest))
	assert.True(t, IsClientError(ErrCodeDimensionMismatch))
	assert.False(t, IsClientError(ErrCodeInternal))
}

func TestIsServerError(t *testing.T) {
	assert.True(t, IsServerError(ErrCodeDatabaseError))
	assert.True(t, IsServerError(ErrCodeMessageQueueError))
	assert.False(t, IsServerError(ErrCodeNotFound))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "CLU", ModuleForCode(ErrCodeInvalidEmbedding))
	assert.Equal(t, "AGG", ModuleForCode(ErrCodeBaselineNotFound))
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
}

func TestCodesAreWellFormedAndMapped(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, pattern, code.String())
	}
}
