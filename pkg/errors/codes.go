package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Clustering error codes.
const (
	ErrCodeInvalidEmbedding  ErrorCode = "CLU_001"
	ErrCodeDimensionMismatch ErrorCode = "CLU_002"
	ErrCodeEmptyVectorSet    ErrorCode = "CLU_003"
	ErrCodeMissingTimestamp  ErrorCode = "CLU_004"
	ErrCodeNeighborIndex     ErrorCode = "CLU_005"
)

// Issue error codes.
const (
	ErrCodeIssueNotFound       ErrorCode = "ISS_001"
	ErrCodeIssueArchived       ErrorCode = "ISS_002"
	ErrCodeInvalidState        ErrorCode = "ISS_003"
	ErrCodeCentroidUnavailable ErrorCode = "ISS_004"
)

// Aggregation error codes.
const (
	ErrCodeAggregationNotFound ErrorCode = "AGG_001"
	ErrCodeBaselineNotFound    ErrorCode = "AGG_002"
	ErrCodeInvalidWindow       ErrorCode = "AGG_003"
	ErrCodeInvalidAggregation  ErrorCode = "AGG_004"
)

// Detection error codes.
const (
	ErrCodeTopicBusy       ErrorCode = "DET_001"
	ErrCodeDetectionFailed ErrorCode = "DET_002"
	ErrCodeTopicRequired   ErrorCode = "DET_003"
)

// Short aliases used at call sites.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")

	CodeInternal           = ErrCodeInternal
	CodeInvalidParam       = ErrCodeBadRequest
	CodeUnauthorized       = ErrCodeUnauthorized
	CodeForbidden          = ErrCodeForbidden
	CodeNotFound           = ErrCodeNotFound
	CodeConflict           = ErrCodeConflict
	CodeRateLimit          = ErrCodeTooManyRequests
	CodeServiceUnavailable = ErrCodeServiceUnavailable
	CodeValidation         = ErrCodeValidation
	CodeDatabaseError      = ErrCodeDatabaseError
	CodeCacheError         = ErrCodeCacheError
	CodeNotImplemented     = ErrCodeNotImplemented

	CodeIssueNotFound       = ErrCodeIssueNotFound
	CodeAggregationNotFound = ErrCodeAggregationNotFound
	CodeBaselineNotFound    = ErrCodeBaselineNotFound
)

// ErrorCodeHTTPStatus maps codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeInvalidEmbedding:  http.StatusUnprocessableEntity,
	ErrCodeDimensionMismatch: http.StatusUnprocessableEntity,
	ErrCodeEmptyVectorSet:    http.StatusUnprocessableEntity,
	ErrCodeMissingTimestamp:  http.StatusUnprocessableEntity,
	ErrCodeNeighborIndex:     http.StatusInternalServerError,

	ErrCodeIssueNotFound:       http.StatusNotFound,
	ErrCodeIssueArchived:       http.StatusConflict,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeCentroidUnavailable: http.StatusUnprocessableEntity,

	ErrCodeAggregationNotFound: http.StatusNotFound,
	ErrCodeBaselineNotFound:    http.StatusNotFound,
	ErrCodeInvalidWindow:       http.StatusBadRequest,
	ErrCodeInvalidAggregation:  http.StatusBadRequest,

	ErrCodeTopicBusy:       http.StatusConflict,
	ErrCodeDetectionFailed: http.StatusInternalServerError,
	ErrCodeTopicRequired:   http.StatusBadRequest,
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code, e.g. "ISS" for "ISS_001".
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
