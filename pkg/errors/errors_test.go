package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// New / Error()
// ─────────────────────────────────────────────────────────────────────────────

func TestNew_FieldsAreSetCorrectly(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		code    errors.ErrorCode
		message string
	}{
		{"internal error", errors.CodeInternal, "unexpected failure"},
		{"issue not found", errors.CodeIssueNotFound, "issue 42 not found"},
		{"invalid param", errors.CodeInvalidParam, "topic key must not be empty"},
		{"dimension mismatch", errors.ErrCodeDimensionMismatch, "embedding has 3 dimensions"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ae := errors.New(tc.code, tc.message)

			require.NotNil(t, ae)
			assert.Equal(t, tc.code, ae.Code)
			assert.Equal(t, tc.message, ae.Message)
			assert.Empty(t, ae.Detail)
			assert.Nil(t, ae.Cause)
			assert.Contains(t, ae.Stack, "errors_test.go")
		})
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[ISS_001] issue not found", errors.New(errors.CodeIssueNotFound, "issue not found").Error())
	assert.Equal(t, "[ISS_001] issue not found: id=7",
		errors.New(errors.CodeIssueNotFound, "issue not found").WithDetail("id=7").Error())

	wrapped := errors.Wrap(fmt.Errorf("connection reset"), errors.CodeDatabaseError, "failed to load issues")
	assert.Equal(t, "[COMMON_012] failed to load issues: connection reset", wrapped.Error())
}

// ─────────────────────────────────────────────────────────────────────────────
// Wrap
// ─────────────────────────────────────────────────────────────────────────────

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))
}

func TestWrap_UnknownPreservesInnerCode(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.ErrCodeIssueArchived, "issue is archived")
	outer := errors.Wrap(inner, errors.CodeUnknown, "archive request rejected")

	require.NotNil(t, outer)
	assert.Equal(t, errors.ErrCodeIssueArchived, outer.Code)
	assert.True(t, stderrors.Is(outer, inner))
}

func TestWrap_ExplicitCodeOverrides(t *testing.T) {
	t.Parallel()

	inner := errors.New(errors.CodeIssueNotFound, "missing")
	outer := errors.Wrap(inner, errors.CodeDatabaseError, "lookup failed")

	assert.Equal(t, errors.CodeDatabaseError, outer.Code)
	assert.True(t, errors.IsCode(outer, errors.CodeIssueNotFound))
}

// ─────────────────────────────────────────────────────────────────────────────
// Builders
// ─────────────────────────────────────────────────────────────────────────────

func TestWithDetail_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := errors.NotFound("issue not found")
	detailed := base.WithDetail("id=1")

	assert.Empty(t, base.Detail)
	assert.Equal(t, "id=1", detailed.Detail)
}

func TestBuilders_NilSafe(t *testing.T) {
	t.Parallel()

	var ae *errors.AppError
	assert.Nil(t, ae.WithDetail("x"))
	assert.Nil(t, ae.WithCause(fmt.Errorf("y")))
}

func TestWithCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("redis: nil")
	ae := errors.Internal("cache read failed").WithCause(cause)
	assert.ErrorIs(t, ae, cause)
}

// ─────────────────────────────────────────────────────────────────────────────
// Inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"generic", errors.NotFound("missing"), true},
		{"issue", errors.New(errors.CodeIssueNotFound, "missing"), true},
		{"aggregation", errors.New(errors.CodeAggregationNotFound, "missing"), true},
		{"baseline", errors.New(errors.CodeBaselineNotFound, "missing"), true},
		{"wrapped", fmt.Errorf("outer: %w", errors.NotFound("missing")), true},
		{"internal", errors.Internal("boom"), false},
		{"plain", fmt.Errorf("plain"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, errors.IsNotFound(tc.err), tc.name)
	}
}

func TestGetCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(fmt.Errorf("plain")))
	assert.Equal(t, errors.ErrCodeTopicBusy,
		errors.GetCode(fmt.Errorf("wrapped: %w", errors.New(errors.ErrCodeTopicBusy, "busy"))))
}

func TestShorthands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, errors.CodeInvalidParam, errors.InvalidParam("x").Code)
	assert.Equal(t, errors.CodeConflict, errors.InvalidState("x").Code)
	assert.Equal(t, errors.CodeConflict, errors.Conflict("x").Code)
	assert.Equal(t, errors.CodeInternal, errors.Internal("x").Code)
	assert.Equal(t, errors.CodeServiceUnavailable, errors.Unavailable("x").Code)
}
