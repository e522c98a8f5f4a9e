package issue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

func matureIssue(count int, velocity float64, index *float64) *Issue {
	return &Issue{
		ID:              "iss-1",
		State:           StateEmerging,
		StartTime:       testNow.Add(-72 * time.Hour),
		LastActivity:    testNow.Add(-time.Hour),
		MentionCount:    count,
		VelocityPercent: velocity,
		Sentiment:       Sentiment{Index: index},
		IsActive:        true,
		CreatedAt:       testNow.Add(-72 * time.Hour),
	}
}

func ptr(v float64) *float64 { return &v }

func TestCalculate_Rules(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())

	cases := []struct {
		name string
		iss  *Issue
		want State
	}{
		{"escalated", matureIssue(15, 40, ptr(20)), StateEscalated},
		{"index at threshold is not escalated", matureIssue(15, 40, ptr(30)), StateActive},
		{"too few mentions to escalate", matureIssue(9, 40, ptr(20)), StateActive},
		{"flat velocity does not escalate", matureIssue(15, 0, ptr(20)), StateActive},
		{"no index never escalates", matureIssue(15, 40, nil), StateActive},
		{"stabilizing", matureIssue(6, -30, ptr(60)), StateStabilizing},
		{"stabilizing needs five mentions", matureIssue(4, -30, ptr(60)), StateEmerging},
		{"mild decline falls through", matureIssue(6, -10, ptr(60)), StateEmerging},
		{"active", matureIssue(3, 0, ptr(60)), StateActive},
		{"too few mentions", matureIssue(2, 50, ptr(60)), StateEmerging},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := m.Calculate(tc.iss, testNow)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestCalculate_YoungIssueIsEmerging(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(50, 100, ptr(10))
	iss.StartTime = testNow.Add(-23 * time.Hour)

	got, _ := m.Calculate(iss, testNow)
	assert.Equal(t, StateEmerging, got)
}

func TestCalculate_Resolved(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(15, 40, ptr(20))
	iss.LastActivity = testNow.Add(-8 * 24 * time.Hour)

	got, _ := m.Calculate(iss, testNow)
	assert.Equal(t, StateResolved, got)
}

func TestCalculate_ArchivedIsSticky(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(15, 40, ptr(20))
	iss.State = StateArchived
	iss.IsArchived = true

	got, _ := m.Calculate(iss, testNow)
	assert.Equal(t, StateArchived, got)
	assert.Nil(t, m.Apply(iss, testNow))
	assert.Equal(t, StateArchived, iss.State)
}

func TestApply_ResolveSetsTimestamp(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(5, 0, ptr(50))
	iss.State = StateActive
	iss.LastActivity = testNow.Add(-10 * 24 * time.Hour)

	tr := m.Apply(iss, testNow)
	require.NotNil(t, tr)
	assert.Equal(t, StateActive, tr.From)
	assert.Equal(t, StateResolved, tr.To)
	assert.Nil(t, tr.PreviousResolvedAt)
	require.NotNil(t, iss.ResolvedAt)
	assert.Equal(t, testNow, *iss.ResolvedAt)
	assert.False(t, iss.IsActive)
	assert.Equal(t, testNow, iss.UpdatedAt)
}

func TestApply_Reactivation(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	resolvedAt := testNow.Add(-2 * 24 * time.Hour)
	iss := matureIssue(12, 40, ptr(20))
	iss.State = StateResolved
	iss.ResolvedAt = &resolvedAt
	iss.IsActive = false

	tr := m.Apply(iss, testNow)
	require.NotNil(t, tr)
	assert.Equal(t, StateEscalated, tr.To)
	require.NotNil(t, tr.PreviousResolvedAt)
	assert.Equal(t, resolvedAt, *tr.PreviousResolvedAt)
	assert.Nil(t, iss.ResolvedAt)
	assert.True(t, iss.IsActive)
}

func TestApply_UnchangedReturnsNil(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(5, 10, ptr(60))
	iss.State = StateActive

	assert.Nil(t, m.Apply(iss, testNow))
	assert.NotEmpty(t, iss.StateReason)
}

func TestArchive(t *testing.T) {
	m := NewStateMachine(DefaultLifecycleConfig())
	iss := matureIssue(5, 10, ptr(60))
	iss.State = StateActive

	tr, err := m.Archive(iss, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, StateActive, tr.From)
	assert.Equal(t, StateArchived, tr.To)
	assert.Equal(t, "archived manually", tr.Reason)
	assert.True(t, iss.IsArchived)
	assert.False(t, iss.IsActive)

	_, err = m.Archive(iss, "again", testNow)
	assert.True(t, errors.IsCode(err, errors.ErrCodeIssueArchived))
}
