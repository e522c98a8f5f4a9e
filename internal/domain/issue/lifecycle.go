package issue

import (
	"fmt"
	"time"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// LifecycleConfig holds the state machine thresholds.
type LifecycleConfig struct {
	ResolvedAfter          time.Duration
	EmergingWindow         time.Duration
	EmergingMinMentions    int
	EscalationIndex        float64
	EscalationMinMentions  int
	StabilizingVelocity    float64
	StabilizingMinMentions int
	ActiveMinMentions      int
}

// DefaultLifecycleConfig returns the stock thresholds.
func DefaultLifecycleConfig() LifecycleConfig {
	return LifecycleConfig{
		ResolvedAfter:          7 * 24 * time.Hour,
		EmergingWindow:         24 * time.Hour,
		EmergingMinMentions:    3,
		EscalationIndex:        30,
		EscalationMinMentions:  10,
		StabilizingVelocity:    -20,
		StabilizingMinMentions: 5,
		ActiveMinMentions:      3,
	}
}

// StateMachine decides the lifecycle state of an issue from its current
// metrics. The first matching rule wins.
type StateMachine struct {
	cfg LifecycleConfig
}

// NewStateMachine creates a StateMachine.
func NewStateMachine(cfg LifecycleConfig) *StateMachine {
	return &StateMachine{cfg: cfg}
}

// Calculate returns the state the issue should be in at now together with a
// human readable reason. It does not modify the issue.
func (m *StateMachine) Calculate(iss *Issue, now time.Time) (State, string) {
	if iss.State == StateArchived || iss.IsArchived {
		return StateArchived, "archived"
	}

	idle := now.Sub(iss.ActivityTime())
	if idle >= m.cfg.ResolvedAfter {
		return StateResolved, fmt.Sprintf("no activity for %s", roundDuration(idle))
	}

	age := iss.Age(now)
	if age < m.cfg.EmergingWindow || iss.MentionCount < m.cfg.EmergingMinMentions {
		return StateEmerging, fmt.Sprintf("age %s with %d mentions", roundDuration(age), iss.MentionCount)
	}

	if idx := iss.Sentiment.Index; idx != nil &&
		*idx < m.cfg.EscalationIndex &&
		iss.MentionCount >= m.cfg.EscalationMinMentions &&
		iss.VelocityPercent > 0 {
		return StateEscalated, fmt.Sprintf("sentiment index %.1f with velocity %+.1f%%", *idx, iss.VelocityPercent)
	}

	if iss.VelocityPercent < m.cfg.StabilizingVelocity && iss.MentionCount >= m.cfg.StabilizingMinMentions {
		return StateStabilizing, fmt.Sprintf("velocity %+.1f%%", iss.VelocityPercent)
	}

	if iss.MentionCount >= m.cfg.ActiveMinMentions && iss.VelocityPercent >= 0 {
		return StateActive, fmt.Sprintf("%d mentions with velocity %+.1f%%", iss.MentionCount, iss.VelocityPercent)
	}

	return StateEmerging, "no other rule matched"
}

// Apply recalculates the state and performs the side effects of a change:
// entering resolved stamps resolved_at and deactivates the issue, leaving
// resolved for active or escalated reactivates it. The returned transition is
// nil when the state did not change.
func (m *StateMachine) Apply(iss *Issue, now time.Time) *StateTransition {
	next, reason := m.Calculate(iss, now)
	iss.StateReason = reason
	if next == iss.State {
		return nil
	}

	tr := &StateTransition{
		IssueID:            iss.ID,
		From:               iss.State,
		To:                 next,
		Reason:             reason,
		PreviousResolvedAt: copyTime(iss.ResolvedAt),
		OccurredAt:         now,
	}

	switch next {
	case StateResolved:
		t := now
		iss.ResolvedAt = &t
		iss.IsActive = false
	case StateActive, StateEscalated:
		if iss.State == StateResolved {
			iss.ResolvedAt = nil
			iss.IsActive = true
		}
	}

	iss.State = next
	iss.UpdatedAt = now
	return tr
}

// Archive moves an issue into the terminal archived state.
func (m *StateMachine) Archive(iss *Issue, reason string, now time.Time) (*StateTransition, error) {
	if iss.State == StateArchived || iss.IsArchived {
		return nil, errors.New(errors.ErrCodeIssueArchived, "issue is already archived").
			WithDetail(iss.ID)
	}
	if reason == "" {
		reason = "archived manually"
	}

	tr := &StateTransition{
		IssueID:            iss.ID,
		From:               iss.State,
		To:                 StateArchived,
		Reason:             reason,
		PreviousResolvedAt: copyTime(iss.ResolvedAt),
		OccurredAt:         now,
	}
	iss.State = StateArchived
	iss.StateReason = reason
	iss.IsActive = false
	iss.IsArchived = true
	iss.UpdatedAt = now
	return tr, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func roundDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d.Round(time.Minute)
}
