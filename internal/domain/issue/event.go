package issue

import (
	"context"
	"time"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventCreated      EventType = "issue.created"
	EventStateChanged EventType = "issue.state_changed"
	EventEscalated    EventType = "issue.escalated"
)

// Event is emitted after a detection run commits.
type Event struct {
	Type          EventType `json:"type"`
	IssueID       string    `json:"issue_id"`
	TopicKey      string    `json:"topic_key"`
	Label         string    `json:"label"`
	From          State     `json:"from,omitempty"`
	To            State     `json:"to"`
	Reason        string    `json:"reason,omitempty"`
	MentionCount  int       `json:"mention_count"`
	PriorityScore float64   `json:"priority_score"`
	PriorityBand  Band      `json:"priority_band"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent snapshots iss into an event of type t.
func NewEvent(t EventType, iss *Issue, from State, reason string, at time.Time) Event {
	return Event{
		Type:          t,
		IssueID:       iss.ID,
		TopicKey:      iss.TopicKey,
		Label:         iss.Label,
		From:          from,
		To:            iss.State,
		Reason:        reason,
		MentionCount:  iss.MentionCount,
		PriorityScore: iss.PriorityScore,
		PriorityBand:  iss.PriorityBand,
		OccurredAt:    at,
	}
}

// EventsForTransition returns the events a state change produces: always a
// state change, plus an escalation when the new state is escalated.
func EventsForTransition(iss *Issue, tr *StateTransition) []Event {
	if tr == nil {
		return nil
	}
	events := []Event{NewEvent(EventStateChanged, iss, tr.From, tr.Reason, tr.OccurredAt)}
	if tr.To == StateEscalated {
		events = append(events, NewEvent(EventEscalated, iss, tr.From, tr.Reason, tr.OccurredAt))
	}
	return events
}

// EventPublisher delivers events to downstream consumers. Implementations
// must be safe for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
