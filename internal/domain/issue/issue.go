// Package issue holds the durable Issue aggregate together with its lifecycle
// state machine, priority calculator, volume/velocity model and metadata
// extraction.
package issue

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// State is the lifecycle state of an issue.
type State string

const (
	StateEmerging    State = "emerging"
	StateActive      State = "active"
	StateEscalated   State = "escalated"
	StateStabilizing State = "stabilizing"
	StateResolved    State = "resolved"
	StateArchived    State = "archived"
)

// AllStates lists every state in lifecycle order.
var AllStates = []State{StateEmerging, StateActive, StateEscalated, StateStabilizing, StateResolved, StateArchived}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	for _, v := range AllStates {
		if v == s {
			return true
		}
	}
	return false
}

// ParseState converts a string into a State.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", errors.InvalidParam(fmt.Sprintf("unknown issue state %q", s))
	}
	return st, nil
}

// Band is the discrete priority band.
type Band string

const (
	BandCritical Band = "critical"
	BandHigh     Band = "high"
	BandMedium   Band = "medium"
	BandLow      Band = "low"
)

// Sentiment is the sentiment snapshot of an issue's linked mentions.
// Pointer fields are nil until a computation succeeded at least once.
type Sentiment struct {
	Distribution        map[string]float64 `json:"distribution,omitempty"`
	WeightedScore       *float64           `json:"weighted_score,omitempty"`
	Index               *float64           `json:"index,omitempty"`
	EmotionDistribution map[string]float64 `json:"emotion_distribution,omitempty"`
	Severity            *float64           `json:"severity,omitempty"`
}

// Issue is a detected real-world topic of concern built from clustered
// mentions.
//
// MentionCount equals the number of distinct links. Centroid is a cache of the
// mean embedding of linked mentions: nil means "recompute from a sample".
type Issue struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Label       string `json:"label"`
	TopicKey    string `json:"topic_key"`
	State       State  `json:"state"`
	StateReason string `json:"state_reason"`

	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	MentionCount int       `json:"mention_count"`

	Centroid            []float64 `json:"-"`
	SimilarityThreshold float64   `json:"similarity_threshold"`

	VolumeCurrent   int     `json:"volume_current"`
	VolumePrevious  int     `json:"volume_previous"`
	VelocityPercent float64 `json:"velocity_percent"`
	VelocityScore   float64 `json:"velocity_score"`

	PriorityScore float64 `json:"priority_score"`
	PriorityBand  Band    `json:"priority_band"`

	Sentiment Sentiment `json:"sentiment"`

	TopKeywords []string `json:"top_keywords"`
	TopSources  []string `json:"top_sources"`
	Regions     []string `json:"regions"`

	IsActive   bool       `json:"is_active"`
	IsArchived bool       `json:"is_archived"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an emerging issue seeded from a cluster.
func New(topicKey, label string, centroid []float64, threshold float64, start, now time.Time) (*Issue, error) {
	if strings.TrimSpace(topicKey) == "" {
		return nil, errors.New(errors.ErrCodeTopicRequired, "topic key cannot be empty")
	}
	if strings.TrimSpace(label) == "" {
		return nil, errors.InvalidParam("issue label cannot be empty")
	}
	if start.IsZero() {
		start = now
	}

	id := uuid.New().String()
	return &Issue{
		ID:                  id,
		Slug:                Slugify(label) + "-" + id[:8],
		Label:               label,
		TopicKey:            topicKey,
		State:               StateEmerging,
		StateReason:         "new issue",
		StartTime:           start,
		LastActivity:        start,
		Centroid:            append([]float64(nil), centroid...),
		SimilarityThreshold: threshold,
		PriorityBand:        BandLow,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// ActivityTime returns last_activity, falling back to start_time and then
// created_at.
func (i *Issue) ActivityTime() time.Time {
	switch {
	case !i.LastActivity.IsZero():
		return i.LastActivity
	case !i.StartTime.IsZero():
		return i.StartTime
	default:
		return i.CreatedAt
	}
}

// Age is the time elapsed since start_time (or created_at).
func (i *Issue) Age(now time.Time) time.Duration {
	start := i.StartTime
	if start.IsZero() {
		start = i.CreatedAt
	}
	return now.Sub(start)
}

// HasCentroid reports whether the cached centroid is usable at dim.
func (i *Issue) HasCentroid(dim int) bool {
	return len(i.Centroid) > 0 && (dim <= 0 || len(i.Centroid) == dim)
}

// InvalidateCentroid drops the cached centroid.
func (i *Issue) InvalidateCentroid() { i.Centroid = nil }

// Link records that a mention belongs to an issue.
type Link struct {
	IssueID    string    `json:"issue_id"`
	MentionID  string    `json:"mention_id"`
	TopicKey   string    `json:"topic_key"`
	Similarity float64   `json:"similarity"`
	LinkedAt   time.Time `json:"linked_at"`
}

// TopicLink is the per-topic mention-count rollup of an issue.
type TopicLink struct {
	TopicKey     string    `json:"topic_key"`
	IssueID      string    `json:"issue_id"`
	MentionCount int       `json:"mention_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StateTransition is one entry of an issue's state history. Reactivation and
// archival keep the resolved timestamp they overwrite.
type StateTransition struct {
	ID                 string     `json:"id"`
	IssueID            string     `json:"issue_id"`
	From               State      `json:"from"`
	To                 State      `json:"to"`
	Reason             string     `json:"reason"`
	PreviousResolvedAt *time.Time `json:"previous_resolved_at,omitempty"`
	OccurredAt         time.Time  `json:"occurred_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Slugs
// ─────────────────────────────────────────────────────────────────────────────

const maxSlugLength = 60

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with
// dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if sb.Len() > 0 && !dash {
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if len(slug) > maxSlugLength {
		cut := maxSlugLength
		for cut > 0 && !utf8.RuneStart(slug[cut]) {
			cut--
		}
		slug = strings.TrimRight(slug[:cut], "-")
	}
	if slug == "" {
		slug = "issue"
	}
	return slug
}
