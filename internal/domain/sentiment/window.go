package sentiment

import (
	"fmt"
	"time"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

// Window is an aggregation window label.
type Window string

const (
	Window15m Window = "15m"
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

var windowDurations = map[Window]time.Duration{
	Window15m: 15 * time.Minute,
	Window1h:  time.Hour,
	Window24h: 24 * time.Hour,
	Window7d:  7 * 24 * time.Hour,
	Window30d: 30 * 24 * time.Hour,
}

// AllWindows lists the supported windows, shortest first.
var AllWindows = []Window{Window15m, Window1h, Window24h, Window7d, Window30d}

// Duration returns the window length, or zero for an unknown window.
func (w Window) Duration() time.Duration { return windowDurations[w] }

// Valid reports whether w is supported.
func (w Window) Valid() bool {
	_, ok := windowDurations[w]
	return ok
}

// Bounds returns [now - duration, now].
func (w Window) Bounds(now time.Time) (time.Time, time.Time) {
	return now.Add(-w.Duration()), now
}

// ParseWindow validates a window label.
func ParseWindow(s string) (Window, error) {
	w := Window(s)
	if !w.Valid() {
		return "", errors.New(errors.ErrCodeInvalidWindow, fmt.Sprintf("unsupported window %q", s))
	}
	return w, nil
}

// ParseWindows validates a list of labels.
func ParseWindows(ss []string) ([]Window, error) {
	out := make([]Window, 0, len(ss))
	for _, s := range ss {
		w, err := ParseWindow(s)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// AggregationType names what an aggregation is keyed by.
type AggregationType string

const (
	TypeTopic AggregationType = "topic"
	TypeIssue AggregationType = "issue"
)

// ParseType validates an aggregation type.
func ParseType(s string) (AggregationType, error) {
	switch t := AggregationType(s); t {
	case TypeTopic, TypeIssue:
		return t, nil
	}
	return "", errors.InvalidParam(fmt.Sprintf("unsupported aggregation type %q", s))
}
