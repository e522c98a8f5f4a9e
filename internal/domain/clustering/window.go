package clustering

import (
	"time"

	"github.com/turtacn/Issue-Intelligence/internal/domain/mention"
)

// PartitionByWindow splits mentions into disjoint time windows of the given
// width. Mentions are sorted by timestamp and a new window opens as soon as a
// mention is more than width after the first mention of the current window.
// The gap is measured from the window start, not between neighbours, so a
// slow steady stream cannot chain into one unbounded window.
//
// The input slice is reordered. width <= 0 yields a single window.
func PartitionByWindow(mentions []*mention.Mention, width time.Duration) [][]*mention.Mention {
	if len(mentions) == 0 {
		return nil
	}
	sortByTime(mentions)
	if width <= 0 {
		return [][]*mention.Mention{mentions}
	}

	var (
		windows [][]*mention.Mention
		current []*mention.Mention
		start   time.Time
	)
	for _, m := range mentions {
		if len(current) > 0 && m.PublishedAt.Sub(start) > width {
			windows = append(windows, current)
			current = nil
		}
		if len(current) == 0 {
			start = m.PublishedAt
		}
		current = append(current, m)
	}
	return append(windows, current)
}
