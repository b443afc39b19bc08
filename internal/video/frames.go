// Package video assembles the time-ordered frame sequence and streams it
// into an ffmpeg-backed container writer.
package video

import (
	"time"

	"github.com/realexport/realexport/internal/merge"
)

// FilterRange restricts pairs to an inclusive date range. Bounds are
// normalized to whole days: start clamps to the start of its day, end is
// exclusive at the start of the following day. Nil bounds are open.
func FilterRange(pairs []merge.CapturePair, start, end *time.Time) []merge.CapturePair {
	var filtered []merge.CapturePair
	for _, pair := range pairs {
		if start != nil && pair.Date.Before(startOfDay(*start)) {
			continue
		}
		if end != nil && !pair.Date.Before(startOfDay(*end).AddDate(0, 0, 1)) {
			continue
		}
		filtered = append(filtered, pair)
	}
	return filtered
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
