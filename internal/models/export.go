package models

import "time"

// Export is the validated in-memory view of one data export.
type Export struct {
	User               User
	Posts              []Post
	Memories           []Memory
	ConversationImages []ConversationImage
	Comments           []Comment
	BaseDir            string
}

// TotalImageCount counts moments where both captures are still images.
func (e *Export) TotalImageCount() int {
	count := 0
	for _, p := range e.Posts {
		if p.HasBothImages() {
			count++
		}
	}
	for _, m := range e.Memories {
		if m.HasBothImages() {
			count++
		}
	}
	return count
}

// DateRange returns the earliest and latest capture times across posts and
// memories, or ok=false when the export holds no moments.
func (e *Export) DateRange() (min, max time.Time, ok bool) {
	for _, p := range e.Posts {
		min, max, ok = widen(min, max, ok, p.TakenAt)
	}
	for _, m := range e.Memories {
		min, max, ok = widen(min, max, ok, m.TakenTime)
	}
	return min, max, ok
}

func widen(min, max time.Time, ok bool, t time.Time) (time.Time, time.Time, bool) {
	if !ok {
		return t, t, true
	}
	if t.Before(min) {
		min = t
	}
	if t.After(max) {
		max = t
	}
	return min, max, true
}
