package models

import "time"

// QueueEntry is a waiting user's matchmaking request record.
// Entries live in Redis, one per user; the existence of an entry implies the
// user holds no active chat session. QueuedAt (epoch millis) is the
// authoritative ordering key for aging and the tie-break rule.
type QueueEntry struct {
	UserID           string   `json:"user_id"`
	Gender           string   `json:"gender"`
	Seeking          string   `json:"seeking"` // "any", "male" or "female"
	Interests        []string `json:"interests,omitempty"`
	UsesGenderFilter bool     `json:"uses_gender_filter"` // paid hard filter
	QueuedAt         int64    `json:"queued_at"`          // epoch millis
	WaitSeconds      int      `json:"wait_seconds"`       // this entry's own wait budget
}

// QueuedTime returns QueuedAt as a time.Time.
func (e QueueEntry) QueuedTime() time.Time {
	return time.UnixMilli(e.QueuedAt)
}

// BudgetElapsed reports whether the entry's own wait budget has run out.
// Any peer can evaluate this from a queue snapshot, which is what makes an
// entry an eligible candidate for a deciding party.
func (e QueueEntry) BudgetElapsed(now time.Time) bool {
	return now.Sub(e.QueuedTime()) >= time.Duration(e.WaitSeconds)*time.Second
}

// HasInterests reports whether the entry declared any interest tags.
func (e QueueEntry) HasInterests() bool {
	return len(e.Interests) > 0
}
