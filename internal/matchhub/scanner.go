package matchhub

import (
	"time"

	"unichat/backend/internal/models"
)

// Candidate is an ephemeral scored pairing against one snapshot entry. It is
// computed on demand and never persisted.
type Candidate struct {
	Entry models.QueueEntry
	Score float64
}

// Candidates filters a queue snapshot down to the entries mutually
// compatible with self, excluding self, and scores each one.
func Candidates(self models.QueueEntry, snapshot []models.QueueEntry, now time.Time) []Candidate {
	var out []Candidate
	for _, entry := range snapshot {
		if !Compatible(self, entry) {
			continue
		}
		out = append(out, Candidate{Entry: entry, Score: Score(self, entry, now)})
	}
	return out
}

// contains reports whether the snapshot still holds an entry for userID.
func contains(snapshot []models.QueueEntry, userID string) bool {
	for _, entry := range snapshot {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}
