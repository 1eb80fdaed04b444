package models

import "time"

// ChatSession represents a 1-on-1 chat session between two matched users.
// It is created only by the match materializer; leave/timeout logic closes it.
type ChatSession struct {
	// SessionID is the unique identifier for the session (UUID).
	SessionID string `gorm:"primaryKey" json:"session_id"`
	// User1ID is the anonymous ID of the initiating side of the match.
	User1ID string `json:"user1_id"`
	// User2ID is the anonymous ID of the claimed side of the match.
	User2ID string `json:"user2_id"`
	// MatchScore is the score the pair had at commit time.
	MatchScore float64 `json:"match_score"`
	// IsActive indicates whether the session is currently open.
	IsActive bool `json:"is_active"`
	// StartedAt is frozen at materialization and anchors session duration.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is the timestamp when the session was closed.
	EndedAt time.Time `json:"ended_at"`
}

// Participants returns both participant IDs.
func (s ChatSession) Participants() [2]string {
	return [2]string{s.User1ID, s.User2ID}
}

// HasParticipant reports whether userID is one of the two participants.
func (s ChatSession) HasParticipant(userID string) bool {
	return s.User1ID == userID || s.User2ID == userID
}
