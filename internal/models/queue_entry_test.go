package models_test

import (
	"testing"
	"time"

	"unichat/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// TestQueueEntryBudgetElapsed verifies the wait budget is evaluated from the
// entry's own queue time, not the observer's.
func TestQueueEntryBudgetElapsed(t *testing.T) {
	queued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := models.QueueEntry{
		UserID:      "user-a",
		QueuedAt:    queued.UnixMilli(),
		WaitSeconds: 30,
	}

	assert.Equal(t, queued, entry.QueuedTime().UTC())
	assert.False(t, entry.BudgetElapsed(queued))
	assert.False(t, entry.BudgetElapsed(queued.Add(29*time.Second)))
	assert.True(t, entry.BudgetElapsed(queued.Add(30*time.Second)))
	assert.True(t, entry.BudgetElapsed(queued.Add(time.Hour)))
}

// TestQueueEntryHasInterests verifies the tag presence helper.
func TestQueueEntryHasInterests(t *testing.T) {
	assert.False(t, models.QueueEntry{}.HasInterests())
	assert.False(t, models.QueueEntry{Interests: []string{}}.HasInterests())
	assert.True(t, models.QueueEntry{Interests: []string{"music"}}.HasInterests())
}

// TestProposalConfirmedBy verifies per-side confirmation bookkeeping.
func TestProposalConfirmedBy(t *testing.T) {
	p := &models.MatchProposal{User1ID: "user-a", User2ID: "user-b"}

	assert.False(t, p.ConfirmedBy("user-a"))
	assert.True(t, p.User1Confirmed)
	assert.False(t, p.User2Confirmed)

	// An outsider's confirmation changes nothing.
	assert.False(t, p.ConfirmedBy("user-z"))

	assert.True(t, p.ConfirmedBy("user-b"))
	assert.True(t, p.User2Confirmed)
}

// TestProposalInvolvesAndExpired verifies party membership and the expiry
// boundary.
func TestProposalInvolvesAndExpired(t *testing.T) {
	expires := time.Date(2025, 6, 1, 12, 0, 15, 0, time.UTC)
	p := models.MatchProposal{User1ID: "user-a", User2ID: "user-b", ExpiresAt: expires}

	assert.True(t, p.Involves("user-a"))
	assert.True(t, p.Involves("user-b"))
	assert.False(t, p.Involves("user-c"))

	assert.False(t, p.Expired(expires.Add(-time.Millisecond)))
	assert.True(t, p.Expired(expires))
}

// TestSessionParticipants verifies the session participant helpers.
func TestSessionParticipants(t *testing.T) {
	s := models.ChatSession{SessionID: "session-1", User1ID: "user-a", User2ID: "user-b"}

	assert.Equal(t, [2]string{"user-a", "user-b"}, s.Participants())
	assert.True(t, s.HasParticipant("user-a"))
	assert.True(t, s.HasParticipant("user-b"))
	assert.False(t, s.HasParticipant("user-c"))
}
