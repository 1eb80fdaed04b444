package models

import "time"

// Proposal lifecycle states.
const (
	ProposalPending  = "pending"
	ProposalAccepted = "accepted"
	ProposalDeclined = "declined"
	ProposalExpired  = "expired"
)

// MatchProposal is the two-party handshake record used by the confirmation
// gate. The initiator writes it with a short expiry; the session is
// materialized only after both sides confirmed. At most one non-expired
// proposal may exist per user.
type MatchProposal struct {
	ProposalID      string    `gorm:"primaryKey" json:"proposal_id"`
	User1ID         string    `gorm:"index" json:"user1_id"` // initiator
	User2ID         string    `gorm:"index" json:"user2_id"`
	User1Confirmed  bool      `json:"user1_confirmed"`
	User2Confirmed  bool      `json:"user2_confirmed"`
	Status          string    `json:"status"`
	User1UsedFilter bool      `json:"user1_used_filter"`
	User2UsedFilter bool      `json:"user2_used_filter"`
	MatchScore      float64   `json:"match_score"`
	ChatID          string    `json:"chat_id"` // set on materialization
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Involves reports whether userID is one of the proposal's two parties.
func (p MatchProposal) Involves(userID string) bool {
	return p.User1ID == userID || p.User2ID == userID
}

// ConfirmedBy marks userID's side as confirmed and reports whether both
// sides have now confirmed.
func (p *MatchProposal) ConfirmedBy(userID string) bool {
	switch userID {
	case p.User1ID:
		p.User1Confirmed = true
	case p.User2ID:
		p.User2Confirmed = true
	}
	return p.User1Confirmed && p.User2Confirmed
}

// Expired reports whether the proposal's expiry window has elapsed.
func (p MatchProposal) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
