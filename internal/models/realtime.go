package models

// Match event types pushed to clients.
const (
	EventSearching      = "searching"
	EventMatchFound     = "match_found"
	EventProposal       = "match_proposal"
	EventProposalFailed = "proposal_failed"
	EventNoMatch        = "no_match_found"
	EventCancelled      = "search_cancelled"
)

// MatchEvent is the realtime payload delivered to a single user over the
// websocket (and over Redis Pub/Sub between server instances).
type MatchEvent struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id"` // recipient
	SessionID  string `json:"session_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
	Content    string `json:"content,omitempty"` // localized status line
}
