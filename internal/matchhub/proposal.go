package matchhub

import (
	"context"
	"errors"
	"log"
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"

	"github.com/google/uuid"
)

// ErrProposalClosed is returned when confirming or declining a proposal that
// is no longer pending (declined, expired, or already accepted).
var ErrProposalClosed = errors.New("match proposal is no longer pending")

// ProposalGate is the stronger-consistency committer: instead of
// materializing directly, the initiator writes a MatchProposal with a short
// expiry and both sides must confirm before the session is created. If either
// declines or the expiry elapses first, both users simply remain queued.
type ProposalGate struct {
	Storage storage.Storage
	Clock   Clock
	Expiry  time.Duration
}

// NewProposalGate constructs the gate with the configured proposal expiry.
func NewProposalGate(s storage.Storage, clock Clock) *ProposalGate {
	return &ProposalGate{Storage: s, Clock: clock, Expiry: config.ProposalExpiry}
}

// Commit writes the proposal and notifies both parties. Queue entries are
// not touched here; they are claimed atomically only once both sides have
// confirmed, so a declined or expired proposal needs no undo.
func (g *ProposalGate) Commit(ctx context.Context, self, peer models.QueueEntry, score float64) error {
	now := g.Clock.Now()
	// At most one non-expired proposal per user.
	for _, userID := range []string{self.UserID, peer.UserID} {
		active, err := g.Storage.GetActiveProposalForUser(userID, now)
		if err != nil {
			return err
		}
		if active != nil {
			return nil // already mid-handshake; nothing to do this round
		}
	}

	proposal := &models.MatchProposal{
		ProposalID:      uuid.New().String(),
		User1ID:         self.UserID,
		User2ID:         peer.UserID,
		Status:          models.ProposalPending,
		User1UsedFilter: self.UsesGenderFilter,
		User2UsedFilter: peer.UsesGenderFilter,
		MatchScore:      score,
		CreatedAt:       now,
		ExpiresAt:       now.Add(g.Expiry),
	}
	if err := g.Storage.SaveProposal(proposal); err != nil {
		return err
	}
	for _, userID := range []string{proposal.User1ID, proposal.User2ID} {
		evt := models.MatchEvent{
			Type:       models.EventProposal,
			UserID:     userID,
			ProposalID: proposal.ProposalID,
		}
		if err := g.Storage.PublishEvent(ctx, evt); err != nil {
			log.Printf("[GATE] Failed to publish proposal event for %s: %v", userID, err)
		}
	}
	return nil
}

// Pending reports whether the user currently has a live proposal.
func (g *ProposalGate) Pending(ctx context.Context, userID string) (bool, error) {
	active, err := g.Storage.GetActiveProposalForUser(userID, g.Clock.Now())
	return active != nil, err
}

// Confirm records userID's confirmation. When both sides have confirmed, the
// session is materialized and the proposal is marked accepted with its chat
// ID set. A commit conflict (an entry vanished mid-handshake) expires the
// proposal instead of failing the caller.
func (g *ProposalGate) Confirm(ctx context.Context, proposalID, userID string) (*models.MatchProposal, error) {
	proposal, err := g.Storage.GetProposalByID(proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Involves(userID) {
		return nil, storage.ErrProposalNotFound
	}
	now := g.Clock.Now()
	if proposal.Status != models.ProposalPending || proposal.Expired(now) {
		return proposal, ErrProposalClosed
	}

	// The flag write is atomic in the store; each caller sees the other
	// side's confirmation, never a stale copy, and the one that observes
	// both flags set goes on to materialize.
	proposal, err = g.Storage.ConfirmProposalSide(proposalID, userID)
	if err != nil {
		return nil, err
	}
	if !proposal.User1Confirmed || !proposal.User2Confirmed {
		return proposal, nil
	}

	entryA, err := g.Storage.GetQueueEntry(ctx, proposal.User1ID)
	if err != nil {
		return proposal, err
	}
	entryB, err := g.Storage.GetQueueEntry(ctx, proposal.User2ID)
	if err != nil {
		return proposal, err
	}
	if entryA == nil || entryB == nil {
		return g.abandon(ctx, proposal)
	}

	session := &models.ChatSession{
		SessionID:  uuid.New().String(),
		User1ID:    proposal.User1ID,
		User2ID:    proposal.User2ID,
		MatchScore: proposal.MatchScore,
		IsActive:   true,
		StartedAt:  now,
	}
	if err := g.Storage.CommitMatch(ctx, session, *entryA, *entryB); err != nil {
		if errors.Is(err, storage.ErrCommitConflict) {
			// A redundant confirmation racing the completing one may find
			// the pair already claimed; if the proposal was accepted the
			// handshake succeeded and there is nothing to undo.
			if latest, lerr := g.Storage.GetProposalByID(proposalID); lerr == nil && latest.Status == models.ProposalAccepted {
				return latest, nil
			}
			return g.abandon(ctx, proposal)
		}
		return proposal, err
	}

	proposal.Status = models.ProposalAccepted
	proposal.ChatID = session.SessionID
	return proposal, g.Storage.SaveProposal(proposal)
}

// Decline discards the proposal; both users remain in the queue and resume
// matching on their next tick.
func (g *ProposalGate) Decline(ctx context.Context, proposalID, userID string) error {
	proposal, err := g.Storage.GetProposalByID(proposalID)
	if err != nil {
		return err
	}
	if !proposal.Involves(userID) {
		return storage.ErrProposalNotFound
	}
	if proposal.Status != models.ProposalPending {
		return ErrProposalClosed
	}
	proposal.Status = models.ProposalDeclined
	if err := g.Storage.SaveProposal(proposal); err != nil {
		return err
	}
	g.notifyFailed(ctx, proposal)
	return nil
}

func (g *ProposalGate) abandon(ctx context.Context, proposal *models.MatchProposal) (*models.MatchProposal, error) {
	proposal.Status = models.ProposalExpired
	if err := g.Storage.SaveProposal(proposal); err != nil {
		return proposal, err
	}
	g.notifyFailed(ctx, proposal)
	return proposal, ErrProposalClosed
}

func (g *ProposalGate) notifyFailed(ctx context.Context, proposal *models.MatchProposal) {
	for _, userID := range []string{proposal.User1ID, proposal.User2ID} {
		evt := models.MatchEvent{
			Type:       models.EventProposalFailed,
			UserID:     userID,
			ProposalID: proposal.ProposalID,
		}
		if err := g.Storage.PublishEvent(ctx, evt); err != nil {
			log.Printf("[GATE] Failed to publish proposal outcome for %s: %v", userID, err)
		}
	}
}

// RunSweeper expires stale proposals in the background, bounding the cost of
// a mid-handshake disconnect regardless of confirmation state.
func (g *ProposalGate) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(config.ProposalSweepPeriod)
	defer ticker.Stop()

	log.Printf("[GATE] Proposal sweeper started (every %v)", config.ProposalSweepPeriod)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[GATE] Proposal sweeper stopped")
			return
		case <-ticker.C:
			swept, err := g.Storage.ExpireProposals(g.Clock.Now())
			if err != nil {
				log.Printf("[GATE] Proposal sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("[GATE] Expired %d stale proposals", swept)
			}
		}
	}
}
