package matchhub

import (
	"context"

	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"

	"github.com/google/uuid"
)

// Committer turns a chosen pair into a chat session, or begins the process
// of doing so. Exactly one side of a pair ever calls Commit, selected by the
// tie-break; for both implementations the caller observes resolution through
// its own session pointer, never through the return value.
type Committer interface {
	// Commit is invoked by the initiating side with both queue entries and
	// the agreed score. storage.ErrCommitConflict means the pair could not
	// be claimed and the caller should fall through to its next candidate.
	Commit(ctx context.Context, self, peer models.QueueEntry, score float64) error

	// Pending reports whether the user is held by an in-flight handshake
	// and must not attempt further commits this tick.
	Pending(ctx context.Context, userID string) (bool, error)
}

// DirectCommitter materializes the session immediately: one atomic commit
// creates the session, applies coin side-effects, clears both queue entries
// and sets both session pointers.
type DirectCommitter struct {
	Storage storage.Storage
	Clock   Clock
}

// NewDirectCommitter constructs the direct committer.
func NewDirectCommitter(s storage.Storage, clock Clock) *DirectCommitter {
	return &DirectCommitter{Storage: s, Clock: clock}
}

// Commit creates and commits the chat session for the pair.
func (d *DirectCommitter) Commit(ctx context.Context, self, peer models.QueueEntry, score float64) error {
	session := &models.ChatSession{
		SessionID:  uuid.New().String(),
		User1ID:    self.UserID,
		User2ID:    peer.UserID,
		MatchScore: score,
		IsActive:   true,
		StartedAt:  d.Clock.Now(),
	}
	return d.Storage.CommitMatch(ctx, session, self, peer)
}

// Pending always reports false: direct commits have no handshake phase.
func (d *DirectCommitter) Pending(ctx context.Context, userID string) (bool, error) {
	return false, nil
}
