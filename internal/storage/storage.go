package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"unichat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Sentinel errors surfaced to the matchmaker.
var (
	// ErrCommitConflict means the pair could not be claimed atomically: one
	// of the entries vanished or a session pointer was already set. Callers
	// treat it as "no candidate this tick", not a failure.
	ErrCommitConflict = errors.New("match commit conflict")

	ErrInsufficientFunds = errors.New("insufficient coin balance")
	ErrSessionNotFound   = errors.New("chat session not found")
	ErrProposalNotFound  = errors.New("match proposal not found")
)

// Storage is the persistence boundary the matchmaker depends on. The queue
// store, session pointers and presence flags live in Redis; profiles,
// sessions, the coin ledger and proposals live in PostgreSQL.
type Storage interface {
	// Queue store. Each user owns at most one entry.
	PutQueueEntry(ctx context.Context, entry models.QueueEntry) error
	GetQueueEntry(ctx context.Context, userID string) (*models.QueueEntry, error)
	DeleteQueueEntry(ctx context.Context, userID string) error
	QueueSnapshot(ctx context.Context) ([]models.QueueEntry, error)

	// Session pointers. Set only inside CommitMatch.
	GetSessionPointer(ctx context.Context, userID string) (string, error)
	ClearSessionPointer(ctx context.Context, userID string) error

	// CommitMatch atomically claims both queue entries, sets both session
	// pointers, deducts coins for paid filters and creates the session row.
	CommitMatch(ctx context.Context, session *models.ChatSession, a, b models.QueueEntry) error
	// ReconcilePending cleans up commits interrupted between the Redis claim
	// and the database transaction.
	ReconcilePending(ctx context.Context) error

	// User profiles.
	GetUserByID(userID string) (*models.User, error)
	SaveUser(user *models.User) error
	AdjustCoins(userID string, delta int, reason string) (*models.User, error)

	// Chat sessions.
	GetSessionByID(sessionID string) (*models.ChatSession, error)
	CloseSession(ctx context.Context, sessionID string) error

	// Match proposals (confirmation gate).
	SaveProposal(p *models.MatchProposal) error
	GetProposalByID(id string) (*models.MatchProposal, error)
	// ConfirmProposalSide atomically records userID's confirmation and
	// returns the resulting row. Concurrent confirmations serialize in the
	// store, so exactly one caller observes the transition to
	// both-confirmed.
	ConfirmProposalSide(proposalID, userID string) (*models.MatchProposal, error)
	GetActiveProposalForUser(userID string, now time.Time) (*models.MatchProposal, error)
	ExpireProposals(now time.Time) (int64, error)

	// Realtime events.
	PublishEvent(ctx context.Context, event models.MatchEvent) error

	// Presence flags (ephemeral, per session participant).
	SetPresence(ctx context.Context, sessionID, userID string, online bool) error
	GetPresence(ctx context.Context, sessionID, userID string) (bool, error)
}

// Service implements Storage on top of GORM and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService constructs the storage service.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// SaveUser upserts a user profile in PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// GetUserByID loads a user profile.
func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// AdjustCoins applies a balance delta and appends a ledger row recording the
// resulting balance. Negative deltas fail with ErrInsufficientFunds rather
// than driving the balance below zero.
func (s *Service) AdjustCoins(userID string, delta int, reason string) (*models.User, error) {
	var user models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.User{}).Where("id = ?", userID)
		if delta < 0 {
			q = q.Where("coins >= ?", -delta)
		}
		res := q.UpdateColumn("coins", gorm.Expr("coins + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("adjust coins for %s: %w", userID, ErrInsufficientFunds)
		}
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Create(&models.CoinTransaction{
			UserID:  userID,
			Amount:  delta,
			Balance: user.Coins,
			Reason:  reason,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetSessionByID loads a chat session row.
func (s *Service) GetSessionByID(sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.DB.First(&session, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		log.Printf("[STORAGE] Failed to get session %s: %v", sessionID, err)
		return nil, err
	}
	return &session, nil
}

// CloseSession marks the session inactive and clears both participants'
// session pointers so they may queue again.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSessionByID(sessionID)
	if err != nil {
		return err
	}
	err = s.DB.Model(&models.ChatSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return err
	}
	pipe := s.Redis.Pipeline()
	pipe.Del(ctx, sessionPointerKey(session.User1ID), sessionPointerKey(session.User2ID))
	pipe.Del(ctx, presenceKey(sessionID, session.User1ID), presenceKey(sessionID, session.User2ID))
	_, err = pipe.Exec(ctx)
	return err
}

// SaveProposal upserts a match proposal.
func (s *Service) SaveProposal(p *models.MatchProposal) error {
	return s.DB.Save(p).Error
}

// GetProposalByID loads a proposal by its primary key.
func (s *Service) GetProposalByID(id string) (*models.MatchProposal, error) {
	var p models.MatchProposal
	err := s.DB.First(&p, "proposal_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProposalNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ConfirmProposalSide flips the caller's confirmation column under a row
// lock. A full-row save here would let two concurrent confirmations
// overwrite each other's flag; the guarded column update plus the locked
// read cannot lose either side.
func (s *Service) ConfirmProposalSide(proposalID, userID string) (*models.MatchProposal, error) {
	var p models.MatchProposal
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&p, "proposal_id = ?", proposalID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProposalNotFound
		}
		if err != nil {
			return err
		}
		var column string
		switch userID {
		case p.User1ID:
			column = "user1_confirmed"
		case p.User2ID:
			column = "user2_confirmed"
		default:
			return ErrProposalNotFound
		}
		p.ConfirmedBy(userID)
		return tx.Model(&models.MatchProposal{}).
			Where("proposal_id = ?", proposalID).
			UpdateColumn(column, true).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActiveProposalForUser returns the user's pending, non-expired proposal,
// or nil when none exists. The matchmaker relies on this to enforce at most
// one live proposal per user.
func (s *Service) GetActiveProposalForUser(userID string, now time.Time) (*models.MatchProposal, error) {
	var p models.MatchProposal
	err := s.DB.Where("status = ?", models.ProposalPending).
		Where("expires_at > ?", now).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ExpireProposals marks every pending proposal past its expiry as expired,
// regardless of confirmation state, and returns how many were swept.
func (s *Service) ExpireProposals(now time.Time) (int64, error) {
	res := s.DB.Model(&models.MatchProposal{}).
		Where("status = ?", models.ProposalPending).
		Where("expires_at <= ?", now).
		Update("status", models.ProposalExpired)
	return res.RowsAffected, res.Error
}
