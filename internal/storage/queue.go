package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	waitingSetKey = "match:waiting"
	eventsChannel = "match:events"
)

func entryKey(userID string) string          { return "match:entry:" + userID }
func sessionPointerKey(userID string) string { return "match:session:" + userID }
func pendingKey(sessionID string) string     { return "match:pending:" + sessionID }
func presenceKey(sessionID, userID string) string {
	return "presence:" + sessionID + ":" + userID
}

// PutQueueEntry writes the user's own entry and adds it to the waiting index.
func (s *Service) PutQueueEntry(ctx context.Context, entry models.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.Redis.Pipeline()
	pipe.Set(ctx, entryKey(entry.UserID), data, 0)
	pipe.SAdd(ctx, waitingSetKey, entry.UserID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetQueueEntry returns the user's entry, or nil when the user is not queued.
func (s *Service) GetQueueEntry(ctx context.Context, userID string) (*models.QueueEntry, error) {
	data, err := s.Redis.Get(ctx, entryKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry models.QueueEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteQueueEntry removes the user's entry. Deleting an entry that does not
// exist is a no-op.
func (s *Service) DeleteQueueEntry(ctx context.Context, userID string) error {
	pipe := s.Redis.Pipeline()
	pipe.Del(ctx, entryKey(userID))
	pipe.SRem(ctx, waitingSetKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// QueueSnapshot returns every waiting entry. Index members whose entry key is
// gone (claimed between the two reads) are dropped from the result and pruned
// from the index.
func (s *Service) QueueSnapshot(ctx context.Context) ([]models.QueueEntry, error) {
	ids, err := s.Redis.SMembers(ctx, waitingSetKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = entryKey(id)
	}
	vals, err := s.Redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]models.QueueEntry, 0, len(vals))
	var stale []interface{}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var entry models.QueueEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Printf("[STORAGE] Dropping undecodable queue entry for %s: %v", ids[i], err)
			stale = append(stale, ids[i])
			continue
		}
		entries = append(entries, entry)
	}
	if len(stale) > 0 {
		s.Redis.SRem(ctx, waitingSetKey, stale...)
	}
	return entries, nil
}

// GetSessionPointer returns the session ID the user was claimed into, or ""
// when the user holds no session.
func (s *Service) GetSessionPointer(ctx context.Context, userID string) (string, error) {
	val, err := s.Redis.Get(ctx, sessionPointerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// ClearSessionPointer removes the user's session pointer.
func (s *Service) ClearSessionPointer(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, sessionPointerKey(userID)).Err()
}

// pendingCommit is the payload of a pending-commit marker. It carries enough
// state to roll the Redis claim back if the database half never lands.
type pendingCommit struct {
	Session models.ChatSession `json:"session"`
	EntryA  models.QueueEntry  `json:"entry_a"`
	EntryB  models.QueueEntry  `json:"entry_b"`
}

// CommitMatch materializes a match. The claim half runs as a WATCH/MULTI
// transaction over both entry keys and both session pointers, so concurrent
// committers touching either user fail with ErrCommitConflict. The database
// half then creates the session row and applies coin side-effects in one
// transaction; if it fails the claim is rolled back. A pending-commit marker
// bridges the two halves for the reconciliation sweep.
func (s *Service) CommitMatch(ctx context.Context, session *models.ChatSession, a, b models.QueueEntry) error {
	if err := s.claimPair(ctx, session, a, b); err != nil {
		return err
	}
	if err := s.persistSession(session, a, b); err != nil {
		s.rollbackClaim(ctx, session.SessionID, a, b)
		return err
	}
	if err := s.Redis.Del(ctx, pendingKey(session.SessionID)).Err(); err != nil {
		// Harmless leftover: the sweep sees the session row and drops it.
		log.Printf("[STORAGE] Failed to clear pending marker for %s: %v", session.SessionID, err)
	}
	return nil
}

func (s *Service) claimPair(ctx context.Context, session *models.ChatSession, a, b models.QueueEntry) error {
	payload, err := json.Marshal(pendingCommit{Session: *session, EntryA: a, EntryB: b})
	if err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx,
			entryKey(a.UserID), entryKey(b.UserID),
			sessionPointerKey(a.UserID), sessionPointerKey(b.UserID)).Result()
		if err != nil {
			return err
		}
		if vals[0] == nil || vals[1] == nil {
			return ErrCommitConflict // an entry vanished: cancelled or claimed
		}
		if vals[2] != nil || vals[3] != nil {
			return ErrCommitConflict // a side already holds a session
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, entryKey(a.UserID), entryKey(b.UserID))
			pipe.SRem(ctx, waitingSetKey, a.UserID, b.UserID)
			pipe.Set(ctx, sessionPointerKey(a.UserID), session.SessionID, 0)
			pipe.Set(ctx, sessionPointerKey(b.UserID), session.SessionID, 0)
			pipe.Set(ctx, pendingKey(session.SessionID), payload, 0)
			return nil
		})
		return err
	}
	err = s.Redis.Watch(ctx, txf,
		entryKey(a.UserID), entryKey(b.UserID),
		sessionPointerKey(a.UserID), sessionPointerKey(b.UserID))
	if errors.Is(err, redis.TxFailedErr) {
		return ErrCommitConflict
	}
	return err
}

func (s *Service) persistSession(session *models.ChatSession, a, b models.QueueEntry) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		for _, side := range []models.QueueEntry{a, b} {
			if !side.UsesGenderFilter {
				continue
			}
			if err := deductFilterCoin(tx, side.UserID, session.SessionID); err != nil {
				return err
			}
		}
		return tx.Create(session).Error
	})
}

func deductFilterCoin(tx *gorm.DB, userID, sessionID string) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND coins >= ?", userID, config.GenderFilterCoinCost).
		UpdateColumn("coins", gorm.Expr("coins - ?", config.GenderFilterCoinCost))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	return tx.Create(&models.CoinTransaction{
		UserID:    userID,
		Amount:    -config.GenderFilterCoinCost,
		Balance:   user.Coins,
		Reason:    models.LedgerReasonGenderFilter,
		SessionID: sessionID,
	}).Error
}

// rollbackClaim undoes the Redis half of a commit: pointers are cleared and
// both entries are restored so the pair re-enters matching.
func (s *Service) rollbackClaim(ctx context.Context, sessionID string, a, b models.QueueEntry) {
	dataA, _ := json.Marshal(a)
	dataB, _ := json.Marshal(b)
	pipe := s.Redis.Pipeline()
	pipe.Del(ctx, sessionPointerKey(a.UserID), sessionPointerKey(b.UserID))
	pipe.Del(ctx, pendingKey(sessionID))
	pipe.Set(ctx, entryKey(a.UserID), dataA, 0)
	pipe.Set(ctx, entryKey(b.UserID), dataB, 0)
	pipe.SAdd(ctx, waitingSetKey, a.UserID, b.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[STORAGE] Failed to roll back claim for %s: %v", sessionID, err)
	}
}

// ReconcilePending sweeps pending-commit markers. A marker whose session row
// exists is a finished commit that failed to clean up; a marker past the
// grace window with no session row is a crashed commit, rolled back the same
// way an inline failure would be.
func (s *Service) ReconcilePending(ctx context.Context) error {
	iter := s.Redis.Scan(ctx, 0, pendingKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.Redis.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		var pc pendingCommit
		if err := json.Unmarshal(data, &pc); err != nil {
			log.Printf("[STORAGE] Dropping undecodable pending marker %s: %v", key, err)
			s.Redis.Del(ctx, key)
			continue
		}
		if _, err := s.GetSessionByID(pc.Session.SessionID); err == nil {
			s.Redis.Del(ctx, key)
			continue
		} else if !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		if time.Since(pc.Session.StartedAt) < config.PendingCommitGrace {
			continue // commit may still be in flight
		}
		log.Printf("[STORAGE] Reconciling half-created session %s", pc.Session.SessionID)
		s.rollbackClaim(ctx, pc.Session.SessionID, pc.EntryA, pc.EntryB)
	}
	return iter.Err()
}

// PublishEvent fans a match event out over Redis Pub/Sub so it reaches the
// recipient's websocket on whichever server instance holds the connection.
func (s *Service) PublishEvent(ctx context.Context, event models.MatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, eventsChannel, data).Err()
}

// SubscribeEvents subscribes to the match event channel.
func (s *Service) SubscribeEvents(ctx context.Context) *redis.PubSub {
	return s.Redis.Subscribe(ctx, eventsChannel)
}

// SetPresence records whether a participant is currently connected to a
// session. The flag is ephemeral and lives only in Redis.
func (s *Service) SetPresence(ctx context.Context, sessionID, userID string, online bool) error {
	if online {
		return s.Redis.Set(ctx, presenceKey(sessionID, userID), "1", 0).Err()
	}
	return s.Redis.Del(ctx, presenceKey(sessionID, userID)).Err()
}

// GetPresence reports whether a participant is currently connected.
func (s *Service) GetPresence(ctx context.Context, sessionID, userID string) (bool, error) {
	n, err := s.Redis.Exists(ctx, presenceKey(sessionID, userID)).Result()
	return n > 0, err
}
