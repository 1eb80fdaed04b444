package matchhub_test

import (
	"context"
	"sync"
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"

	"gorm.io/gorm"
)

// fakeClock is a manually advanced Clock for headless scheduler tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory Storage with the same atomicity guarantees as the
// Redis/Postgres service: CommitMatch either applies all four sub-steps or
// fails with ErrCommitConflict, under one lock.
type memStore struct {
	mu        sync.Mutex
	entries   map[string]models.QueueEntry
	pointers  map[string]string
	users     map[string]*models.User
	sessions  map[string]*models.ChatSession
	proposals map[string]*models.MatchProposal
	ledger    []models.CoinTransaction
	events    []models.MatchEvent
	presence  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		entries:   make(map[string]models.QueueEntry),
		pointers:  make(map[string]string),
		users:     make(map[string]*models.User),
		sessions:  make(map[string]*models.ChatSession),
		proposals: make(map[string]*models.MatchProposal),
		presence:  make(map[string]bool),
	}
}

func (m *memStore) PutQueueEntry(ctx context.Context, entry models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.UserID] = entry
	return nil
}

func (m *memStore) GetQueueEntry(ctx context.Context, userID string) (*models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[userID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *memStore) DeleteQueueEntry(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

func (m *memStore) QueueSnapshot(ctx context.Context) ([]models.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.QueueEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry)
	}
	return out, nil
}

func (m *memStore) GetSessionPointer(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pointers[userID], nil
}

func (m *memStore) ClearSessionPointer(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pointers, userID)
	return nil
}

func (m *memStore) CommitMatch(ctx context.Context, session *models.ChatSession, a, b models.QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[a.UserID]; !ok {
		return storage.ErrCommitConflict
	}
	if _, ok := m.entries[b.UserID]; !ok {
		return storage.ErrCommitConflict
	}
	if m.pointers[a.UserID] != "" || m.pointers[b.UserID] != "" {
		return storage.ErrCommitConflict
	}
	for _, side := range []models.QueueEntry{a, b} {
		if !side.UsesGenderFilter {
			continue
		}
		user, ok := m.users[side.UserID]
		if !ok || user.Coins < config.GenderFilterCoinCost {
			return storage.ErrInsufficientFunds
		}
	}
	for _, side := range []models.QueueEntry{a, b} {
		if !side.UsesGenderFilter {
			continue
		}
		user := m.users[side.UserID]
		user.Coins -= config.GenderFilterCoinCost
		m.ledger = append(m.ledger, models.CoinTransaction{
			UserID:    side.UserID,
			Amount:    -config.GenderFilterCoinCost,
			Balance:   user.Coins,
			Reason:    models.LedgerReasonGenderFilter,
			SessionID: session.SessionID,
		})
	}
	delete(m.entries, a.UserID)
	delete(m.entries, b.UserID)
	m.pointers[a.UserID] = session.SessionID
	m.pointers[b.UserID] = session.SessionID
	copied := *session
	m.sessions[session.SessionID] = &copied
	return nil
}

func (m *memStore) ReconcilePending(ctx context.Context) error { return nil }

func (m *memStore) GetUserByID(userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memStore) SaveUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStore) AdjustCoins(userID string, delta int, reason string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if delta < 0 && user.Coins < -delta {
		return nil, storage.ErrInsufficientFunds
	}
	user.Coins += delta
	m.ledger = append(m.ledger, models.CoinTransaction{
		UserID: userID, Amount: delta, Balance: user.Coins, Reason: reason,
	})
	copied := *user
	return &copied, nil
}

func (m *memStore) GetSessionByID(sessionID string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, storage.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *memStore) CloseSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return storage.ErrSessionNotFound
	}
	session.IsActive = false
	delete(m.pointers, session.User1ID)
	delete(m.pointers, session.User2ID)
	return nil
}

func (m *memStore) SaveProposal(p *models.MatchProposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.proposals[p.ProposalID] = &copied
	return nil
}

func (m *memStore) GetProposalByID(id string) (*models.MatchProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, storage.ErrProposalNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memStore) ConfirmProposalSide(proposalID, userID string) (*models.MatchProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[proposalID]
	if !ok || !p.Involves(userID) {
		return nil, storage.ErrProposalNotFound
	}
	p.ConfirmedBy(userID)
	copied := *p
	return &copied, nil
}

func (m *memStore) GetActiveProposalForUser(userID string, now time.Time) (*models.MatchProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proposals {
		if p.Status == models.ProposalPending && !p.Expired(now) && p.Involves(userID) {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) ExpireProposals(now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for _, p := range m.proposals {
		if p.Status == models.ProposalPending && p.Expired(now) {
			p.Status = models.ProposalExpired
			swept++
		}
	}
	return swept, nil
}

func (m *memStore) PublishEvent(ctx context.Context, event models.MatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memStore) SetPresence(ctx context.Context, sessionID, userID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if online {
		m.presence[sessionID+":"+userID] = true
	} else {
		delete(m.presence, sessionID+":"+userID)
	}
	return nil
}

func (m *memStore) GetPresence(ctx context.Context, sessionID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.presence[sessionID+":"+userID], nil
}

// sessionCount returns how many sessions were materialized.
func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// sessionFor returns the single session containing userID, if any.
func (m *memStore) sessionFor(userID string) *models.ChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, session := range m.sessions {
		if session.HasParticipant(userID) {
			copied := *session
			return &copied
		}
	}
	return nil
}
