package matchhub_test

import (
	"context"
	"time"

	"unichat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of the storage.Storage interface, used where
// a test needs to script individual store calls instead of running against
// the in-memory store.
type MockStorage struct {
	mock.Mock
}

// Queue operations
func (m *MockStorage) PutQueueEntry(ctx context.Context, entry models.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) GetQueueEntry(ctx context.Context, userID string) (*models.QueueEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

func (m *MockStorage) DeleteQueueEntry(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockStorage) QueueSnapshot(ctx context.Context) ([]models.QueueEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.QueueEntry), args.Error(1)
}

// Session pointers
func (m *MockStorage) GetSessionPointer(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) ClearSessionPointer(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// Commit
func (m *MockStorage) CommitMatch(ctx context.Context, session *models.ChatSession, a, b models.QueueEntry) error {
	args := m.Called(ctx, session, a, b)
	return args.Error(0)
}

func (m *MockStorage) ReconcilePending(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// User operations
func (m *MockStorage) GetUserByID(userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) AdjustCoins(userID string, delta int, reason string) (*models.User, error) {
	args := m.Called(userID, delta, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// Session operations
func (m *MockStorage) GetSessionByID(sessionID string) (*models.ChatSession, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) CloseSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// Proposal operations
func (m *MockStorage) SaveProposal(p *models.MatchProposal) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStorage) GetProposalByID(id string) (*models.MatchProposal, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchProposal), args.Error(1)
}

func (m *MockStorage) ConfirmProposalSide(proposalID, userID string) (*models.MatchProposal, error) {
	args := m.Called(proposalID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchProposal), args.Error(1)
}

func (m *MockStorage) GetActiveProposalForUser(userID string, now time.Time) (*models.MatchProposal, error) {
	args := m.Called(userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MatchProposal), args.Error(1)
}

func (m *MockStorage) ExpireProposals(now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

// Events and presence
func (m *MockStorage) PublishEvent(ctx context.Context, event models.MatchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStorage) SetPresence(ctx context.Context, sessionID, userID string, online bool) error {
	args := m.Called(ctx, sessionID, userID, online)
	return args.Error(0)
}

func (m *MockStorage) GetPresence(ctx context.Context, sessionID, userID string) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

// mockClient is a lightweight hub client capturing delivered events.
type mockClient struct {
	userID string
	locale string
	send   chan models.MatchEvent
	closed bool
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		locale: "en",
		send:   make(chan models.MatchEvent, 8),
	}
}

func (c *mockClient) GetUserID() string { return c.userID }

func (c *mockClient) GetLocale() string { return c.locale }

func (c *mockClient) GetSendChannel() chan<- models.MatchEvent { return c.send }

func (c *mockClient) Run() {}

func (c *mockClient) Close() { c.closed = true }
