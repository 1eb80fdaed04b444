package matchhub

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"unichat/backend/internal/localization"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"
)

// ManagerService is the hub: it owns the connected clients, runs one wait
// scheduler per searching user and fans match events out to whichever
// instance holds the recipient's connection.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client

	Storage   storage.Storage
	Committer Committer
	Clock     Clock
	Localizer *localization.Localizer

	// Gate is set only when the confirmation handshake is enabled; it is
	// then the same object as Committer.
	Gate *ProposalGate

	mu         sync.Mutex
	clients    map[string]Client
	schedulers map[string]*schedulerRun
}

type schedulerRun struct {
	sched  *Scheduler
	cancel context.CancelFunc
}

// NewManagerService constructs the hub.
func NewManagerService(s storage.Storage, committer Committer, clock Clock, loc *localization.Localizer) *ManagerService {
	return &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Storage:      s,
		Committer:    committer,
		Clock:        clock,
		Localizer:    loc,
		clients:      make(map[string]Client),
		schedulers:   make(map[string]*schedulerRun),
	}
}

// Run is the hub dispatch loop handling client registration.
func (m *ManagerService) Run() {
	log.Println("Match hub started.")
	for {
		select {
		case client := <-m.RegisterCh:
			m.mu.Lock()
			if old, ok := m.clients[client.GetUserID()]; ok {
				old.Close()
			}
			m.clients[client.GetUserID()] = client
			m.mu.Unlock()
			client.Run()
			go m.trackPresence(client.GetUserID(), true)

		case client := <-m.UnregisterCh:
			m.mu.Lock()
			if current, ok := m.clients[client.GetUserID()]; ok && current == client {
				delete(m.clients, client.GetUserID())
				current.Close()
			}
			m.mu.Unlock()
			go m.trackPresence(client.GetUserID(), false)
		}
	}
}

// trackPresence flips the user's presence flag for their active session, if
// they hold one.
func (m *ManagerService) trackPresence(userID string, online bool) {
	ctx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	ptr, err := m.Storage.GetSessionPointer(ctx, userID)
	if err != nil || ptr == "" {
		return
	}
	if err := m.Storage.SetPresence(ctx, ptr, userID, online); err != nil {
		log.Printf("[HUB] Failed to update presence for %s: %v", userID, err)
	}
}

// StartMatch validates preconditions, writes the queue entry and spawns the
// caller's scheduler loop. The terminal outcome reaches the caller as a
// match event; this call only reports precondition violations.
func (m *ManagerService) StartMatch(ctx context.Context, req MatchRequest) error {
	sched := NewScheduler(m.Storage, m.Committer, m.Clock)
	runCtx, cancel := context.WithCancel(context.Background())

	// Reserve the user's slot before the slow enqueue so a concurrent
	// start cannot slip past the duplicate check and spawn a second loop.
	m.mu.Lock()
	if _, searching := m.schedulers[req.UserID]; searching {
		m.mu.Unlock()
		cancel()
		return ErrAlreadyQueued
	}
	m.schedulers[req.UserID] = &schedulerRun{sched: sched, cancel: cancel}
	m.mu.Unlock()

	if err := sched.Enqueue(ctx, req); err != nil {
		m.mu.Lock()
		delete(m.schedulers, req.UserID)
		m.mu.Unlock()
		cancel()
		return err
	}

	go m.runScheduler(runCtx, req.UserID, sched)

	m.publish(models.MatchEvent{Type: models.EventSearching, UserID: req.UserID})
	return nil
}

func (m *ManagerService) runScheduler(ctx context.Context, userID string, sched *Scheduler) {
	outcome := sched.Run(ctx)

	m.mu.Lock()
	if run, ok := m.schedulers[userID]; ok && run.sched == sched {
		delete(m.schedulers, userID)
	}
	m.mu.Unlock()

	evt := models.MatchEvent{UserID: userID}
	switch outcome.State {
	case StateMatched:
		evt.Type = models.EventMatchFound
		evt.SessionID = outcome.SessionID
	case StateNoMatchFound:
		evt.Type = models.EventNoMatch
	case StateCancelled:
		evt.Type = models.EventCancelled
	default:
		return
	}
	log.Printf("[HUB] Search for %s finished: %s", userID, outcome.State)
	m.publish(evt)
}

// CancelMatch stops the user's scheduler, which deletes the queue entry.
// Cancelling a user who is not searching deletes any orphaned entry and is
// otherwise a no-op. Coins are never reserved before materialization, so
// there is nothing to refund here.
func (m *ManagerService) CancelMatch(ctx context.Context, userID string) {
	m.mu.Lock()
	run, ok := m.schedulers[userID]
	m.mu.Unlock()
	if ok {
		run.cancel()
		return
	}
	if err := m.Storage.DeleteQueueEntry(ctx, userID); err != nil {
		log.Printf("[HUB] Failed to delete orphaned entry for %s: %v", userID, err)
	}
}

// SearchState reports the state of the user's running scheduler, if any.
func (m *ManagerService) SearchState(userID string) (State, bool) {
	m.mu.Lock()
	run, ok := m.schedulers[userID]
	m.mu.Unlock()
	if !ok {
		return StateIdle, false
	}
	return run.sched.State(), true
}

// HandleCommand processes an inbound client command from the websocket.
func (m *ManagerService) HandleCommand(ctx context.Context, userID string, cmd clientCommand) {
	switch cmd.Action {
	case "cancel_search":
		m.CancelMatch(ctx, userID)
	case "confirm":
		if m.Gate == nil {
			return
		}
		if _, err := m.Gate.Confirm(ctx, cmd.ProposalID, userID); err != nil && !errors.Is(err, ErrProposalClosed) {
			log.Printf("[HUB] Confirm from %s failed: %v", userID, err)
		}
	case "decline":
		if m.Gate == nil {
			return
		}
		if err := m.Gate.Decline(ctx, cmd.ProposalID, userID); err != nil && !errors.Is(err, ErrProposalClosed) {
			log.Printf("[HUB] Decline from %s failed: %v", userID, err)
		}
	default:
		log.Printf("[HUB] Unknown command %q from %s", cmd.Action, userID)
	}
}

// publish sends the event through Redis Pub/Sub so it reaches the recipient
// on any instance; if the broker is unavailable the event is delivered to a
// locally connected client as a fallback.
func (m *ManagerService) publish(evt models.MatchEvent) {
	if err := m.Storage.PublishEvent(context.Background(), evt); err != nil {
		log.Printf("[HUB] Publish failed, delivering locally: %v", err)
		m.Deliver(evt)
	}
}

// Deliver pushes an event into the recipient's Send channel if the recipient
// is connected to this instance. The status line is localized per client; a
// client whose send buffer is full is disconnected.
func (m *ManagerService) Deliver(evt models.MatchEvent) {
	m.mu.Lock()
	client, ok := m.clients[evt.UserID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if m.Localizer != nil && evt.Content == "" {
		evt.Content = m.Localizer.GetString(client.GetLocale(), "status."+evt.Type)
	}
	select {
	case client.GetSendChannel() <- evt:
	default:
		log.Printf("[HUB] Client %s send buffer full, disconnecting", evt.UserID)
		m.UnregisterCh <- client
	}
}
