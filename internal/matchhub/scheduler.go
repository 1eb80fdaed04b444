package matchhub

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"unichat/backend/internal/config"
	"unichat/backend/internal/models"
	"unichat/backend/internal/storage"
)

// Scheduler terminal condition errors (precondition violations are rejected
// synchronously, before any queue write).
var (
	ErrAlreadyInSession = errors.New("user already holds an active session")
	ErrAlreadyQueued    = errors.New("user is already queued")
)

// State is a wait scheduler state.
type State int

const (
	StateIdle State = iota
	StateQueued
	StateWaiting
	StateDeciding
	StateMatched
	StateNoMatchFound
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StateWaiting:
		return "waiting"
	case StateDeciding:
		return "deciding"
	case StateMatched:
		return "matched"
	case StateNoMatchFound:
		return "no_match_found"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Searching reports whether the state is non-terminal.
func (s State) Searching() bool {
	switch s {
	case StateQueued, StateWaiting, StateDeciding:
		return true
	}
	return false
}

// Clock abstracts wall-clock reads so the scheduler is headlessly testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// MatchRequest carries the caller's parameters for one search.
type MatchRequest struct {
	UserID        string
	Gender        string
	Seeking       string
	Interests     []string
	UseCoinFilter bool
	// WaitSeconds overrides the wait budget; 0 selects the default for the
	// request's interest mix.
	WaitSeconds int
}

// Outcome is the terminal result of a scheduler run.
type Outcome struct {
	State     State
	SessionID string
}

// Scheduler is the per-user tick-driven wait state machine. Every waiting
// user runs one independently against the shared queue store; coordination
// arises purely from store reads/writes plus the deterministic tie-break.
type Scheduler struct {
	store     storage.Storage
	committer Committer
	clock     Clock

	// TickPeriod is the loop period for Run. Tests drive Tick directly or
	// shorten this.
	TickPeriod time.Duration

	entry         models.QueueEntry
	best          *Candidate // monotonic: replaced only on strictly greater score
	decidingSince time.Time

	mu    sync.Mutex
	state State
}

// NewScheduler constructs a scheduler bound to one user's search.
func NewScheduler(store storage.Storage, committer Committer, clock Clock) *Scheduler {
	return &Scheduler{
		store:      store,
		committer:  committer,
		clock:      clock,
		TickPeriod: config.TickPeriod,
		state:      StateIdle,
	}
}

// State returns the scheduler's current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Entry returns the queue entry written at enqueue time.
func (s *Scheduler) Entry() models.QueueEntry {
	return s.entry
}

// Enqueue runs the precondition checks and writes the user's own queue
// entry. It is the transition from Idle to Queued; nothing is written when any
// precondition fails.
func (s *Scheduler) Enqueue(ctx context.Context, req MatchRequest) error {
	ptr, err := s.store.GetSessionPointer(ctx, req.UserID)
	if err != nil {
		return err
	}
	if ptr != "" {
		return ErrAlreadyInSession
	}
	existing, err := s.store.GetQueueEntry(ctx, req.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyQueued
	}
	if req.UseCoinFilter {
		user, err := s.store.GetUserByID(req.UserID)
		if err != nil {
			return err
		}
		if user.Coins < config.GenderFilterCoinCost {
			return storage.ErrInsufficientFunds
		}
	}

	seeking := req.Seeking
	if seeking == "" {
		seeking = models.SeekAny
	}
	budget := waitBudget(req)
	s.entry = models.QueueEntry{
		UserID:           req.UserID,
		Gender:           req.Gender,
		Seeking:          seeking,
		Interests:        req.Interests,
		UsesGenderFilter: req.UseCoinFilter,
		QueuedAt:         s.clock.Now().UnixMilli(),
		WaitSeconds:      int(budget / time.Second),
	}
	if err := s.store.PutQueueEntry(ctx, s.entry); err != nil {
		return err
	}
	s.setState(StateQueued)
	return nil
}

func waitBudget(req MatchRequest) time.Duration {
	if req.WaitSeconds > 0 {
		budget := time.Duration(req.WaitSeconds) * time.Second
		if budget < config.MinWaitBudget {
			return config.MinWaitBudget
		}
		if budget > config.MaxWaitBudget {
			return config.MaxWaitBudget
		}
		return budget
	}
	if len(req.Interests) > 0 {
		return config.DefaultWaitWithInterests
	}
	return config.DefaultWaitWithoutInterests
}

// Run drives the tick loop until a terminal state. Cancelling the context
// deletes the entry and halts the loop.
func (s *Scheduler) Run(ctx context.Context) Outcome {
	ticker := time.NewTicker(s.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.cancel()
		case <-ticker.C:
			if outcome, done := s.Tick(ctx); done {
				return outcome
			}
		}
	}
}

func (s *Scheduler) cancel() Outcome {
	// The run context is already cancelled; the entry still has to go.
	ctx, release := context.WithTimeout(context.Background(), 5*time.Second)
	defer release()
	if err := s.store.DeleteQueueEntry(ctx, s.entry.UserID); err != nil {
		log.Printf("[SCHEDULER] Failed to delete entry for %s on cancel: %v", s.entry.UserID, err)
	}
	s.setState(StateCancelled)
	return Outcome{State: StateCancelled}
}

// Tick executes one scheduler step and reports whether a terminal state was
// reached. Transient store errors are swallowed and retried on the next
// tick; only terminal states surface.
func (s *Scheduler) Tick(ctx context.Context) (Outcome, bool) {
	now := s.clock.Now()

	// Reactive transition: if a peer already claimed us, stop immediately
	// and never initiate.
	ptr, err := s.store.GetSessionPointer(ctx, s.entry.UserID)
	if err != nil {
		log.Printf("[SCHEDULER] Session pointer read failed for %s: %v", s.entry.UserID, err)
		return Outcome{}, false
	}
	if ptr != "" {
		s.setState(StateMatched)
		return Outcome{State: StateMatched, SessionID: ptr}, true
	}

	if s.State() == StateQueued {
		s.setState(StateWaiting)
	}

	// An in-flight confirmation handshake holds this user.
	pending, err := s.committer.Pending(ctx, s.entry.UserID)
	if err != nil {
		log.Printf("[SCHEDULER] Pending check failed for %s: %v", s.entry.UserID, err)
		return Outcome{}, false
	}
	if pending {
		return Outcome{}, false
	}

	snapshot, err := s.store.QueueSnapshot(ctx)
	if err != nil {
		log.Printf("[SCHEDULER] Queue scan failed for %s: %v", s.entry.UserID, err)
		return Outcome{}, false
	}

	// Our own entry vanished without a session pointer: an external cancel
	// removed it. Halt.
	if !contains(snapshot, s.entry.UserID) {
		s.setState(StateCancelled)
		return Outcome{State: StateCancelled}, true
	}

	s.observe(snapshot, now)

	switch s.State() {
	case StateWaiting:
		return s.tickWaiting(ctx, snapshot, now)
	case StateDeciding:
		return s.tickDeciding(ctx, snapshot, now)
	}
	return Outcome{}, false
}

// observe rescans candidates and keeps bestKnown monotonic: it is replaced
// only on a strictly greater score. A best candidate that left the queue is
// dropped so commit attempts do not chase ghosts.
func (s *Scheduler) observe(snapshot []models.QueueEntry, now time.Time) {
	if s.best != nil && !contains(snapshot, s.best.Entry.UserID) {
		s.best = nil
	}
	for _, cand := range Candidates(s.entry, snapshot, now) {
		if s.best == nil || cand.Score > s.best.Score {
			best := cand
			s.best = &best
		}
	}
}

func (s *Scheduler) tickWaiting(ctx context.Context, snapshot []models.QueueEntry, now time.Time) (Outcome, bool) {
	// No-interest short-circuit: two tag-less users with no interested third
	// party worth waiting for connect immediately.
	if s.best != nil && s.noInterestImmediate(snapshot, now) {
		return s.attempt(ctx, *s.best)
	}

	// Excellent-match short-circuit: self queued first, so self has earned
	// the right to connect early to a high scorer that arrived later.
	if s.best != nil && s.best.Score > config.ExcellentMatchScore && s.best.Entry.QueuedAt > s.entry.QueuedAt {
		return s.attempt(ctx, *s.best)
	}

	// The budget is evaluated afresh at each tick, not captured at loop start.
	if s.entry.BudgetElapsed(now) {
		s.setState(StateDeciding)
		s.decidingSince = now
	}
	return Outcome{}, false
}

// noInterestImmediate holds when neither self nor the best-known candidate
// declared interests and no queued user who has interests would score above
// the rival threshold against self.
func (s *Scheduler) noInterestImmediate(snapshot []models.QueueEntry, now time.Time) bool {
	if s.entry.HasInterests() || s.best == nil || s.best.Entry.HasInterests() {
		return false
	}
	for _, entry := range snapshot {
		if entry.UserID == s.entry.UserID || !entry.HasInterests() {
			continue
		}
		if !Compatible(s.entry, entry) {
			continue
		}
		if Score(s.entry, entry, now) > config.InterestedRivalScore {
			return false
		}
	}
	return true
}

func (s *Scheduler) tickDeciding(ctx context.Context, snapshot []models.QueueEntry, now time.Time) (Outcome, bool) {
	// The excellent-match short-circuit keeps applying while deciding.
	if s.best != nil && s.best.Score > config.ExcellentMatchScore && s.best.Entry.QueuedAt > s.entry.QueuedAt {
		return s.attempt(ctx, *s.best)
	}

	var pick *Candidate
	for _, cand := range Candidates(s.entry, snapshot, now) {
		if !s.eligibleNow(cand.Entry, now) {
			continue
		}
		if pick == nil || cand.Score > pick.Score {
			chosen := cand
			pick = &chosen
		}
	}
	if pick != nil {
		return s.attempt(ctx, *pick)
	}

	if now.Sub(s.decidingSince) >= config.DecisionGracePeriod {
		if err := s.store.DeleteQueueEntry(ctx, s.entry.UserID); err != nil {
			log.Printf("[SCHEDULER] Failed to delete entry for %s: %v", s.entry.UserID, err)
			return Outcome{}, false
		}
		s.setState(StateNoMatchFound)
		return Outcome{State: StateNoMatchFound}, true
	}
	return Outcome{}, false
}

// eligibleNow protects a candidate's own wait window, the core fairness
// invariant: a deciding party may claim a candidate only if the candidate is
// an instant acceptor (no interests), its own budget has elapsed too, or it
// shares a specific interest with self and self queued first. Ineligible
// candidates are skipped even when they score highest.
func (s *Scheduler) eligibleNow(cand models.QueueEntry, now time.Time) bool {
	if !cand.HasInterests() {
		return true
	}
	if cand.BudgetElapsed(now) {
		return true
	}
	return len(SharedInterests(s.entry, cand)) > 0 && s.entry.QueuedAt < cand.QueuedAt
}

// attempt runs the tie-break against the chosen candidate and commits when
// self initiates. Resolution is observed through the session pointer for
// both commit variants; a conflict is a race loss, treated as "no candidate
// this tick".
func (s *Scheduler) attempt(ctx context.Context, cand Candidate) (Outcome, bool) {
	if !Initiates(s.entry.QueuedAt, cand.Entry.QueuedAt, s.entry.UserID, cand.Entry.UserID) {
		// The peer initiates; stay put and expect the reactive transition.
		return Outcome{}, false
	}

	err := s.committer.Commit(ctx, s.entry, cand.Entry, cand.Score)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrCommitConflict):
		s.best = nil // candidate claimed or vanished; rescan next tick
		return Outcome{}, false
	default:
		log.Printf("[SCHEDULER] Commit failed for %s: %v", s.entry.UserID, err)
		return Outcome{}, false
	}

	// A direct commit sets the pointer synchronously; observe it now rather
	// than burning another tick. Under the gate the pointer stays empty
	// until both sides confirm.
	ptr, err := s.store.GetSessionPointer(ctx, s.entry.UserID)
	if err == nil && ptr != "" {
		s.setState(StateMatched)
		return Outcome{State: StateMatched, SessionID: ptr}, true
	}
	return Outcome{}, false
}
