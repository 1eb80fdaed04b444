package config

import "time"

const (
	// Scoring
	SharedInterestBase     = 150.0
	SharedInterestStep     = 50.0
	BothInterestedScore    = 100.0
	GenderMatchScore       = 30.0
	CompatibleScore        = 10.0
	GenderFilterBonus      = 20.0
	ExcellentMatchScore    = 80.0
	InterestedRivalScore   = 50.0
	GenderFilterCoinCost   = 1

	// Wait budgets
	DefaultWaitWithInterests    = 30 * time.Second
	DefaultWaitWithoutInterests = 60 * time.Second
	MinWaitBudget               = 15 * time.Second
	MaxWaitBudget               = 60 * time.Second

	// Scheduler
	TickPeriod          = 1 * time.Second
	DecisionGracePeriod = 10 * time.Second

	// Confirmation gate
	ProposalExpiry      = 15 * time.Second
	ProposalSweepPeriod = 5 * time.Second

	// Materializer reconciliation
	PendingCommitGrace   = 60 * time.Second
	ReconcileSweepPeriod = 30 * time.Second
)
