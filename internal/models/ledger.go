package models

import "gorm.io/gorm"

// Ledger reasons.
const (
	LedgerReasonGenderFilter = "gender_filter"
	LedgerReasonAdminGrant   = "admin_grant"
)

// CoinTransaction is an append-only ledger row written alongside every
// balance change. Balance records the resulting balance so the ledger can be
// audited without replaying it.
type CoinTransaction struct {
	gorm.Model

	UserID    string `gorm:"index;not null"`
	Amount    int    `gorm:"not null"` // negative for deductions
	Balance   int    `gorm:"not null"` // balance after applying Amount
	Reason    string `gorm:"type:text;not null"`
	SessionID string `gorm:"index"` // session that triggered the charge, if any
}
