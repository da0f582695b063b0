package models

import (
	"time"

	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
)

// OrganizationGroupLink associates a delivery group with one participating
// organization. Each link owns an independent cost/subsidy scope: cost is
// declared per link and subsidy entries accumulate against that declaration.
type OrganizationGroupLink struct {
	ID        domain.LinkID  `json:"id"`
	GroupID   domain.GroupID `json:"group_id"`
	OrgID     domain.OrgID   `json:"org_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// CostDeclaration is the total cost an organization declares for its share of
// a delivery group. One per link, updated in place.
//
// Invariant: TotalDeclaredCost >= 0.
type CostDeclaration struct {
	LinkID            domain.LinkID `json:"link_id"`
	TotalDeclaredCost domain.Money  `json:"total_declared_cost"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SubsidyEntry allocates part of the declared cost to one calendar month.
//
// Invariants:
//   - Month is 1-12 and at most one entry exists per (link, month)
//   - Amount >= 0
//   - the sum of a link's entries never exceeds its declared cost
//
// Entries are appended, never silently overwritten; replacing a month is an
// explicit delete followed by a re-creation.
type SubsidyEntry struct {
	ID        domain.EntryID `json:"id"`
	LinkID    domain.LinkID  `json:"link_id"`
	Month     time.Month     `json:"month"`
	Amount    domain.Money   `json:"amount"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewSubsidyEntry constructs a SubsidyEntry, enforcing field invariants. The
// budget and month-uniqueness rules are scoped state, validated by the ledger
// service and arbitrated by the storage constraint.
func NewSubsidyEntry(id domain.EntryID, linkID domain.LinkID, month time.Month, amount domain.Money, now time.Time) (*SubsidyEntry, error) {
	if month < time.January || month > time.December {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "month must be between 1 and 12")
	}
	if amount.IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subsidy amount cannot be negative")
	}
	return &SubsidyEntry{
		ID:        id,
		LinkID:    linkID,
		Month:     month,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}

// LinkBalance summarizes a link's ledger position.
type LinkBalance struct {
	LinkID            domain.LinkID `json:"link_id"`
	TotalDeclaredCost domain.Money  `json:"total_declared_cost"`
	TotalAllocated    domain.Money  `json:"total_allocated"`
	Remaining         domain.Money  `json:"remaining"`
}
