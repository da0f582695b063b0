package models

import (
	"time"

	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
)

// OrgKind places an organization in the two-level reseller hierarchy.
type OrgKind string

const (
	// OrgKindDirectClient is a top-tier organization with no managing reseller.
	OrgKindDirectClient OrgKind = "direct_client"
	// OrgKindReseller manages other organizations (its clients).
	OrgKindReseller OrgKind = "reseller"
	// OrgKindResellerClient is managed by exactly one reseller.
	OrgKindResellerClient OrgKind = "reseller_client"
)

var validKinds = map[OrgKind]bool{
	OrgKindDirectClient:   true,
	OrgKindReseller:       true,
	OrgKindResellerClient: true,
}

// IsValid checks the kind against the supported set.
func (k OrgKind) IsValid() bool { return validKinds[k] }

// ParseOrgKind constructs an OrgKind from external input.
func ParseOrgKind(s string) (OrgKind, error) {
	k := OrgKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid organization kind")
	}
	return k, nil
}

// Organization is a client of the platform: a reseller, one of a reseller's
// clients, or an independent direct client.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - A Reseller or DirectClient never has a ParentID
//   - A ResellerClient always has exactly one ParentID, referencing a Reseller
//   - ParentID is immutable once set; moving an organization between tiers is
//     an explicit re-classification, not a plain update
//
// The hierarchy is fixed at two levels. Scope resolution only ever follows a
// single parent link; if deeper nesting is required the resolver must be
// redesigned, and these invariants revisited.
type Organization struct {
	ID        domain.OrgID  `json:"id"`
	Name      string        `json:"name"`
	TaxID     string        `json:"tax_id"`
	Kind      OrgKind       `json:"kind"`
	ParentID  *domain.OrgID `json:"parent_id,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsReseller reports whether the organization manages clients.
func (o *Organization) IsReseller() bool { return o.Kind == OrgKindReseller }

// NewOrganization constructs an Organization, enforcing the hierarchy
// invariants. parentID must be non-nil exactly when kind is ResellerClient;
// the caller is responsible for checking that the referenced parent exists
// and is a Reseller (a store lookup, not a model concern).
func NewOrganization(id domain.OrgID, name, taxID string, kind OrgKind, parentID *domain.OrgID, now time.Time) (*Organization, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	if !kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid organization kind")
	}
	switch kind {
	case OrgKindResellerClient:
		if parentID == nil || parentID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "reseller client requires a parent reseller")
		}
	default:
		if parentID != nil {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "%s cannot have a parent", kind)
		}
	}
	return &Organization{
		ID:        id,
		Name:      name,
		TaxID:     taxID,
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
