package models

import (
	"time"

	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
)

// Modality is the delivery mode of a training action.
type Modality string

const (
	ModalityOnSite  Modality = "on_site"
	ModalityRemote  Modality = "remote"
	ModalityBlended Modality = "blended"
)

var validModalities = map[Modality]bool{
	ModalityOnSite:  true,
	ModalityRemote:  true,
	ModalityBlended: true,
}

// IsValid checks the modality against the supported set.
func (m Modality) IsValid() bool { return validModalities[m] }

// ParseModality constructs a Modality from external input.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	if !m.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid modality")
	}
	return m, nil
}

// TrainingAction is an accredited course declared to the funding agency.
//
// Invariants:
//   - Hours is between 1 and 9999
//   - SequentialCode is non-empty and unique per responsible organization,
//     regardless of year (the catalog is per-reseller, not year-scoped)
//   - ResponsibleOrgID is resolved once at creation and never changes; this
//     is safe because an organization's parent link is immutable
//   - Year is derived from the creation timestamp and scopes group code
//     allocation for groups without a start date
type TrainingAction struct {
	ID               domain.ActionID `json:"id"`
	OwnerOrgID       domain.OrgID    `json:"owner_org_id"`
	ResponsibleOrgID domain.OrgID    `json:"responsible_org_id"`
	SequentialCode   string          `json:"sequential_code"`
	Title            string          `json:"title"`
	Modality         Modality        `json:"modality"`
	Hours            int             `json:"hours"`
	PeriodStart      *time.Time      `json:"period_start,omitempty"`
	PeriodEnd        *time.Time      `json:"period_end,omitempty"`
	Year             int             `json:"year"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// HasPeriod reports whether the action declares a delivery period.
func (a *TrainingAction) HasPeriod() bool {
	return a.PeriodStart != nil && a.PeriodEnd != nil
}

// NewTrainingAction constructs a TrainingAction, enforcing field invariants.
// Code uniqueness is scoped state, validated by the allocator and ultimately
// arbitrated by the storage constraint.
func NewTrainingAction(id domain.ActionID, ownerOrgID, responsibleOrgID domain.OrgID, code, title string, modality Modality, hours int, periodStart, periodEnd *time.Time, now time.Time) (*TrainingAction, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidCodeFormat, "training action code cannot be empty")
	}
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "training action title cannot be empty")
	}
	if !modality.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid modality")
	}
	if hours < 1 || hours > 9999 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "hours must be between 1 and 9999")
	}
	if (periodStart == nil) != (periodEnd == nil) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "declared period requires both start and end")
	}
	if periodStart != nil && !periodEnd.After(*periodStart) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "declared period end must be after start")
	}
	return &TrainingAction{
		ID:               id,
		OwnerOrgID:       ownerOrgID,
		ResponsibleOrgID: responsibleOrgID,
		SequentialCode:   code,
		Title:            title,
		Modality:         modality,
		Hours:            hours,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		Year:             now.Year(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}
