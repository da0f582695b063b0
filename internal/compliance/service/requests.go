package service

import (
	"strings"
	"time"

	trainingmodels "bonifica/internal/training/models"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
)

// CreateActionRequest carries the data for a new training action.
type CreateActionRequest struct {
	OwnerOrgID  domain.OrgID
	Code        string
	Title       string
	Modality    trainingmodels.Modality
	Hours       int
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// Normalize trims free-text fields.
func (r *CreateActionRequest) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
}

// Validate checks request-level constraints the model cannot see.
func (r *CreateActionRequest) Validate() error {
	if r.OwnerOrgID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "owner organization is required")
	}
	return nil
}

// SaveGroupRequest carries the data for creating or updating a delivery
// group. An empty Code on creation asks the allocator to assign one. On
// update, TrainingActionID and PropertyOrgID must match the stored group.
type SaveGroupRequest struct {
	TrainingActionID domain.ActionID
	PropertyOrgID    *domain.OrgID
	Code             string
	StartDate        time.Time
	PlannedEndDate   time.Time
	ActualEndDate    *time.Time

	ParticipantCountPlanned  int
	ParticipantCountFinished int
	PassedCount              int
	FailedCount              int
}

// Normalize trims the code.
func (r *SaveGroupRequest) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
}

// Validate checks request-level constraints.
func (r *SaveGroupRequest) Validate() error {
	if r.TrainingActionID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "training action is required")
	}
	if r.StartDate.IsZero() || r.PlannedEndDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "start and planned end dates are required")
	}
	if r.ParticipantCountPlanned < 0 {
		return dErrors.New(dErrors.CodeValidation, "planned participant count cannot be negative")
	}
	return nil
}

// RecordEntryRequest carries a monthly subsidy allocation.
type RecordEntryRequest struct {
	LinkID domain.LinkID
	Month  time.Month
	Amount domain.Money
}

// Validate checks request-level constraints.
func (r *RecordEntryRequest) Validate() error {
	if r.LinkID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "link is required")
	}
	return nil
}
