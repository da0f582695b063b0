package models

import (
	"time"

	"bonifica/pkg/domain"
)

// DeliveryGroup is one cohort delivering a training action. The group carries
// its own regulator code, sequential per (responsible organization, year).
//
// Invariants:
//   - SequentialCode is a purely numeric string
//   - PlannedEndDate is strictly after StartDate
//   - group dates fall inside the action's declared period when one exists
//   - once closed (ActualEndDate set), PassedCount + FailedCount equals
//     ParticipantCountFinished and all finished-state counts are >= 0
//
// All date/count rules are checked by the Validator, which reports every
// violation found rather than stopping at the first.
type DeliveryGroup struct {
	ID               domain.GroupID  `json:"id"`
	TrainingActionID domain.ActionID `json:"training_action_id"`
	PropertyOrgID    *domain.OrgID   `json:"property_org_id,omitempty"`
	ResponsibleOrgID domain.OrgID    `json:"responsible_org_id"`
	SequentialCode   string          `json:"sequential_code"`
	CodeYear         int             `json:"code_year"`
	StartDate        time.Time       `json:"start_date"`
	PlannedEndDate   time.Time       `json:"planned_end_date"`
	ActualEndDate    *time.Time      `json:"actual_end_date,omitempty"`

	ParticipantCountPlanned  int `json:"participant_count_planned"`
	ParticipantCountFinished int `json:"participant_count_finished"`
	PassedCount              int `json:"passed_count"`
	FailedCount              int `json:"failed_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsClosed reports whether the group has an actual end date.
func (g *DeliveryGroup) IsClosed() bool {
	return g.ActualEndDate != nil
}

// CodeScopeYear derives the allocation year for a group code: the start
// date's year, defaulting to the current year when no start date is set.
func CodeScopeYear(startDate time.Time, now time.Time) int {
	if startDate.IsZero() {
		return now.Year()
	}
	return startDate.Year()
}
