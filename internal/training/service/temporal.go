package service

import (
	"fmt"

	"bonifica/internal/training/models"
)

// ValidateGroupDates checks date coherence between a delivery group and its
// parent training action, and internal ordering within the group. Every
// applicable violation is reported in one pass; the input is never mutated
// and nothing is auto-corrected; the caller re-submits fixed data.
func ValidateGroupDates(group *models.DeliveryGroup, action *models.TrainingAction) []models.Violation {
	var violations []models.Violation

	if !group.PlannedEndDate.After(group.StartDate) {
		violations = append(violations, models.Violation{
			Rule:    models.ViolationEndNotAfterStart,
			Message: "planned end date must be strictly after start date",
		})
	}

	if action != nil && action.HasPeriod() {
		if group.StartDate.Before(*action.PeriodStart) {
			violations = append(violations, models.Violation{
				Rule:    models.ViolationBeforeActionStart,
				Message: "group start date precedes the training action's declared start",
			})
		}
		if group.PlannedEndDate.After(*action.PeriodEnd) {
			violations = append(violations, models.Violation{
				Rule:    models.ViolationAfterActionEnd,
				Message: "group planned end date exceeds the training action's declared end",
			})
		}
	}

	if group.IsClosed() {
		violations = append(violations, validateClosing(group)...)
	}

	return violations
}

func validateClosing(group *models.DeliveryGroup) []models.Violation {
	var violations []models.Violation

	if group.ActualEndDate.Before(group.StartDate) {
		violations = append(violations, models.Violation{
			Rule:    models.ViolationActualEndBeforeStart,
			Message: "actual end date precedes start date",
		})
	}

	counts := map[string]int{
		"finished": group.ParticipantCountFinished,
		"passed":   group.PassedCount,
		"failed":   group.FailedCount,
	}
	for _, name := range []string{"finished", "passed", "failed"} {
		if counts[name] < 0 {
			violations = append(violations, models.Violation{
				Rule:    models.ViolationNegativeCount,
				Message: fmt.Sprintf("%s participant count cannot be negative", name),
			})
		}
	}

	if group.PassedCount+group.FailedCount != group.ParticipantCountFinished {
		violations = append(violations, models.Violation{
			Rule:    models.ViolationFinishedCountMismatch,
			Message: "passed plus failed must equal finished participant count",
		})
	}

	return violations
}
