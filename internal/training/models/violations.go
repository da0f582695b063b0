package models

// ViolationRule identifies one temporal or count-consistency rule.
type ViolationRule string

const (
	ViolationEndNotAfterStart      ViolationRule = "planned_end_not_after_start"
	ViolationBeforeActionStart     ViolationRule = "start_before_action_period"
	ViolationAfterActionEnd        ViolationRule = "end_after_action_period"
	ViolationActualEndBeforeStart  ViolationRule = "actual_end_before_start"
	ViolationFinishedCountMismatch ViolationRule = "finished_count_mismatch"
	ViolationNegativeCount         ViolationRule = "negative_count"
)

// Violation is one broken rule. Validators collect every violation that
// applies so the caller can fix them all in a single round trip.
type Violation struct {
	Rule    ViolationRule `json:"rule"`
	Message string        `json:"message"`
}
