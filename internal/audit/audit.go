// Package audit defines the compliance audit trail: every mutating operation
// emits an event naming the actor, the entity touched, and the outcome.
package audit

import (
	"context"
	"time"
)

// Action names a mutating operation for the audit trail.
type Action string

const (
	ActionOrganizationCreated Action = "organization_created"
	ActionTrainingActionSaved Action = "training_action_created"
	ActionGroupCreated        Action = "group_created"
	ActionGroupUpdated        Action = "group_updated"
	ActionCostDeclared        Action = "cost_declared"
	ActionSubsidyRecorded     Action = "subsidy_entry_recorded"
	ActionSubsidyDeleted      Action = "subsidy_entry_deleted"
)

// Event is one audit trail record.
type Event struct {
	Action      Action    `json:"action"`
	ActorRole   string    `json:"actor_role"`
	ActorOrgID  string    `json:"actor_org_id,omitempty"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
}

//go:generate mockgen -source=audit.go -destination=mocks/mocks.go -package=mocks Publisher

// Publisher emits audit events. Publishing is fail-open: the business
// operation proceeds when the trail is unavailable, and failures are logged.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
