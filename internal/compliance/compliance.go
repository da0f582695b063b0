package compliance

import (
	hierarchysvc "bonifica/internal/hierarchy/service"
	ledgersvc "bonifica/internal/ledger/service"
	trainingsvc "bonifica/internal/training/service"

	"bonifica/internal/compliance/service"
)

// Facade exposes the compliance engine's orchestrated operations.
type Facade = service.Facade

// Option configures the facade.
type Option = service.Option

// WithLogger sets the facade logger.
var WithLogger = service.WithLogger

// WithAuditPublisher sets the audit trail publisher.
var WithAuditPublisher = service.WithAuditPublisher

// WithMetrics sets the Prometheus metrics collector.
var WithMetrics = service.WithMetrics

// CreateActionRequest carries the fields for creating a training action.
type CreateActionRequest = service.CreateActionRequest

// SaveGroupRequest carries the fields for creating or updating a delivery group.
type SaveGroupRequest = service.SaveGroupRequest

// RecordEntryRequest carries the fields for recording a subsidy entry.
type RecordEntryRequest = service.RecordEntryRequest

// New constructs the compliance facade with required dependencies.
func New(hierarchy *hierarchysvc.Resolver, allocator *trainingsvc.Allocator, ledger *ledgersvc.Service, actions trainingsvc.ActionStore, groups trainingsvc.GroupStore, opts ...Option) *Facade {
	return service.New(hierarchy, allocator, ledger, actions, groups, opts...)
}
