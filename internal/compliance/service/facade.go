// Package service implements the compliance facade: the single entry point
// external callers use to create training actions, delivery groups, and
// subsidy entries. The facade sequences permission checks, code allocation,
// temporal validation, and ledger validation, and is the only place that
// decides whether a persistence-time conflict is retried or surfaced.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bonifica/internal/audit"
	"bonifica/internal/compliance/metrics"
	hierarchysvc "bonifica/internal/hierarchy/service"
	ledgermodels "bonifica/internal/ledger/models"
	ledgersvc "bonifica/internal/ledger/service"
	trainingmodels "bonifica/internal/training/models"
	trainingsvc "bonifica/internal/training/service"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/platform/sentinel"
	"bonifica/pkg/requestcontext"
)

// maxCodeAllocationAttempts bounds first-fit retries when a concurrent writer
// takes a suggested group code before our insert lands.
const maxCodeAllocationAttempts = 3

// Facade orchestrates the compliance engine. Any validation failure aborts
// the whole operation; no partial writes.
type Facade struct {
	hierarchy *hierarchysvc.Resolver
	allocator *trainingsvc.Allocator
	ledger    *ledgersvc.Service
	actions   trainingsvc.ActionStore
	groups    trainingsvc.GroupStore

	publisher audit.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the facade logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Facade) {
		f.logger = logger
	}
}

// WithAuditPublisher sets the audit trail publisher.
func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(f *Facade) {
		f.publisher = publisher
	}
}

// WithMetrics sets the Prometheus metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Facade) {
		f.metrics = m
	}
}

// WithClock sets the clock; tests inject a fixed time.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

// New constructs the compliance facade.
func New(hierarchy *hierarchysvc.Resolver, allocator *trainingsvc.Allocator, ledger *ledgersvc.Service, actions trainingsvc.ActionStore, groups trainingsvc.GroupStore, opts ...Option) *Facade {
	f := &Facade{
		hierarchy: hierarchy,
		allocator: allocator,
		ledger:    ledger,
		actions:   actions,
		groups:    groups,
		tracer:    otel.Tracer("bonifica/compliance"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateTrainingAction validates permissions and code uniqueness, then
// persists a new training action. The action code is human-assigned; a
// persistence-time conflict means another submitter took it and the caller
// must pick a different code.
func (f *Facade) CreateTrainingAction(ctx context.Context, actor domain.Actor, req CreateActionRequest) (*trainingmodels.TrainingAction, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.CreateTrainingAction")
	defer span.End()
	start := f.now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, req.OwnerOrgID); err != nil {
		return nil, err
	}

	responsible, err := f.allocator.ValidateActionCode(ctx, req.Code, req.OwnerOrgID, domain.ActionID{})
	if err != nil {
		return nil, err
	}

	action, err := trainingmodels.NewTrainingAction(
		domain.NewActionID(), req.OwnerOrgID, responsible,
		req.Code, req.Title, req.Modality, req.Hours,
		req.PeriodStart, req.PeriodEnd, f.now(),
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := f.actions.Create(ctx, action); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateCode, "training action code already in use").
				With("organization_id", responsible.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist training action")
	}

	f.emit(ctx, actor, audit.ActionTrainingActionSaved, "training_action", action.ID.String())
	if f.metrics != nil {
		f.metrics.ActionsCreated.Inc()
		f.metrics.ObserveCreateAction(start)
	}
	return action, nil
}

// CreateGroup validates permissions, allocates or validates the group code,
// checks date coherence, then persists. When the code was auto-allocated a
// storage conflict re-runs first-fit, bounded by maxCodeAllocationAttempts;
// a submitter-chosen code conflicting at persistence time surfaces as a
// duplicate for correction.
func (f *Facade) CreateGroup(ctx context.Context, actor domain.Actor, req SaveGroupRequest) (*trainingmodels.DeliveryGroup, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.CreateGroup")
	defer span.End()
	start := f.now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	action, err := f.loadAction(ctx, req.TrainingActionID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, groupTargetOrg(req.PropertyOrgID, action)); err != nil {
		return nil, err
	}

	autoAssign := req.Code == ""
	year := trainingmodels.CodeScopeYear(req.StartDate, f.now())

	for attempt := 1; ; attempt++ {
		code := req.Code
		if autoAssign {
			code, err = f.allocator.SuggestGroupCode(ctx, req.TrainingActionID, req.PropertyOrgID, req.StartDate)
			if err != nil {
				return nil, err
			}
		}

		responsible, err := f.allocator.ValidateGroupCode(ctx, code, req.TrainingActionID, req.PropertyOrgID, year, domain.GroupID{})
		if err != nil {
			return nil, err
		}

		group := f.buildGroup(req, code, year, responsible)
		if violations := trainingsvc.ValidateGroupDates(group, action); len(violations) > 0 {
			return nil, violationsError(violations)
		}

		err = f.groups.Create(ctx, group)
		if err == nil {
			f.emit(ctx, actor, audit.ActionGroupCreated, "delivery_group", group.ID.String())
			if f.metrics != nil {
				f.metrics.GroupsCreated.Inc()
				f.metrics.ObserveSaveGroup(start)
			}
			return group, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist delivery group")
		}

		// The storage constraint is the true arbiter: a conflict here means
		// a concurrent writer won the scope between validation and write.
		if !autoAssign {
			return nil, dErrors.New(dErrors.CodeDuplicateCode, "group code already in use for this organization and year").
				With("organization_id", responsible.String()).
				With("year", year)
		}
		if attempt >= maxCodeAllocationAttempts {
			return nil, dErrors.New(dErrors.CodeStorageConflict, "group code allocation kept conflicting; retry the operation").
				With("organization_id", responsible.String()).
				With("year", year)
		}
		if f.metrics != nil {
			f.metrics.CodeConflictRetries.Inc()
		}
		if f.logger != nil {
			f.logger.WarnContext(ctx, "group code conflicted, reallocating",
				"attempt", attempt,
				"year", year,
			)
		}
	}
}

// UpdateGroup applies changes to an existing group under the same permission,
// code, and temporal rules as creation. The group being edited is excluded
// from its own uniqueness scan.
func (f *Facade) UpdateGroup(ctx context.Context, actor domain.Actor, groupID domain.GroupID, req SaveGroupRequest) (*trainingmodels.DeliveryGroup, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.UpdateGroup")
	defer span.End()
	start := f.now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "group code is required on update")
	}

	existing, err := f.groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delivery group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delivery group")
	}
	if req.TrainingActionID != existing.TrainingActionID {
		return nil, dErrors.New(dErrors.CodeValidation, "a group cannot move to a different training action")
	}
	if !sameOrg(req.PropertyOrgID, existing.PropertyOrgID) {
		return nil, dErrors.New(dErrors.CodeValidation, "a group's property organization cannot change")
	}

	action, err := f.loadAction(ctx, existing.TrainingActionID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, groupTargetOrg(existing.PropertyOrgID, action)); err != nil {
		return nil, err
	}

	year := trainingmodels.CodeScopeYear(req.StartDate, f.now())
	responsible, err := f.allocator.ValidateGroupCode(ctx, req.Code, existing.TrainingActionID, existing.PropertyOrgID, year, groupID)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.SequentialCode = req.Code
	updated.CodeYear = year
	updated.ResponsibleOrgID = responsible
	updated.StartDate = req.StartDate
	updated.PlannedEndDate = req.PlannedEndDate
	updated.ActualEndDate = req.ActualEndDate
	updated.ParticipantCountPlanned = req.ParticipantCountPlanned
	updated.ParticipantCountFinished = req.ParticipantCountFinished
	updated.PassedCount = req.PassedCount
	updated.FailedCount = req.FailedCount
	updated.UpdatedAt = f.now()

	if violations := trainingsvc.ValidateGroupDates(&updated, action); len(violations) > 0 {
		return nil, violationsError(violations)
	}

	if err := f.groups.Update(ctx, &updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateCode, "group code already in use for this organization and year").
				With("organization_id", responsible.String()).
				With("year", year)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update delivery group")
	}

	f.emit(ctx, actor, audit.ActionGroupUpdated, "delivery_group", groupID.String())
	if f.metrics != nil {
		f.metrics.ObserveSaveGroup(start)
	}
	return &updated, nil
}

// SuggestGroupCode returns the next free first-fit code for a new group
// under the action, for pre-filling forms. The suggestion is advisory; the
// storage constraint still arbitrates at creation time.
func (f *Facade) SuggestGroupCode(ctx context.Context, actor domain.Actor, actionID domain.ActionID, propertyOrgID *domain.OrgID, startDate time.Time) (string, error) {
	action, err := f.loadAction(ctx, actionID)
	if err != nil {
		return "", err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, groupTargetOrg(propertyOrgID, action)); err != nil {
		return "", err
	}
	return f.allocator.SuggestGroupCode(ctx, actionID, propertyOrgID, startDate)
}

// CreateLink associates an organization with a delivery group, opening its
// cost/subsidy scope.
func (f *Facade) CreateLink(ctx context.Context, actor domain.Actor, groupID domain.GroupID, orgID domain.OrgID) (*ledgermodels.OrganizationGroupLink, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.CreateLink")
	defer span.End()

	if err := f.hierarchy.RequireAct(ctx, actor, orgID); err != nil {
		return nil, err
	}
	if _, err := f.groups.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delivery group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delivery group")
	}
	return f.ledger.CreateLink(ctx, groupID, orgID)
}

// DeclareCost sets the declared cost for a link after a permission check
// against the link's organization.
func (f *Facade) DeclareCost(ctx context.Context, actor domain.Actor, linkID domain.LinkID, total domain.Money) (*ledgermodels.CostDeclaration, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.DeclareCost")
	defer span.End()

	link, err := f.ledger.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, link.OrgID); err != nil {
		return nil, err
	}
	cost, err := f.ledger.DeclareCost(ctx, linkID, total)
	if err != nil {
		return nil, err
	}
	f.emit(ctx, actor, audit.ActionCostDeclared, "link", linkID.String())
	return cost, nil
}

// RecordSubsidyEntry validates permissions and the ledger invariant, then
// persists a monthly allocation. The ledger re-validates immediately before
// the write and the storage constraint backs it up.
func (f *Facade) RecordSubsidyEntry(ctx context.Context, actor domain.Actor, req RecordEntryRequest) (*ledgermodels.SubsidyEntry, error) {
	ctx, span := f.tracer.Start(ctx, "compliance.RecordSubsidyEntry")
	defer span.End()
	start := f.now()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	link, err := f.ledger.GetLink(ctx, req.LinkID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, link.OrgID); err != nil {
		return nil, err
	}

	entry, err := f.ledger.RecordEntry(ctx, req.LinkID, req.Month, req.Amount)
	if err != nil {
		return nil, err
	}

	f.emit(ctx, actor, audit.ActionSubsidyRecorded, "subsidy_entry", entry.ID.String())
	if f.metrics != nil {
		f.metrics.SubsidyRecorded.Inc()
		f.metrics.ObserveRecordEntry(start)
	}
	return entry, nil
}

// DeleteSubsidyEntry removes an entry, freeing its month. Overwriting a
// month is always this explicit delete followed by a re-creation.
func (f *Facade) DeleteSubsidyEntry(ctx context.Context, actor domain.Actor, entryID domain.EntryID) error {
	ctx, span := f.tracer.Start(ctx, "compliance.DeleteSubsidyEntry")
	defer span.End()

	entry, err := f.ledger.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	link, err := f.ledger.GetLink(ctx, entry.LinkID)
	if err != nil {
		return err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, link.OrgID); err != nil {
		return err
	}
	if err := f.ledger.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	f.emit(ctx, actor, audit.ActionSubsidyDeleted, "subsidy_entry", entryID.String())
	return nil
}

// LinkBalance reports the ledger position for a link the actor may see.
func (f *Facade) LinkBalance(ctx context.Context, actor domain.Actor, linkID domain.LinkID) (*ledgermodels.LinkBalance, error) {
	link, err := f.ledger.GetLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, link.OrgID); err != nil {
		return nil, err
	}
	return f.ledger.Balance(ctx, linkID)
}

// GetTrainingAction loads an action the actor may see.
func (f *Facade) GetTrainingAction(ctx context.Context, actor domain.Actor, id domain.ActionID) (*trainingmodels.TrainingAction, error) {
	action, err := f.loadAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, action.OwnerOrgID); err != nil {
		return nil, err
	}
	return action, nil
}

// GetGroup loads a group the actor may see.
func (f *Facade) GetGroup(ctx context.Context, actor domain.Actor, id domain.GroupID) (*trainingmodels.DeliveryGroup, error) {
	group, err := f.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "delivery group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load delivery group")
	}
	action, err := f.loadAction(ctx, group.TrainingActionID)
	if err != nil {
		return nil, err
	}
	if err := f.hierarchy.RequireAct(ctx, actor, groupTargetOrg(group.PropertyOrgID, action)); err != nil {
		return nil, err
	}
	return group, nil
}

func (f *Facade) loadAction(ctx context.Context, id domain.ActionID) (*trainingmodels.TrainingAction, error) {
	action, err := f.actions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "training action not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load training action")
	}
	return action, nil
}

func (f *Facade) buildGroup(req SaveGroupRequest, code string, year int, responsible domain.OrgID) *trainingmodels.DeliveryGroup {
	now := f.now()
	return &trainingmodels.DeliveryGroup{
		ID:                       domain.NewGroupID(),
		TrainingActionID:         req.TrainingActionID,
		PropertyOrgID:            req.PropertyOrgID,
		ResponsibleOrgID:         responsible,
		SequentialCode:           code,
		CodeYear:                 year,
		StartDate:                req.StartDate,
		PlannedEndDate:           req.PlannedEndDate,
		ActualEndDate:            req.ActualEndDate,
		ParticipantCountPlanned:  req.ParticipantCountPlanned,
		ParticipantCountFinished: req.ParticipantCountFinished,
		PassedCount:              req.PassedCount,
		FailedCount:              req.FailedCount,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

func (f *Facade) emit(ctx context.Context, actor domain.Actor, action audit.Action, entityType, entityID string) {
	event := audit.Event{
		Action:     action,
		ActorRole:  string(actor.Role),
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  f.now(),
	}
	if !actor.OrgID.IsNil() {
		event.ActorOrgID = actor.OrgID.String()
	}
	if f.logger != nil {
		f.logger.InfoContext(ctx, string(action),
			"entity_type", entityType,
			"entity_id", entityID,
			"actor_role", actor.Role,
			"log_type", "audit",
		)
	}
	if f.publisher == nil {
		return
	}
	if err := f.publisher.Emit(ctx, event); err != nil && f.logger != nil {
		f.logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
}

// groupTargetOrg is the organization a permission check for a group runs
// against: the commercial property organization when set, else the action's
// owner.
func groupTargetOrg(propertyOrgID *domain.OrgID, action *trainingmodels.TrainingAction) domain.OrgID {
	if propertyOrgID != nil && !propertyOrgID.IsNil() {
		return *propertyOrgID
	}
	return action.OwnerOrgID
}

// sameOrg reports whether two optional org references point at the same
// organization. Property organizations are fixed at group creation.
func sameOrg(a, b *domain.OrgID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func violationsError(violations []trainingmodels.Violation) error {
	return dErrors.New(dErrors.CodeValidation, "group dates are inconsistent").
		With("violations", violations)
}
