// Package service implements code allocation and temporal validation for
// training actions and delivery groups.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"bonifica/internal/training/models"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/platform/sentinel"
)

// ResponsibleResolver resolves the organization accountable to the regulator
// for a record's codes. Implemented by the hierarchy resolver.
type ResponsibleResolver interface {
	ResponsibleOrg(ctx context.Context, ownerOrgID domain.OrgID, propertyOrgID *domain.OrgID) (domain.OrgID, error)
}

// ActionStore is the training action persistence contract.
type ActionStore interface {
	Create(ctx context.Context, action *models.TrainingAction) error
	FindByID(ctx context.Context, id domain.ActionID) (*models.TrainingAction, error)
	// CodeExists reports whether another action in the responsible
	// organization's catalog already uses the code. excludeID skips the
	// action being edited.
	CodeExists(ctx context.Context, responsibleOrgID domain.OrgID, code string, excludeID domain.ActionID) (bool, error)
}

// GroupStore is the delivery group persistence contract. The scope columns
// (responsible organization, code year) are denormalized at write time so
// the database unique index can arbitrate concurrent allocation.
type GroupStore interface {
	Create(ctx context.Context, group *models.DeliveryGroup) error
	Update(ctx context.Context, group *models.DeliveryGroup) error
	FindByID(ctx context.Context, id domain.GroupID) (*models.DeliveryGroup, error)
	// ListCodesInScope returns every group code used in the
	// (responsible organization, year) scope.
	ListCodesInScope(ctx context.Context, responsibleOrgID domain.OrgID, year int) ([]string, error)
	// CodeExistsInScope reports whether the code is taken in the scope,
	// skipping excludeID.
	CodeExistsInScope(ctx context.Context, responsibleOrgID domain.OrgID, year int, code string, excludeID domain.GroupID) (bool, error)
}

// Allocator validates regulator-mandated sequential codes. In-engine checks
// are necessary but not sufficient: concurrent writers are arbitrated by the
// storage uniqueness constraints, and a persistence-time conflict is an
// expected, retryable outcome.
type Allocator struct {
	resolver ResponsibleResolver
	actions  ActionStore
	groups   GroupStore
	logger   *slog.Logger
	now      func() time.Time
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithLogger sets a logger for allocation diagnostics.
func WithLogger(logger *slog.Logger) AllocatorOption {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// WithClock sets the clock used to default the scope year. Tests inject a
// fixed time.
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *Allocator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAllocator constructs an Allocator.
func NewAllocator(resolver ResponsibleResolver, actions ActionStore, groups GroupStore, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		resolver: resolver,
		actions:  actions,
		groups:   groups,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidateActionCode checks a human-assigned training action code: non-empty
// and unused in the responsible organization's catalog. Action codes are
// catalog-wide, not year-scoped, so the same code under a different
// responsible organization is legitimate. Returns the resolved responsible
// organization for the caller to persist.
func (a *Allocator) ValidateActionCode(ctx context.Context, code string, ownerOrgID domain.OrgID, excludeID domain.ActionID) (domain.OrgID, error) {
	if code == "" {
		return domain.OrgID{}, dErrors.New(dErrors.CodeInvalidCodeFormat, "training action code cannot be empty")
	}
	responsible, err := a.resolver.ResponsibleOrg(ctx, ownerOrgID, nil)
	if err != nil {
		return domain.OrgID{}, err
	}
	taken, err := a.actions.CodeExists(ctx, responsible, code, excludeID)
	if err != nil {
		return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check action code uniqueness")
	}
	if taken {
		return domain.OrgID{}, dErrors.New(dErrors.CodeDuplicateCode, "training action code already in use").
			With("organization_id", responsible.String())
	}
	return responsible, nil
}

// SuggestGroupCode returns the smallest positive integer not yet used in the
// (responsible organization, year) scope. First-fit rather than max+1, so
// gaps left by deleted groups are reused. The year comes from the group's
// start date, defaulting to the current year when absent.
func (a *Allocator) SuggestGroupCode(ctx context.Context, actionID domain.ActionID, propertyOrgID *domain.OrgID, startDate time.Time) (string, error) {
	responsible, year, err := a.groupScope(ctx, actionID, propertyOrgID, startDate)
	if err != nil {
		return "", err
	}
	codes, err := a.groups.ListCodesInScope(ctx, responsible, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to list group codes in scope")
	}
	return firstFit(codes), nil
}

// ValidateGroupCode re-derives the responsible organization and checks the
// code against the (organization, year) scope, excluding the group being
// edited. Duplicate failures carry the conflicting scope so the submitter
// can correct the form. Code reuse across years is explicitly allowed.
func (a *Allocator) ValidateGroupCode(ctx context.Context, code string, actionID domain.ActionID, propertyOrgID *domain.OrgID, year int, excludeID domain.GroupID) (domain.OrgID, error) {
	if !isNumericCode(code) {
		return domain.OrgID{}, dErrors.New(dErrors.CodeInvalidCodeFormat, "group code must be a numeric string")
	}
	responsible, err := a.resolveResponsible(ctx, actionID, propertyOrgID)
	if err != nil {
		return domain.OrgID{}, err
	}
	taken, err := a.groups.CodeExistsInScope(ctx, responsible, year, code, excludeID)
	if err != nil {
		return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check group code uniqueness")
	}
	if taken {
		return domain.OrgID{}, dErrors.New(dErrors.CodeDuplicateCode, "group code already in use for this organization and year").
			With("organization_id", responsible.String()).
			With("year", year)
	}
	return responsible, nil
}

func (a *Allocator) groupScope(ctx context.Context, actionID domain.ActionID, propertyOrgID *domain.OrgID, startDate time.Time) (domain.OrgID, int, error) {
	responsible, err := a.resolveResponsible(ctx, actionID, propertyOrgID)
	if err != nil {
		return domain.OrgID{}, 0, err
	}
	return responsible, models.CodeScopeYear(startDate, a.now()), nil
}

func (a *Allocator) resolveResponsible(ctx context.Context, actionID domain.ActionID, propertyOrgID *domain.OrgID) (domain.OrgID, error) {
	action, err := a.actions.FindByID(ctx, actionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.OrgID{}, dErrors.New(dErrors.CodeNotFound, "training action not found")
		}
		return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load training action")
	}
	return a.resolver.ResponsibleOrg(ctx, action.OwnerOrgID, propertyOrgID)
}

// firstFit returns the smallest positive integer absent from codes, as a
// decimal string.
func firstFit(codes []string) string {
	used := make(map[int]bool, len(codes))
	for _, c := range codes {
		if n, err := strconv.Atoi(c); err == nil && n > 0 {
			used[n] = true
		}
	}
	for n := 1; ; n++ {
		if !used[n] {
			return strconv.Itoa(n)
		}
	}
}

func isNumericCode(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
