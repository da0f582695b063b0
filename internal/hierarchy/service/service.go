package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"bonifica/internal/hierarchy/models"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/platform/sentinel"
)

// OrganizationStore is the persistence contract the resolver needs. Stores
// return sentinel errors; this service translates them into domain errors.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, id domain.OrgID) (*models.Organization, error)
	ListByParent(ctx context.Context, parentID domain.OrgID) ([]*models.Organization, error)
	ListAll(ctx context.Context) ([]*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
}

// Resolver computes which organizations an actor may act upon and which
// organization is held accountable to the regulator for a given record.
// It is the single place that understands the two-level reseller hierarchy;
// callers must route every permission check through it instead of comparing
// organization ids ad hoc.
type Resolver struct {
	orgs   OrganizationStore
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a logger for scope-resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New constructs a Resolver.
func New(orgs OrganizationStore, opts ...Option) *Resolver {
	r := &Resolver{orgs: orgs}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveScope computes the set of organization ids the actor may act upon.
//
// Platform admins see everything. An organization manager sees its home
// organization plus every organization whose parent is that home organization
// (a reseller manager sees its clients; a client or direct-client manager
// sees only itself since nothing points at it). Any other role resolves to
// the empty set.
func (r *Resolver) ResolveScope(ctx context.Context, actor domain.Actor) ([]domain.OrgID, error) {
	switch actor.Role {
	case domain.RolePlatformAdmin:
		all, err := r.orgs.ListAll(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list organizations")
		}
		scope := make([]domain.OrgID, 0, len(all))
		for _, org := range all {
			scope = append(scope, org.ID)
		}
		return scope, nil

	case domain.RoleOrgManager:
		if actor.OrgID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "organization manager has no home organization")
		}
		children, err := r.orgs.ListByParent(ctx, actor.OrgID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list managed organizations")
		}
		scope := make([]domain.OrgID, 0, len(children)+1)
		scope = append(scope, actor.OrgID)
		for _, org := range children {
			scope = append(scope, org.ID)
		}
		return scope, nil

	default:
		return nil, nil
	}
}

// CanAct reports whether targetOrgID is inside the actor's scope.
func (r *Resolver) CanAct(ctx context.Context, actor domain.Actor, targetOrgID domain.OrgID) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	scope, err := r.ResolveScope(ctx, actor)
	if err != nil {
		return false, err
	}
	for _, id := range scope {
		if id == targetOrgID {
			return true, nil
		}
	}
	return false, nil
}

// RequireAct fails with CodePermissionDenied when the target organization is
// outside the actor's scope. Every mutating operation calls this before
// touching storage; denial is total, never a silent narrowing.
func (r *Resolver) RequireAct(ctx context.Context, actor domain.Actor, targetOrgID domain.OrgID) error {
	ok, err := r.CanAct(ctx, actor, targetOrgID)
	if err != nil {
		return err
	}
	if !ok {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "permission denied",
				"actor_org_id", actor.OrgID,
				"actor_role", actor.Role,
				"target_org_id", targetOrgID,
			)
		}
		return dErrors.New(dErrors.CodePermissionDenied, "actor may not act on this organization").
			With("organization_id", targetOrgID.String())
	}
	return nil
}

// ResponsibleOrg resolves the organization accountable to the regulator for
// codes minted under the given owner:
//
//   - owner is a reseller: the reseller itself
//   - owner is a reseller client: its parent reseller; a missing or dangling
//     parent is a data-integrity error, never silently defaulted
//   - owner is a direct client: the commercial property organization when one
//     resolves, else the owner itself
func (r *Resolver) ResponsibleOrg(ctx context.Context, ownerOrgID domain.OrgID, propertyOrgID *domain.OrgID) (domain.OrgID, error) {
	owner, err := r.orgs.FindByID(ctx, ownerOrgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.OrgID{}, dErrors.New(dErrors.CodeNotFound, "owner organization not found")
		}
		return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load owner organization")
	}

	switch owner.Kind {
	case models.OrgKindReseller:
		return owner.ID, nil

	case models.OrgKindResellerClient:
		if owner.ParentID == nil || owner.ParentID.IsNil() {
			return domain.OrgID{}, dErrors.New(dErrors.CodeOrphanedResellerClient, "reseller client has no parent reseller").
				With("organization_id", owner.ID.String())
		}
		parent, err := r.orgs.FindByID(ctx, *owner.ParentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return domain.OrgID{}, dErrors.New(dErrors.CodeOrphanedResellerClient, "parent reseller does not resolve").
					With("organization_id", owner.ID.String())
			}
			return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent reseller")
		}
		return parent.ID, nil

	default: // direct client
		if propertyOrgID != nil && !propertyOrgID.IsNil() {
			if _, err := r.orgs.FindByID(ctx, *propertyOrgID); err == nil {
				return *propertyOrgID, nil
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return domain.OrgID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load property organization")
			}
			// Unresolvable property org falls back to the owner.
		}
		return owner.ID, nil
	}
}

// CreateOrganization registers an organization. Platform admins may create
// any kind; a reseller's manager may only create clients under itself.
func (r *Resolver) CreateOrganization(ctx context.Context, actor domain.Actor, name, taxID string, kind models.OrgKind, parentID *domain.OrgID) (*models.Organization, error) {
	name = strings.TrimSpace(name)
	taxID = strings.TrimSpace(taxID)

	if !actor.IsAdmin() {
		if actor.Role != domain.RoleOrgManager || kind != models.OrgKindResellerClient ||
			parentID == nil || *parentID != actor.OrgID {
			return nil, dErrors.New(dErrors.CodePermissionDenied, "actor may not create this organization")
		}
	}

	if parentID != nil {
		parent, err := r.orgs.FindByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "parent organization not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent organization")
		}
		if !parent.IsReseller() {
			return nil, dErrors.New(dErrors.CodeValidation, "parent organization must be a reseller")
		}
	}

	org, err := models.NewOrganization(domain.NewOrgID(), name, taxID, kind, parentID, time.Now())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := r.orgs.Create(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create organization")
	}

	if r.logger != nil {
		r.logger.InfoContext(ctx, "organization created",
			"org_id", org.ID,
			"kind", org.Kind,
			"log_type", "audit",
		)
	}
	return org, nil
}

// GetOrganization fetches an organization the actor is allowed to see.
func (r *Resolver) GetOrganization(ctx context.Context, actor domain.Actor, id domain.OrgID) (*models.Organization, error) {
	if err := r.RequireAct(ctx, actor, id); err != nil {
		return nil, err
	}
	org, err := r.orgs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}
	return org, nil
}

// ListManaged returns every organization inside the actor's scope.
func (r *Resolver) ListManaged(ctx context.Context, actor domain.Actor) ([]*models.Organization, error) {
	scope, err := r.ResolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	orgs := make([]*models.Organization, 0, len(scope))
	for _, id := range scope {
		org, err := r.orgs.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// UpdateOrganization changes mutable fields (name, tax id). Kind and parent
// are immutable; re-tiering an organization is an explicit re-classification
// flow, not an update.
func (r *Resolver) UpdateOrganization(ctx context.Context, actor domain.Actor, id domain.OrgID, name, taxID *string) (*models.Organization, error) {
	if err := r.RequireAct(ctx, actor, id); err != nil {
		return nil, err
	}
	org, err := r.orgs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" || len(trimmed) > 128 {
			return nil, dErrors.New(dErrors.CodeValidation, "organization name must be 1-128 characters")
		}
		org.Name = trimmed
	}
	if taxID != nil {
		org.TaxID = strings.TrimSpace(*taxID)
	}
	org.UpdatedAt = time.Now()

	if err := r.orgs.Update(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update organization")
	}
	return org, nil
}
