// Package service implements the subsidy ledger: per-link cost declarations
// and monthly allocations that may never exceed declared cost.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bonifica/internal/ledger/models"
	"bonifica/pkg/domain"
	dErrors "bonifica/pkg/domain-errors"
	"bonifica/pkg/platform/sentinel"
)

// LinkStore is the organization-group link persistence contract.
type LinkStore interface {
	Create(ctx context.Context, link *models.OrganizationGroupLink) error
	FindByID(ctx context.Context, id domain.LinkID) (*models.OrganizationGroupLink, error)
	ListByGroup(ctx context.Context, groupID domain.GroupID) ([]*models.OrganizationGroupLink, error)
}

// CostStore is the cost declaration persistence contract. One declaration per
// link, created once and updated in place.
type CostStore interface {
	Upsert(ctx context.Context, cost *models.CostDeclaration) error
	FindByLink(ctx context.Context, linkID domain.LinkID) (*models.CostDeclaration, error)
}

// EntryStore is the subsidy entry persistence contract. The unique index on
// (link_id, month) arbitrates concurrent allocation of the same month.
type EntryStore interface {
	Create(ctx context.Context, entry *models.SubsidyEntry) error
	Delete(ctx context.Context, id domain.EntryID) error
	FindByID(ctx context.Context, id domain.EntryID) (*models.SubsidyEntry, error)
	ListByLink(ctx context.Context, linkID domain.LinkID) ([]*models.SubsidyEntry, error)
}

// Service enforces the ledger invariant: cumulative subsidy allocation per
// link never exceeds declared cost, and each calendar month is allocated at
// most once. Validation is advisory-then-enforced: it runs before the write
// and the storage constraint backs it up against concurrent writers.
type Service struct {
	links   LinkStore
	costs   CostStore
	entries EntryStore
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for ledger diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a ledger Service.
func New(links LinkStore, costs CostStore, entries EntryStore, opts ...Option) *Service {
	s := &Service{links: links, costs: costs, entries: entries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateEntry checks whether an allocation of amount to month would keep
// the link's ledger consistent. excludeEntryID skips the entry being edited
// (zero value excludes nothing). The caller must re-run this immediately
// before the write: declared cost or concurrent entries may have changed
// between check and write.
func (s *Service) ValidateEntry(ctx context.Context, linkID domain.LinkID, month time.Month, amount domain.Money, excludeEntryID domain.EntryID) error {
	if month < time.January || month > time.December {
		return dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if amount.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "subsidy amount cannot be negative")
	}

	cost, err := s.costs.FindByLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoCostDeclared, "no cost declared for this link").
				With("link_id", linkID.String())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cost declaration")
	}
	if cost.TotalDeclaredCost <= 0 {
		return dErrors.New(dErrors.CodeNoCostDeclared, "declared cost must be positive before allocating subsidy").
			With("link_id", linkID.String())
	}

	entries, err := s.entries.ListByLink(ctx, linkID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subsidy entries")
	}

	var allocated domain.Money
	for _, e := range entries {
		if e.ID == excludeEntryID {
			continue
		}
		if e.Month == month {
			return dErrors.New(dErrors.CodeMonthAlreadyAllocated, "month already has a subsidy entry").
				With("link_id", linkID.String()).
				With("month", int(month))
		}
		allocated = allocated.Add(e.Amount)
	}

	if allocated.Add(amount) > cost.TotalDeclaredCost {
		return dErrors.New(dErrors.CodeBudgetExceeded, "allocation would exceed declared cost").
			With("link_id", linkID.String()).
			With("declared_cost", cost.TotalDeclaredCost.String()).
			With("already_allocated", allocated.String())
	}
	return nil
}

// DeclareCost creates or updates the cost declaration for a link. Lowering
// an existing declaration below the sum already allocated is rejected: the
// entries would retroactively exceed the declared cost.
func (s *Service) DeclareCost(ctx context.Context, linkID domain.LinkID, total domain.Money) (*models.CostDeclaration, error) {
	if total.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "declared cost cannot be negative")
	}
	if _, err := s.links.FindByID(ctx, linkID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "link not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
	}

	entries, err := s.entries.ListByLink(ctx, linkID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subsidy entries")
	}
	var allocated domain.Money
	for _, e := range entries {
		allocated = allocated.Add(e.Amount)
	}
	if total < allocated {
		return nil, dErrors.New(dErrors.CodeBudgetExceeded, "declared cost cannot drop below the amount already allocated").
			With("link_id", linkID.String()).
			With("declared_cost", total.String()).
			With("already_allocated", allocated.String())
	}

	cost := &models.CostDeclaration{
		LinkID:            linkID,
		TotalDeclaredCost: total,
		UpdatedAt:         time.Now(),
	}
	if err := s.costs.Upsert(ctx, cost); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save cost declaration")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "cost declared",
			"link_id", linkID,
			"total_declared_cost", total,
			"log_type", "audit",
		)
	}
	return cost, nil
}

// RecordEntry validates and persists a subsidy entry. The validation re-runs
// here even when the caller already checked, and the store's month
// uniqueness constraint catches whatever slips between the two.
func (s *Service) RecordEntry(ctx context.Context, linkID domain.LinkID, month time.Month, amount domain.Money) (*models.SubsidyEntry, error) {
	if err := s.ValidateEntry(ctx, linkID, month, amount, domain.EntryID{}); err != nil {
		return nil, err
	}

	entry, err := models.NewSubsidyEntry(domain.NewEntryID(), linkID, month, amount, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent writer took the month between validation and write.
			return nil, dErrors.New(dErrors.CodeMonthAlreadyAllocated, "month already has a subsidy entry").
				With("link_id", linkID.String()).
				With("month", int(month))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist subsidy entry")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "subsidy entry recorded",
			"link_id", linkID,
			"month", int(month),
			"amount", amount,
			"log_type", "audit",
		)
	}
	return entry, nil
}

// DeleteEntry removes a subsidy entry, freeing its month for re-creation.
func (s *Service) DeleteEntry(ctx context.Context, id domain.EntryID) error {
	if err := s.entries.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subsidy entry not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete subsidy entry")
	}
	return nil
}

// Balance summarizes the ledger position for a link.
func (s *Service) Balance(ctx context.Context, linkID domain.LinkID) (*models.LinkBalance, error) {
	cost, err := s.costs.FindByLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNoCostDeclared, "no cost declared for this link").
				With("link_id", linkID.String())
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load cost declaration")
	}
	entries, err := s.entries.ListByLink(ctx, linkID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subsidy entries")
	}
	var allocated domain.Money
	for _, e := range entries {
		allocated = allocated.Add(e.Amount)
	}
	return &models.LinkBalance{
		LinkID:            linkID,
		TotalDeclaredCost: cost.TotalDeclaredCost,
		TotalAllocated:    allocated,
		Remaining:         cost.TotalDeclaredCost - allocated,
	}, nil
}

// CreateLink associates an organization with a delivery group, opening a new
// ledger scope.
func (s *Service) CreateLink(ctx context.Context, groupID domain.GroupID, orgID domain.OrgID) (*models.OrganizationGroupLink, error) {
	link := &models.OrganizationGroupLink{
		ID:        domain.NewLinkID(),
		GroupID:   groupID,
		OrgID:     orgID,
		CreatedAt: time.Now(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization is already linked to this group")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create link")
	}
	return link, nil
}

// GetLink loads a link by id.
func (s *Service) GetLink(ctx context.Context, id domain.LinkID) (*models.OrganizationGroupLink, error) {
	link, err := s.links.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "link not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load link")
	}
	return link, nil
}

// GetEntry loads a subsidy entry by id.
func (s *Service) GetEntry(ctx context.Context, id domain.EntryID) (*models.SubsidyEntry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subsidy entry not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load subsidy entry")
	}
	return entry, nil
}
