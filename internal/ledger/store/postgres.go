package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bonifica/internal/ledger/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// PostgresLinks persists organization-group links with a unique index on
// (group_id, org_id).
type PostgresLinks struct {
	pool *pgxpool.Pool
}

// NewPostgresLinks constructs a Postgres-backed link store.
func NewPostgresLinks(pool *pgxpool.Pool) *PostgresLinks {
	return &PostgresLinks{pool: pool}
}

func (s *PostgresLinks) Create(ctx context.Context, link *models.OrganizationGroupLink) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organization_group_links (id, group_id, org_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(link.ID), uuid.UUID(link.GroupID), uuid.UUID(link.OrgID), link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

func (s *PostgresLinks) FindByID(ctx context.Context, id domain.LinkID) (*models.OrganizationGroupLink, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, group_id, org_id, created_at
		FROM organization_group_links WHERE id = $1
	`, uuid.UUID(id))
	return scanLink(row)
}

func (s *PostgresLinks) ListByGroup(ctx context.Context, groupID domain.GroupID) ([]*models.OrganizationGroupLink, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, group_id, org_id, created_at
		FROM organization_group_links WHERE group_id = $1
	`, uuid.UUID(groupID))
	if err != nil {
		return nil, fmt.Errorf("list links by group: %w", err)
	}
	defer rows.Close()

	var out []*models.OrganizationGroupLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.OrganizationGroupLink, error) {
	var (
		link           models.OrganizationGroupLink
		id, gID, orgID uuid.UUID
	)
	if err := row.Scan(&id, &gID, &orgID, &link.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan link: %w", err)
	}
	link.ID = domain.LinkID(id)
	link.GroupID = domain.GroupID(gID)
	link.OrgID = domain.OrgID(orgID)
	return &link, nil
}

// PostgresCosts persists cost declarations, keyed by link.
type PostgresCosts struct {
	pool *pgxpool.Pool
}

// NewPostgresCosts constructs a Postgres-backed cost store.
func NewPostgresCosts(pool *pgxpool.Pool) *PostgresCosts {
	return &PostgresCosts{pool: pool}
}

func (s *PostgresCosts) Upsert(ctx context.Context, cost *models.CostDeclaration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cost_declarations (link_id, total_declared_cost_cents, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (link_id) DO UPDATE SET
			total_declared_cost_cents = EXCLUDED.total_declared_cost_cents,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(cost.LinkID), int64(cost.TotalDeclaredCost), cost.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cost declaration: %w", err)
	}
	return nil
}

func (s *PostgresCosts) FindByLink(ctx context.Context, linkID domain.LinkID) (*models.CostDeclaration, error) {
	var (
		cost  models.CostDeclaration
		id    uuid.UUID
		cents int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT link_id, total_declared_cost_cents, updated_at
		FROM cost_declarations WHERE link_id = $1
	`, uuid.UUID(linkID)).Scan(&id, &cents, &cost.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan cost declaration: %w", err)
	}
	cost.LinkID = domain.LinkID(id)
	cost.TotalDeclaredCost = domain.Money(cents)
	return &cost, nil
}

// PostgresEntries persists subsidy entries. The unique index on
// (link_id, month) arbitrates concurrent allocation of the same month.
type PostgresEntries struct {
	pool *pgxpool.Pool
}

// NewPostgresEntries constructs a Postgres-backed entry store.
func NewPostgresEntries(pool *pgxpool.Pool) *PostgresEntries {
	return &PostgresEntries{pool: pool}
}

func (s *PostgresEntries) Create(ctx context.Context, entry *models.SubsidyEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subsidy_entries (id, link_id, month, amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(entry.ID), uuid.UUID(entry.LinkID), int(entry.Month), int64(entry.Amount), entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert subsidy entry: %w", err)
	}
	return nil
}

func (s *PostgresEntries) Delete(ctx context.Context, id domain.EntryID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subsidy_entries WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete subsidy entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresEntries) FindByID(ctx context.Context, id domain.EntryID) (*models.SubsidyEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, link_id, month, amount_cents, created_at
		FROM subsidy_entries WHERE id = $1
	`, uuid.UUID(id))
	return scanEntry(row)
}

func (s *PostgresEntries) ListByLink(ctx context.Context, linkID domain.LinkID) ([]*models.SubsidyEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, link_id, month, amount_cents, created_at
		FROM subsidy_entries WHERE link_id = $1
		ORDER BY month
	`, uuid.UUID(linkID))
	if err != nil {
		return nil, fmt.Errorf("list subsidy entries: %w", err)
	}
	defer rows.Close()

	var out []*models.SubsidyEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (*models.SubsidyEntry, error) {
	var (
		entry       models.SubsidyEntry
		id, linkID  uuid.UUID
		month       int
		amountCents int64
	)
	if err := row.Scan(&id, &linkID, &month, &amountCents, &entry.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan subsidy entry: %w", err)
	}
	entry.ID = domain.EntryID(id)
	entry.LinkID = domain.LinkID(linkID)
	entry.Month = time.Month(month)
	entry.Amount = domain.Money(amountCents)
	return &entry, nil
}
