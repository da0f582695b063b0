package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bonifica/internal/hierarchy/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// Postgres persists organizations in the organizations table. The unique
// index on lower(name) arbitrates concurrent creation.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed organization store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Postgres) Create(ctx context.Context, org *models.Organization) error {
	var parent *uuid.UUID
	if org.ParentID != nil {
		u := uuid.UUID(*org.ParentID)
		parent = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, tax_id, kind, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(org.ID), org.Name, org.TaxID, string(org.Kind), parent, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.OrgID) (*models.Organization, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, tax_id, kind, parent_id, created_at, updated_at
		FROM organizations WHERE id = $1
	`, uuid.UUID(id))
	return scanOrganization(row)
}

func (s *Postgres) ListByParent(ctx context.Context, parentID domain.OrgID) ([]*models.Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, tax_id, kind, parent_id, created_at, updated_at
		FROM organizations WHERE parent_id = $1
		ORDER BY name
	`, uuid.UUID(parentID))
	if err != nil {
		return nil, fmt.Errorf("list organizations by parent: %w", err)
	}
	defer rows.Close()
	return collectOrganizations(rows)
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, tax_id, kind, parent_id, created_at, updated_at
		FROM organizations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	return collectOrganizations(rows)
}

// Update persists mutable fields only. Kind and parent_id are deliberately
// absent from the statement; the tier of an organization never changes here.
func (s *Postgres) Update(ctx context.Context, org *models.Organization) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, tax_id = $3, updated_at = $4
		WHERE id = $1
	`, uuid.UUID(org.ID), org.Name, org.TaxID, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*models.Organization, error) {
	var (
		org    models.Organization
		id     uuid.UUID
		kind   string
		parent *uuid.UUID
	)
	err := row.Scan(&id, &org.Name, &org.TaxID, &kind, &parent, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}
	org.ID = domain.OrgID(id)
	org.Kind = models.OrgKind(kind)
	if parent != nil {
		p := domain.OrgID(*parent)
		org.ParentID = &p
	}
	return &org, nil
}

func collectOrganizations(rows pgx.Rows) ([]*models.Organization, error) {
	var out []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, rows.Err()
}
