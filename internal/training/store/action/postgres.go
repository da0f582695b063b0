package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bonifica/internal/training/models"
	"bonifica/pkg/domain"
	"bonifica/pkg/platform/sentinel"
)

// Postgres persists training actions. The unique index on
// (responsible_org_id, sequential_code) is the final arbiter of catalog
// uniqueness under concurrent writers.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed action store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Postgres) Create(ctx context.Context, a *models.TrainingAction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO training_actions (
			id, owner_org_id, responsible_org_id, sequential_code, title,
			modality, hours, period_start, period_end, year, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.UUID(a.ID), uuid.UUID(a.OwnerOrgID), uuid.UUID(a.ResponsibleOrgID),
		a.SequentialCode, a.Title, string(a.Modality), a.Hours,
		a.PeriodStart, a.PeriodEnd, a.Year, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert training action: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.ActionID) (*models.TrainingAction, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner_org_id, responsible_org_id, sequential_code, title,
		       modality, hours, period_start, period_end, year, created_at, updated_at
		FROM training_actions WHERE id = $1
	`, uuid.UUID(id))

	var (
		a               models.TrainingAction
		actionID        uuid.UUID
		ownerID, respID uuid.UUID
		modality        string
	)
	err := row.Scan(&actionID, &ownerID, &respID, &a.SequentialCode, &a.Title,
		&modality, &a.Hours, &a.PeriodStart, &a.PeriodEnd, &a.Year, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan training action: %w", err)
	}
	a.ID = domain.ActionID(actionID)
	a.OwnerOrgID = domain.OrgID(ownerID)
	a.ResponsibleOrgID = domain.OrgID(respID)
	a.Modality = models.Modality(modality)
	return &a, nil
}

func (s *Postgres) CodeExists(ctx context.Context, responsibleOrgID domain.OrgID, code string, excludeID domain.ActionID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM training_actions
			WHERE responsible_org_id = $1 AND sequential_code = $2 AND id <> $3
		)
	`, uuid.UUID(responsibleOrgID), code, uuid.UUID(excludeID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check action code: %w", err)
	}
	return exists, nil
}

func (s *Postgres) Update(ctx context.Context, a *models.TrainingAction) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE training_actions
		SET sequential_code = $2, title = $3, modality = $4, hours = $5,
		    period_start = $6, period_end = $7, updated_at = $8
		WHERE id = $1
	`, uuid.UUID(a.ID), a.SequentialCode, a.Title, string(a.Modality), a.Hours,
		a.PeriodStart, a.PeriodEnd, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update training action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
