package group

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

// Postgres persists delivery groups. The unique index on
// (responsible_org_id, code_year, sequential_code) arbitrates concurrent
// first-fit allocation; the engine treats its violation as retryable.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed group store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const groupColumns = `
	id, training_action_id, property_org_id, responsible_org_id,
	sequential_code, code_year, start_date, planned_end_date, actual_end_date,
	participant_count_planned, participant_count_finished, passed_count,
	failed_count, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, g *models.DeliveryGroup) error {
	var property *uuid.UUID
	if g.PropertyOrgID != nil {
		u := uuid.UUID(*g.PropertyOrgID)
		property = &u
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_groups (`+groupColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		uuid.UUID(g.ID), uuid.UUID(g.TrainingActionID), property, uuid.UUID(g.ResponsibleOrgID),
		g.SequentialCode, g.CodeYear, g.StartDate, g.PlannedEndDate, g.ActualEndDate,
		g.ParticipantCountPlanned, g.ParticipantCountFinished, g.PassedCount,
		g.FailedCount, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert delivery group: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, g *models.DeliveryGroup) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE delivery_groups
		SET sequential_code = $2, code_year = $3, start_date = $4,
		    planned_end_date = $5, actual_end_date = $6,
		    participant_count_planned = $7, participant_count_finished = $8,
		    passed_count = $9, failed_count = $10, updated_at = $11
		WHERE id = $1
	`, uuid.UUID(g.ID), g.SequentialCode, g.CodeYear, g.StartDate,
		g.PlannedEndDate, g.ActualEndDate,
		g.ParticipantCountPlanned, g.ParticipantCountFinished,
		g.PassedCount, g.FailedCount, g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update delivery group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id domain.GroupID) (*models.DeliveryGroup, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+groupColumns+` FROM delivery_groups WHERE id = $1
	`, uuid.UUID(id))

	var (
		g                models.DeliveryGroup
		groupID          uuid.UUID
		actionID, respID uuid.UUID
		property         *uuid.UUID
	)
	err := row.Scan(&groupID, &actionID, &property, &respID,
		&g.SequentialCode, &g.CodeYear, &g.StartDate, &g.PlannedEndDate, &g.ActualEndDate,
		&g.ParticipantCountPlanned, &g.ParticipantCountFinished, &g.PassedCount,
		&g.FailedCount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan delivery group: %w", err)
	}
	g.ID = domain.GroupID(groupID)
	g.TrainingActionID = domain.ActionID(actionID)
	g.ResponsibleOrgID = domain.OrgID(respID)
	if property != nil {
		p := domain.OrgID(*property)
		g.PropertyOrgID = &p
	}
	return &g, nil
}

func (s *Postgres) Delete(ctx context.Context, id domain.GroupID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM delivery_groups WHERE id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete delivery group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListCodesInScope(ctx context.Context, responsibleOrgID domain.OrgID, year int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sequential_code FROM delivery_groups
		WHERE responsible_org_id = $1 AND code_year = $2
	`, uuid.UUID(responsibleOrgID), year)
	if err != nil {
		return nil, fmt.Errorf("list group codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan group code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *Postgres) CodeExistsInScope(ctx context.Context, responsibleOrgID domain.OrgID, year int, code string, excludeID domain.GroupID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM delivery_groups
			WHERE responsible_org_id = $1 AND code_year = $2
			  AND sequential_code = $3 AND id <> $4
		)
	`, uuid.UUID(responsibleOrgID), year, code, uuid.UUID(excludeID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group code: %w", err)
	}
	return exists, nil
}
