package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

const pgUniqueViolation = "23505"

func (s *Store) CreateApproval(ctx context.Context, approval domain.Approval) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO approvals (id, plan_id, approved_by, decision, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		approval.ID, approval.PlanID, approval.ApprovedBy, string(approval.Decision), approval.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrAlreadyDecided
		}
		return fmt.Errorf("postgres: create approval: %w", err)
	}
	return nil
}

func (s *Store) GetApprovalByPlan(ctx context.Context, planID string) (*domain.Approval, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, plan_id, approved_by, decision, created_at FROM approvals WHERE plan_id = $1`, planID)

	var a domain.Approval
	var decision string
	if err := row.Scan(&a.ID, &a.PlanID, &a.ApprovedBy, &decision, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan approval: %w", err)
	}
	a.Decision = domain.Decision(decision)
	return &a, nil
}
