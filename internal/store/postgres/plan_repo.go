package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func (s *Store) CreatePlan(ctx context.Context, plan domain.Plan) error {
	stepsJSON, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("postgres: marshal plan steps: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO plans (id, request_id, plan_hash, steps, risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		plan.ID, plan.RequestID, plan.PlanHash, stepsJSON, plan.RiskScore, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, request_id, plan_hash, steps, risk_score, created_at FROM plans WHERE id = $1`, id)
	return scanPlan(row)
}

func (s *Store) GetLatestPlanForRequest(ctx context.Context, requestID string) (*domain.Plan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, request_id, plan_hash, steps, risk_score, created_at FROM plans
		 WHERE request_id = $1 ORDER BY created_at DESC LIMIT 1`, requestID)
	return scanPlan(row)
}

func scanPlan(row rowScanner) (*domain.Plan, error) {
	var p domain.Plan
	var stepsJSON []byte
	if err := row.Scan(&p.ID, &p.RequestID, &p.PlanHash, &stepsJSON, &p.RiskScore, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan plan: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &p.Steps); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal plan steps: %w", err)
	}
	return &p, nil
}
