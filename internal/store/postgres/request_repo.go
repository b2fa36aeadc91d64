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

func (s *Store) CreateRequest(ctx context.Context, req domain.ActionRequest) error {
	inputJSON, err := json.Marshal(req.Input)
	if err != nil {
		return fmt.Errorf("postgres: marshal request input: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO action_requests (id, agent_id, status, summary, input, reasoning_trace, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.AgentID, string(req.Status), req.Summary, inputJSON, req.ReasoningTrace, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*domain.ActionRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, agent_id, status, summary, input, reasoning_trace, created_at FROM action_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (s *Store) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.ActionRequest, error) {
	var rows pgx.Rows
	var err error
	if status == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, agent_id, status, summary, input, reasoning_trace, created_at FROM action_requests ORDER BY created_at`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, agent_id, status, summary, input, reasoning_trace, created_at FROM action_requests WHERE status = $1 ORDER BY created_at`,
			string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list requests: %w", err)
	}
	defer rows.Close()

	var out []domain.ActionRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRequestStatus performs the conditional transition the spec
// requires: the update only takes effect when the row's current status
// still equals expected, making double-approval and similar races no-ops
// instead of silent overwrites.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, expected, next domain.RequestStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE action_requests SET status = $1 WHERE id = $2 AND status = $3`,
		string(next), id, string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: update request status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRequest(row rowScanner) (*domain.ActionRequest, error) {
	var r domain.ActionRequest
	var status string
	var inputJSON []byte
	if err := row.Scan(&r.ID, &r.AgentID, &status, &r.Summary, &inputJSON, &r.ReasoningTrace, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan request: %w", err)
	}
	r.Status = domain.RequestStatus(status)
	if err := json.Unmarshal(inputJSON, &r.Input); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal request input: %w", err)
	}
	return &r, nil
}
