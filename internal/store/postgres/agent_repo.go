package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/actionhost/agentgate/internal/domain"
	"github.com/actionhost/agentgate/internal/store"
)

func (s *Store) CreateAgent(ctx context.Context, agent domain.Agent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (id, name, api_key_hash, created_at, last_seen_at) VALUES ($1, $2, $3, $4, $5)`,
		agent.ID, agent.Name, agent.APIKeyHash, agent.CreatedAt, agent.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, last_seen_at FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func (s *Store) GetAgentByKeyHash(ctx context.Context, keyHash string) (*domain.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, api_key_hash, created_at, last_seen_at FROM agents WHERE api_key_hash = $1`, keyHash)
	return scanAgent(row)
}

func (s *Store) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, api_key_hash, created_at, last_seen_at FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list agents: %w", err)
	}
	defer rows.Close()

	var out []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAgentKeyHash(ctx context.Context, id, keyHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE agents SET api_key_hash = $1 WHERE id = $2`, keyHash, id)
	if err != nil {
		return fmt.Errorf("postgres: update agent key hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) TouchAgentLastSeen(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET last_seen_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("postgres: touch agent last_seen_at: %w", err)
	}
	return nil
}

// rowScanner abstracts over pgx.Row and pgx.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	if err := row.Scan(&a.ID, &a.Name, &a.APIKeyHash, &a.CreatedAt, &a.LastSeenAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan agent: %w", err)
	}
	return &a, nil
}
